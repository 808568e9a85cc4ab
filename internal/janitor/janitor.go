// Package janitor runs the expiry sweeps: vault TTL, audit whole-log TTL, and
// live-session lock/purge deadlines. Sweeps are idempotent and side-effect-
// free when nothing expired, so the interval timer and the hosting UI's
// visibility trigger may fire them concurrently without coordination.
package janitor

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/relevohq/relevo/internal/audit"
	"github.com/relevohq/relevo/internal/privacy"
	"github.com/relevohq/relevo/internal/vault"
)

const DefaultInterval = time.Minute

type Janitor struct {
	Vault    *vault.Vault
	Audit    *audit.Log
	Registry *privacy.Registry
	Interval time.Duration
	Logger   *logrus.Entry
}

// Report is the outcome of one sweep. All-zero means nothing had expired.
type Report struct {
	VaultPurged    int  `json:"vault_purged"`
	AuditWiped     bool `json:"audit_wiped"`
	SessionsPurged int  `json:"sessions_purged"`
}

// Sweep runs every expiry check once.
func (j *Janitor) Sweep(ctx context.Context) Report {
	var rep Report

	if j.Vault != nil {
		n, err := j.Vault.PurgeExpired(ctx)
		if err != nil && j.Logger != nil {
			j.Logger.WithError(err).Warn("vault sweep failed")
		}
		rep.VaultPurged = n
	}
	if j.Audit != nil {
		rep.AuditWiped = j.Audit.ExpireIfDue(ctx)
	}
	if j.Registry != nil {
		rep.SessionsPurged = j.Registry.Sweep()
	}

	if j.Logger != nil && (rep.VaultPurged > 0 || rep.AuditWiped || rep.SessionsPurged > 0) {
		j.Logger.WithFields(logrus.Fields{
			"vault_purged":    rep.VaultPurged,
			"audit_wiped":     rep.AuditWiped,
			"sessions_purged": rep.SessionsPurged,
		}).Info("janitor sweep")
	}
	return rep
}

// Run loops Sweep on the configured interval until ctx is canceled.
func (j *Janitor) Run(ctx context.Context) {
	interval := j.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.Sweep(ctx)
		}
	}
}
