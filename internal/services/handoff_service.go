package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/relevohq/relevo/internal/audit"
	"github.com/relevohq/relevo/internal/models"
	"github.com/relevohq/relevo/internal/pipeline"
	"github.com/relevohq/relevo/internal/privacy"
	"github.com/relevohq/relevo/internal/refine"
	"github.com/relevohq/relevo/internal/segmenter"
	"github.com/relevohq/relevo/internal/utils"
	"github.com/relevohq/relevo/internal/vault"
)

// PrivacyProfileStrict blocks any refiner whose enrichment leaves the
// process. The standard profile allows external refiners.
const (
	PrivacyProfileStandard = "standard"
	PrivacyProfileStrict   = "strict"
)

// HandoffService drives a handoff end to end: transcript in, segmented and
// extracted result registered as a live in-memory session, with optional
// refinement and explicit save-to-vault. The result is never persisted unless
// Save is called.
type HandoffService interface {
	Run(ctx context.Context, in RunInput) (*RunOutput, error)
	Save(ctx context.Context, sessionID string) (models.VaultRecord, error)
	List(ctx context.Context) ([]models.VaultRecord, error)
	Get(ctx context.Context, sessionID string) (models.VaultRecord, error)
	Shred(ctx context.Context, sessionID string) error
	PurgeAll(ctx context.Context) (PurgeReport, error)
}

type RunInput struct {
	SessionID  string             // optional, generated when empty
	DutyType   string             // day|night|weekend, free-form passthrough
	Transcript string             // raw manual transcript
	Timed      []models.TimedText // ASR results, used instead of Transcript when present
}

type RunOutput struct {
	SessionID    string                `json:"session_id"`
	SegmentCount int                   `json:"segment_count"`
	Refiner      string                `json:"refiner"`
	Refined      bool                  `json:"refined"`
	Result       models.PipelineResult `json:"result"`
}

// PurgeReport counts what the panic wipe removed.
type PurgeReport struct {
	VaultShredded int  `json:"vault_shredded"`
	SessionsEnded int  `json:"sessions_ended"`
	AuditLogWiped bool `json:"audit_log_wiped"`
}

type HandoffConfig struct {
	Segmenter      segmenter.Config
	RefineTimeout  time.Duration // defaults to 8s
	PrivacyProfile string        // standard|strict, defaults to standard
}

type handoffService struct {
	cfg      HandoffConfig
	refiner  refine.Refiner
	registry *privacy.Registry
	vault    *vault.Vault
	audit    *audit.Log
	log      *logrus.Entry
}

func NewHandoffService(cfg HandoffConfig, r refine.Refiner, reg *privacy.Registry, v *vault.Vault, a *audit.Log, log *logrus.Entry) HandoffService {
	if cfg.RefineTimeout <= 0 {
		cfg.RefineTimeout = 8 * time.Second
	}
	if cfg.PrivacyProfile == "" {
		cfg.PrivacyProfile = PrivacyProfileStandard
	}
	if r == nil {
		r = refine.NoOp{}
	}
	if log == nil {
		log = logrus.NewEntry(logrus.New())
	}
	return &handoffService{cfg: cfg, refiner: r, registry: reg, vault: v, audit: a, log: log}
}

func (s *handoffService) Run(ctx context.Context, in RunInput) (*RunOutput, error) {
	const op = "HandoffService.Run"

	if in.Transcript == "" && len(in.Timed) == 0 {
		return nil, utils.E(utils.CodeInvalidArgument, op, "transcript or timed results are required", nil)
	}

	sessionID := in.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	var segs []models.RawSegment
	if len(in.Timed) > 0 {
		segs = segmenter.Normalize(in.Timed, s.cfg.Segmenter)
	} else {
		segs = segmenter.Segment(in.Transcript, s.cfg.Segmenter)
	}

	result := pipeline.Run(sessionID, in.DutyType, segs)
	refined := s.applyRefinement(ctx, sessionID, &result)

	s.registry.Start(sessionID, result, len(segs))
	s.audit.Append(ctx, models.AuditPipelineRun, sessionID,
		fmt.Sprintf("patients=%d segments=%d refiner=%s", len(result.Patients), len(segs), s.refiner.Name()))

	return &RunOutput{
		SessionID:    sessionID,
		SegmentCount: len(segs),
		Refiner:      s.refiner.Name(),
		Refined:      refined,
		Result:       result,
	}, nil
}

// applyRefinement runs the configured refiner against a copy of the result
// and swaps the enriched copy in only when it passes contract validation.
// Every failure path falls back to the unenriched result.
func (s *handoffService) applyRefinement(ctx context.Context, sessionID string, result *models.PipelineResult) bool {
	if _, disabled := s.refiner.(refine.NoOp); disabled {
		return false
	}
	if s.cfg.PrivacyProfile == PrivacyProfileStrict && s.refiner.External() {
		s.audit.Append(ctx, models.AuditPolicyBlocked, sessionID,
			fmt.Sprintf("refiner %s blocked by strict privacy profile", s.refiner.Name()))
		s.log.WithFields(logrus.Fields{"session_id": sessionID, "refiner": s.refiner.Name()}).
			Warn("external refiner blocked by privacy profile")
		return false
	}

	rctx, cancel := context.WithTimeout(ctx, s.cfg.RefineTimeout)
	defer cancel()

	enriched, err := s.refiner.Refine(rctx, result.Clone())
	if err != nil {
		s.log.WithFields(logrus.Fields{"session_id": sessionID, "refiner": s.refiner.Name()}).
			WithError(err).Warn("refinement failed, using unenriched result")
		return false
	}
	if err := refine.Validate(*result, enriched); err != nil {
		s.log.WithFields(logrus.Fields{"session_id": sessionID, "refiner": s.refiner.Name()}).
			WithError(err).Warn("refinement output rejected, using unenriched result")
		return false
	}

	*result = enriched
	return true
}

// Save persists the live session's current result to the vault. The live
// session keeps running; saving does not end it.
func (s *handoffService) Save(ctx context.Context, sessionID string) (models.VaultRecord, error) {
	const op = "HandoffService.Save"

	sess, ok := s.registry.Get(sessionID)
	if !ok {
		return models.VaultRecord{}, utils.E(utils.CodeNotFound, op, "no live session with that id", utils.ErrNotFound)
	}
	result, ok := sess.Result()
	if !ok {
		return models.VaultRecord{}, utils.E(utils.CodeNotFound, op, "session already purged", utils.ErrNotFound)
	}
	return s.vault.Save(ctx, sessionID, result)
}

func (s *handoffService) List(ctx context.Context) ([]models.VaultRecord, error) {
	return s.vault.List(ctx)
}

func (s *handoffService) Get(ctx context.Context, sessionID string) (models.VaultRecord, error) {
	return s.vault.Get(ctx, sessionID)
}

func (s *handoffService) Shred(ctx context.Context, sessionID string) error {
	return s.vault.Shred(ctx, sessionID)
}

// PurgeAll is the panic wipe: every vault record, every live session, and the
// audit log itself. The wipe event is appended after the reset so the fresh
// log records that a wipe happened.
func (s *handoffService) PurgeAll(ctx context.Context) (PurgeReport, error) {
	const op = "HandoffService.PurgeAll"

	shredded, err := s.vault.ShredAll(ctx)
	if err != nil {
		return PurgeReport{}, utils.E(utils.CodeUnavailable, op, "vault shred failed, purge aborted", err)
	}
	ended := s.registry.EndAll()
	s.audit.Reset(ctx)
	s.audit.Append(ctx, models.AuditAllDataPurged, "",
		fmt.Sprintf("vault=%d sessions=%d audit=reset", shredded, ended))

	return PurgeReport{VaultShredded: shredded, SessionsEnded: ended, AuditLogWiped: true}, nil
}
