package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relevohq/relevo/internal/audit"
	"github.com/relevohq/relevo/internal/models"
	"github.com/relevohq/relevo/internal/privacy"
	"github.com/relevohq/relevo/internal/refine"
	"github.com/relevohq/relevo/internal/store"
	"github.com/relevohq/relevo/internal/utils"
	"github.com/relevohq/relevo/internal/vault"
)

const sampleTranscript = "Room 12 Mr. Okafor glucose 320, recheck glucose within the hour. " +
	"Room 14 Ms. Alvarez BP 82/50, notify the attending now."

// stubRefiner lets a test control every axis of refiner behavior.
type stubRefiner struct {
	name     string
	external bool
	err      error
	mutate   func(models.PipelineResult) models.PipelineResult
}

func (s stubRefiner) Refine(_ context.Context, result models.PipelineResult) (models.PipelineResult, error) {
	if s.err != nil {
		return models.PipelineResult{}, s.err
	}
	if s.mutate != nil {
		return s.mutate(result), nil
	}
	return result, nil
}

func (s stubRefiner) Name() string   { return s.name }
func (s stubRefiner) External() bool { return s.external }

type handoffFixture struct {
	svc      HandoffService
	registry *privacy.Registry
	audit    *audit.Log
	vault    *vault.Vault
	kv       *store.Memory
}

func newHandoffFixture(t *testing.T, cfg HandoffConfig, r refine.Refiner) *handoffFixture {
	t.Helper()
	kv := store.NewMemory()
	a := audit.New(kv, audit.Config{}, nil)
	v, err := vault.New(kv, vault.Config{TTL: time.Hour}, a, nil)
	require.NoError(t, err)
	reg := privacy.NewRegistry(privacy.Config{})
	return &handoffFixture{
		svc:      NewHandoffService(cfg, r, reg, v, a, nil),
		registry: reg,
		audit:    a,
		vault:    v,
		kv:       kv,
	}
}

func auditActions(t *testing.T, a *audit.Log) []models.AuditAction {
	t.Helper()
	events := a.Events(context.Background())
	out := make([]models.AuditAction, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Action)
	}
	return out
}

func TestRunRegistersLiveSession(t *testing.T) {
	ctx := context.Background()
	f := newHandoffFixture(t, HandoffConfig{}, refine.NoOp{})

	out, err := f.svc.Run(ctx, RunInput{DutyType: "night", Transcript: sampleTranscript})
	require.NoError(t, err)
	assert.NotEmpty(t, out.SessionID)
	assert.GreaterOrEqual(t, out.SegmentCount, 1)
	assert.Len(t, out.Result.Patients, 2)

	sess, ok := f.registry.Get(out.SessionID)
	require.True(t, ok)
	live, ok := sess.Result()
	require.True(t, ok)
	assert.Equal(t, out.Result.Patients, live.Patients)

	assert.Equal(t, []models.AuditAction{models.AuditPipelineRun}, auditActions(t, f.audit))
}

func TestRunKeepsCallerSessionID(t *testing.T) {
	f := newHandoffFixture(t, HandoffConfig{}, refine.NoOp{})

	out, err := f.svc.Run(context.Background(), RunInput{SessionID: "shift-7", Transcript: sampleTranscript})
	require.NoError(t, err)
	assert.Equal(t, "shift-7", out.SessionID)
	assert.Equal(t, "shift-7", out.Result.SessionID)
}

func TestRunRejectsEmptyInput(t *testing.T) {
	f := newHandoffFixture(t, HandoffConfig{}, refine.NoOp{})

	_, err := f.svc.Run(context.Background(), RunInput{})
	require.Error(t, err)
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))
}

func TestRunFallsBackWhenRefinerErrors(t *testing.T) {
	f := newHandoffFixture(t, HandoffConfig{}, stubRefiner{name: "flaky", err: fmt.Errorf("adapter down")})

	out, err := f.svc.Run(context.Background(), RunInput{Transcript: sampleTranscript})
	require.NoError(t, err)
	assert.False(t, out.Refined)
	assert.Len(t, out.Result.Patients, 2)
}

func TestRunFallsBackWhenRefinerOutputInvalid(t *testing.T) {
	mangle := func(r models.PipelineResult) models.PipelineResult {
		r.Patients[0].PatientKey = "someone-else"
		return r
	}
	f := newHandoffFixture(t, HandoffConfig{}, stubRefiner{name: "mangler", mutate: mangle})

	out, err := f.svc.Run(context.Background(), RunInput{Transcript: sampleTranscript})
	require.NoError(t, err)
	assert.False(t, out.Refined)
	assert.Equal(t, "patient-1", out.Result.Patients[0].PatientKey)
}

func TestRunAppliesValidRefinement(t *testing.T) {
	f := newHandoffFixture(t, HandoffConfig{}, refine.Heuristic{})

	out, err := f.svc.Run(context.Background(), RunInput{Transcript: sampleTranscript})
	require.NoError(t, err)
	assert.True(t, out.Refined)
	for _, p := range out.Result.Patients {
		assert.NotEmpty(t, p.Questions)
	}
}

func TestStrictProfileBlocksExternalRefiner(t *testing.T) {
	f := newHandoffFixture(t,
		HandoffConfig{PrivacyProfile: PrivacyProfileStrict},
		stubRefiner{name: "remote", external: true})

	out, err := f.svc.Run(context.Background(), RunInput{Transcript: sampleTranscript})
	require.NoError(t, err)
	assert.False(t, out.Refined)
	assert.Equal(t,
		[]models.AuditAction{models.AuditPolicyBlocked, models.AuditPipelineRun},
		auditActions(t, f.audit))
}

func TestStrictProfileAllowsLocalRefiner(t *testing.T) {
	f := newHandoffFixture(t, HandoffConfig{PrivacyProfile: PrivacyProfileStrict}, refine.Heuristic{})

	out, err := f.svc.Run(context.Background(), RunInput{Transcript: sampleTranscript})
	require.NoError(t, err)
	assert.True(t, out.Refined)
	assert.NotContains(t, auditActions(t, f.audit), models.AuditPolicyBlocked)
}

func TestSavePersistsLiveResult(t *testing.T) {
	ctx := context.Background()
	f := newHandoffFixture(t, HandoffConfig{}, refine.NoOp{})

	out, err := f.svc.Run(ctx, RunInput{Transcript: sampleTranscript})
	require.NoError(t, err)

	rec, err := f.svc.Save(ctx, out.SessionID)
	require.NoError(t, err)
	assert.Equal(t, out.SessionID, rec.SessionID)

	got, err := f.svc.Get(ctx, out.SessionID)
	require.NoError(t, err)
	assert.Equal(t, out.Result.Patients, got.Payload.Patients)

	// saving does not end the live session
	_, ok := f.registry.Get(out.SessionID)
	assert.True(t, ok)
}

func TestSaveUnknownSession(t *testing.T) {
	f := newHandoffFixture(t, HandoffConfig{}, refine.NoOp{})

	_, err := f.svc.Save(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, utils.IsCode(err, utils.CodeNotFound))
}

func TestSavePurgedSession(t *testing.T) {
	ctx := context.Background()
	f := newHandoffFixture(t, HandoffConfig{}, refine.NoOp{})

	out, err := f.svc.Run(ctx, RunInput{Transcript: sampleTranscript})
	require.NoError(t, err)

	sess, _ := f.registry.Get(out.SessionID)
	sess.Purge()

	_, err = f.svc.Save(ctx, out.SessionID)
	require.Error(t, err)
	assert.True(t, utils.IsCode(err, utils.CodeNotFound))
}

func TestPurgeAllWipesEverything(t *testing.T) {
	ctx := context.Background()
	f := newHandoffFixture(t, HandoffConfig{}, refine.NoOp{})

	for i := 0; i < 2; i++ {
		out, err := f.svc.Run(ctx, RunInput{Transcript: sampleTranscript})
		require.NoError(t, err)
		_, err = f.svc.Save(ctx, out.SessionID)
		require.NoError(t, err)
	}

	report, err := f.svc.PurgeAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.VaultShredded)
	assert.Equal(t, 2, report.SessionsEnded)
	assert.True(t, report.AuditLogWiped)

	records, err := f.svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, 0, f.registry.Len())

	// the fresh log holds exactly the wipe event
	assert.Equal(t, []models.AuditAction{models.AuditAllDataPurged}, auditActions(t, f.audit))
}
