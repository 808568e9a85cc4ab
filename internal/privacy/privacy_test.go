package privacy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relevohq/relevo/internal/models"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 7, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func testConfig() Config {
	return Config{
		RevealHold:   600 * time.Millisecond,
		RevealWindow: 5 * time.Second,
		AutoLock:     30 * time.Second,
		Purge:        2 * time.Minute,
	}
}

func testResult() models.PipelineResult {
	return models.PipelineResult{
		SessionID: "s1",
		Patients: []models.PatientCard{
			{PatientKey: "patient-1", AliasToken: "Mr. Okafor", RoomToken: "12"},
		},
	}
}

func startSession(t *testing.T) (*Session, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	reg := NewRegistry(testConfig()).WithClock(clock.Now)
	return reg.Start("s1", testResult(), 3), clock
}

func TestShortPressStaysHidden(t *testing.T) {
	s, clock := startSession(t)

	s.PressStart("patient-1:alias")
	clock.Advance(400 * time.Millisecond)
	state := s.PressEnd("patient-1:alias")

	assert.Equal(t, FieldHidden, state)
	assert.Equal(t, FieldHidden, s.FieldState("patient-1:alias"))
}

func TestSustainedPressReveals(t *testing.T) {
	s, clock := startSession(t)

	s.PressStart("patient-1:alias")
	clock.Advance(600 * time.Millisecond)
	state := s.PressEnd("patient-1:alias")

	assert.Equal(t, FieldRevealed, state)
	assert.Equal(t, FieldRevealed, s.FieldState("patient-1:alias"))
}

func TestRevealWindowAutoRehides(t *testing.T) {
	s, clock := startSession(t)

	s.Reveal("patient-1:alias", 700*time.Millisecond)
	require.Equal(t, FieldRevealed, s.FieldState("patient-1:alias"))

	clock.Advance(5 * time.Second)
	assert.Equal(t, FieldHidden, s.FieldState("patient-1:alias"),
		"revealed field must re-hide after the window without interaction")
}

func TestAutoLockAfterIdle(t *testing.T) {
	s, clock := startSession(t)
	require.Equal(t, SessionActive, s.State())

	clock.Advance(30 * time.Second)
	assert.Equal(t, SessionLocked, s.State())

	// locked supersedes per-field state
	assert.Equal(t, FieldHidden, s.Reveal("patient-1:alias", time.Second))

	s.Unlock()
	assert.Equal(t, SessionActive, s.State())
	// unlock returns fields to Hidden, never Revealed
	assert.Equal(t, FieldHidden, s.FieldState("patient-1:alias"))
}

func TestUnlockResetsRevealedFields(t *testing.T) {
	s, clock := startSession(t)

	s.Reveal("patient-1:room", time.Second)
	clock.Advance(30 * time.Second)
	require.Equal(t, SessionLocked, s.State())

	s.Unlock()
	assert.Equal(t, FieldHidden, s.FieldState("patient-1:room"))
}

func TestMemoryPurgeIsHardTeardown(t *testing.T) {
	s, clock := startSession(t)

	_, ok := s.Result()
	require.True(t, ok)

	clock.Advance(2 * time.Minute)
	assert.Equal(t, SessionPurged, s.State())

	_, ok = s.Result()
	assert.False(t, ok, "structured state must be discarded, not just hidden")

	snap := s.Snapshot()
	assert.Zero(t, snap.PatientCount)
	assert.Zero(t, snap.SegmentCount)
	assert.Empty(t, snap.Patients)

	// purge is irreversible
	s.Unlock()
	assert.Equal(t, SessionPurged, s.State())
}

func TestSnapshotBlanksHiddenTokens(t *testing.T) {
	s, _ := startSession(t)

	snap := s.Snapshot()
	require.Len(t, snap.Patients, 1)
	assert.Empty(t, snap.Patients[0].AliasToken)
	assert.Empty(t, snap.Patients[0].RoomToken)
	assert.Equal(t, "patient-1", snap.Patients[0].PatientKey)

	s.Reveal("patient-1:alias", time.Second)
	snap = s.Snapshot()
	assert.Equal(t, "Mr. Okafor", snap.Patients[0].AliasToken)
	assert.Empty(t, snap.Patients[0].RoomToken, "each field reveals independently")
}

func TestRegistrySweepCountsPurgesOnce(t *testing.T) {
	clock := newFakeClock()
	reg := NewRegistry(testConfig()).WithClock(clock.Now)

	var audited []string
	reg.OnPurge = func(id string) { audited = append(audited, id) }

	reg.Start("a", testResult(), 3)
	reg.Start("b", testResult(), 3)
	require.Equal(t, 2, reg.Len())

	// nothing expired: sweep is side-effect-free
	assert.Zero(t, reg.Sweep())
	assert.Equal(t, 2, reg.Len())

	clock.Advance(2 * time.Minute)
	assert.Equal(t, 2, reg.Sweep())
	assert.Zero(t, reg.Sweep(), "redundant sweep must not double-count")
	assert.Equal(t, []string{"a", "b"}, audited)
	assert.Zero(t, reg.Len())
}

func TestRegistryEndCancelsLifecycle(t *testing.T) {
	clock := newFakeClock()
	reg := NewRegistry(testConfig()).WithClock(clock.Now)

	s := reg.Start("s1", testResult(), 3)
	reg.End("s1")

	_, ok := reg.Get("s1")
	assert.False(t, ok)
	assert.Equal(t, SessionPurged, s.State())

	clock.Advance(time.Hour)
	assert.Zero(t, reg.Sweep(), "ended sessions must not reappear in sweeps")
}

func TestRegistryEndAll(t *testing.T) {
	reg := NewRegistry(testConfig())

	var audited []string
	reg.OnPurge = func(id string) { audited = append(audited, id) }

	reg.Start("b", testResult(), 3)
	reg.Start("a", testResult(), 3)

	assert.Equal(t, 2, reg.EndAll())
	assert.Zero(t, reg.Len())
	assert.Equal(t, []string{"a", "b"}, audited)
}

func TestStartReplacesExistingSession(t *testing.T) {
	reg := NewRegistry(testConfig())

	first := reg.Start("s1", testResult(), 3)
	second := reg.Start("s1", testResult(), 3)

	got, ok := reg.Get("s1")
	require.True(t, ok)
	assert.Same(t, second, got)
	assert.NotSame(t, first, got)
}
