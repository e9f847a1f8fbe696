package intake

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/testgpt-run/testgpt/internal/domain"
)

func newIntake(t *testing.T) *Intake {
	t.Helper()
	return New(zerolog.Nop(), filepath.Join(t.TempDir(), ".intake.lock"))
}

func validEvent(id string) domain.Event {
	return domain.Event{
		EventID:   id,
		Timestamp: time.Now(),
		Channel:   "slack",
		User:      "u1",
		Body:      "@testgpt test the signup flow at https://example.com",
	}
}

func TestAdmitAcceptsValidFreshEvent(t *testing.T) {
	in := newIntake(t)
	release, err := in.Admit(validEvent("e1"))
	require.NoError(t, err)
	require.NotNil(t, release)
	release()
}

func TestAdmitRejectsDuplicateEventID(t *testing.T) {
	in := newIntake(t)
	release, err := in.Admit(validEvent("e1"))
	require.NoError(t, err)
	release()

	_, err = in.Admit(validEvent("e1"))
	require.ErrorIs(t, err, ErrDuplicate)
}

func TestAdmitRejectsStaleEvent(t *testing.T) {
	in := newIntake(t)
	ev := validEvent("e1")
	ev.Timestamp = time.Now().Add(-400 * time.Second)

	_, err := in.Admit(ev)
	require.ErrorIs(t, err, ErrStale)
}

func TestAdmitRejectsEmptyBody(t *testing.T) {
	in := newIntake(t)
	ev := validEvent("e1")
	ev.Body = "   "

	_, err := in.Admit(ev)
	require.ErrorIs(t, err, ErrInvalid)
}

func TestAdmitRejectsMissingAddressingToken(t *testing.T) {
	in := newIntake(t)
	ev := validEvent("e1")
	ev.Body = "test the signup flow at https://example.com"

	_, err := in.Admit(ev)
	require.ErrorIs(t, err, ErrInvalid)
}

func TestAdmitRejectsBusyWhileOrchestrationInFlight(t *testing.T) {
	in := newIntake(t)
	release, err := in.Admit(validEvent("e1"))
	require.NoError(t, err)

	_, err = in.Admit(validEvent("e2"))
	require.ErrorIs(t, err, ErrBusy)

	release()
	release2, err := in.Admit(validEvent("e3"))
	require.NoError(t, err)
	release2()
}

func TestMessageStripsAddressingToken(t *testing.T) {
	require.Equal(t, "test the signup flow", Message("@testgpt test the signup flow"))
}

func TestDedupWindowEvictsOldest(t *testing.T) {
	in := newIntake(t)
	for i := 0; i <= dedupWindow; i++ {
		release, err := in.Admit(validEvent(eventID(i)))
		require.NoError(t, err)
		release()
	}
	// dedupWindow+1 distinct events have been seen, so e0 should have
	// been evicted and is admissible again.
	release, err := in.Admit(validEvent(eventID(0)))
	require.NoError(t, err)
	release()
}

func eventID(i int) string {
	return "evict-" + string(rune('a'+i%26)) + string(rune('0'+i/26))
}
