// Package intake implements Event Intake (C9): the front door that
// deduplicates, freshness-filters, backpressures, and validates
// inbound events before they reach the Orchestrator (§4.9).
package intake

import (
	"container/list"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog"

	"github.com/testgpt-run/testgpt/internal/domain"
)

// ErrBusy is returned when an orchestration is already in flight
// (§4.9's reject-with-busy backpressure policy).
var ErrBusy = errors.New("an orchestration is already in progress")

// ErrDuplicate is returned for an event_id seen within the recently-
// seen window.
var ErrDuplicate = errors.New("duplicate event")

// ErrStale is returned for an event older than the freshness threshold.
var ErrStale = errors.New("event too old")

// ErrInvalid is returned for a missing body or unrecognized addressing
// token.
var ErrInvalid = errors.New("invalid event")

const (
	dedupWindow       = 1000
	freshnessWindow   = 300 * time.Second
	addressingPrefix  = "@testgpt"
)

// Intake is the single front door for one intake scope. Safe for
// concurrent use; enforces at most one active orchestration at a time
// via an in-process flag plus a flock on lockPath, so the rule holds
// both within this process and across separate process instances
// sharing the same storage root (§4.9, §5).
type Intake struct {
	log  zerolog.Logger
	lock *flock.Flock

	mu       sync.Mutex
	seen     map[string]*list.Element
	order    *list.List // front = most recently seen
	inFlight bool       // an admitted orchestration has not been released yet
}

// New creates an Intake whose single-in-flight gate is backed by a
// flock file at lockPath (conventionally <storage_root>/.intake.lock).
func New(log zerolog.Logger, lockPath string) *Intake {
	return &Intake{
		log:   log,
		lock:  flock.New(lockPath),
		seen:  make(map[string]*list.Element),
		order: list.New(),
	}
}

// Admit validates, deduplicates, and freshness-filters an event, then
// returns a release function that must be called when the resulting
// orchestration finishes — it drops the single-in-flight gate for the
// next event. On any rejection, release is nil and the returned error
// names why (§4.9).
func (in *Intake) Admit(ev domain.Event) (release func(), err error) {
	if err := validate(ev); err != nil {
		return nil, err
	}

	if time.Since(ev.Timestamp) > freshnessWindow {
		in.log.Debug().Str("event_id", ev.EventID).Msg("dropping stale event")
		return nil, ErrStale
	}

	if in.markSeen(ev.EventID) {
		in.log.Debug().Str("event_id", ev.EventID).Msg("dropping duplicate event")
		return nil, ErrDuplicate
	}

	in.mu.Lock()
	defer in.mu.Unlock()
	if in.inFlight {
		return nil, ErrBusy
	}
	locked, err := in.lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring intake lock: %w", err)
	}
	if !locked {
		return nil, ErrBusy
	}
	in.inFlight = true

	var once sync.Once
	return func() {
		once.Do(func() {
			if err := in.lock.Unlock(); err != nil {
				in.log.Warn().Err(err).Msg("failed to release intake lock")
			}
			in.mu.Lock()
			in.inFlight = false
			in.mu.Unlock()
		})
	}, nil
}

// markSeen records event_id in the bounded recently-seen set, evicting
// the oldest entry once the window is full, and reports whether it was
// already present (§4.9: "duplicate → drop silently").
func (in *Intake) markSeen(eventID string) (duplicate bool) {
	in.mu.Lock()
	defer in.mu.Unlock()

	if _, ok := in.seen[eventID]; ok {
		return true
	}

	elem := in.order.PushFront(eventID)
	in.seen[eventID] = elem

	if in.order.Len() > dedupWindow {
		oldest := in.order.Back()
		in.order.Remove(oldest)
		delete(in.seen, oldest.Value.(string))
	}
	return false
}

func validate(ev domain.Event) error {
	body := strings.TrimSpace(ev.Body)
	if body == "" {
		return ErrInvalid
	}
	if !strings.HasPrefix(body, addressingPrefix) && !strings.Contains(body, addressingPrefix) {
		return fmt.Errorf("%w: missing addressing token", ErrInvalid)
	}
	return nil
}

// Message strips the addressing token from an admitted event's body,
// returning the text the Parser should receive.
func Message(body string) string {
	stripped := strings.Replace(body, addressingPrefix, "", 1)
	return strings.TrimSpace(stripped)
}
