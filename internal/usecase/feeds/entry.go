package feeds

import (
	"fmt"
	"time"
)

// Status is the lifecycle of a cache slot.
type Status int

const (
	StatusIdle Status = iota
	StatusFetching
	StatusFresh
	StatusStale
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusFetching:
		return "fetching"
	case StatusFresh:
		return "fresh"
	case StatusStale:
		return "stale"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Status) UnmarshalText(b []byte) error {
	for st := StatusIdle; st <= StatusError; st++ {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown feed status %q", b)
}

// Entry is a point-in-time copy of a cache slot. Value is the last successful
// payload and survives later failures; Err describes the latest failure.
type Entry struct {
	Key       Key
	Value     any
	FetchedAt time.Time
	Status    Status
	Err       error
}

// HasValue reports whether a payload has ever been obtained.
func (e Entry) HasValue() bool { return e.Value != nil }

type slot struct {
	value     any
	fetchedAt time.Time
	status    Status
	err       error
	inFlight  bool
	interval  time.Duration
	restored  bool
}

// view derives the public entry, ageing Fresh into Stale once the refresh
// interval has elapsed.
func (s *slot) view(key Key, now time.Time) Entry {
	e := Entry{Key: key, Value: s.value, FetchedAt: s.fetchedAt, Status: s.status, Err: s.err}
	if e.Status == StatusFresh && s.interval > 0 && now.Sub(s.fetchedAt) > s.interval {
		e.Status = StatusStale
	}
	return e
}

// freshFor returns how long the slot stays fresh, or 0 when a fetch is due.
func (s *slot) freshFor(now time.Time) time.Duration {
	if s.status != StatusFresh || s.interval <= 0 {
		return 0
	}
	if left := s.interval - now.Sub(s.fetchedAt); left > 0 {
		return left
	}
	return 0
}
