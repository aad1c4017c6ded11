package civiltime

import (
	"encoding/json"
	"time"
)

// InvalidString is how an invalid instant renders.
const InvalidString = "Invalid Date"

// isoMillis is the UTC rendering used for instants, e.g.
// 2026-01-26T23:00:00.000Z.
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

// Instant is an absolute point in time, or the invalid instant that
// stands for input naming no calendar date/time. The zero value is invalid.
type Instant struct {
	t     time.Time
	valid bool
}

// At wraps t as a valid instant.
func At(t time.Time) Instant {
	return Instant{t: t, valid: true}
}

// Invalid returns the invalid instant.
func Invalid() Instant {
	return Instant{}
}

func (i Instant) Valid() bool {
	return i.valid
}

// Time returns the instant in UTC. The result is the zero time for an
// invalid instant; check Valid first.
func (i Instant) Time() time.Time {
	if !i.valid {
		return time.Time{}
	}
	return i.t.UTC()
}

// In returns the instant in loc. ok is false for an invalid instant.
func (i Instant) In(loc *time.Location) (t time.Time, ok bool) {
	if !i.valid {
		return time.Time{}, false
	}
	return i.t.In(loc), true
}

// Add offsets the instant by elapsed time. An invalid instant stays invalid.
func (i Instant) Add(d time.Duration) Instant {
	if !i.valid {
		return i
	}
	return At(i.t.Add(d))
}

// Equal reports whether both instants denote the same moment. Two invalid
// instants are never equal, mirroring NaN.
func (i Instant) Equal(o Instant) bool {
	return i.valid && o.valid && i.t.Equal(o.t)
}

func (i Instant) String() string {
	if !i.valid {
		return InvalidString
	}
	return i.t.UTC().Format(isoMillis)
}

// MarshalJSON encodes a valid instant as an ISO string and an invalid one
// as null.
func (i Instant) MarshalJSON() ([]byte, error) {
	if !i.valid {
		return []byte("null"), nil
	}
	return json.Marshal(i.String())
}
