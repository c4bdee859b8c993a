// Package timestamp implements the logical clock value stored alongside every
// object: a 64-bit NTP time paired with the 128-bit identifier of the source
// that produced it.
//
// The time is an NTP64 value counted from the Unix epoch: the upper 32 bits hold
// whole seconds and the lower 32 bits the fraction of a second. The string form
// is "<decimal time>/<lowercase hex id>", the id printed without leading zeros.
//
// Timestamps are totally ordered by time, then by id.
package timestamp

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// IDSize is the maximum size of a source identifier in bytes.
const IDSize = 16

const fracPerSecond = 1 << 32

// NTP64 is a 64-bit fixed-point time since the Unix epoch.
type NTP64 uint64

// FromTime converts a wall-clock time to NTP64.
func FromTime(t time.Time) NTP64 {
	secs := uint64(t.Unix())
	frac := (uint64(t.Nanosecond()) * fracPerSecond) / uint64(time.Second)
	return NTP64(secs<<32 | frac)
}

// Time converts n back to a wall-clock time, truncated to nanoseconds.
func (n NTP64) Time() time.Time {
	secs := int64(n >> 32)
	nanos := (uint64(n&math.MaxUint32) * uint64(time.Second)) / fracPerSecond
	return time.Unix(secs, int64(nanos)).UTC()
}

// ID identifies the source of a timestamp. It is a big-endian 128-bit value
// and is never all zeros in a valid timestamp.
type ID [IDSize]byte

// ParseID parses the hexadecimal form of an identifier.
func ParseID(s string) (ID, error) {
	var id ID
	if s == "" || len(s) > 2*IDSize {
		return id, fmt.Errorf("invalid id %q: expected 1 to %d hex digits", s, 2*IDSize)
	}
	if len(s)%2 == 1 {
		s = "0" + s
	}
	raw, err := hex.DecodeString(strings.ToLower(s))
	if err != nil {
		return id, fmt.Errorf("invalid id %q: %w", s, err)
	}
	copy(id[IDSize-len(raw):], raw)
	if id.IsZero() {
		return id, fmt.Errorf("invalid id %q: must be non-zero", s)
	}
	return id, nil
}

// IsZero reports whether every byte of id is zero.
func (id ID) IsZero() bool {
	return id == ID{}
}

// String returns the lowercase hex form without leading zeros.
func (id ID) String() string {
	s := strings.TrimLeft(hex.EncodeToString(id[:]), "0")
	if s == "" {
		return "0"
	}
	return s
}

// Timestamp is a totally ordered logical clock value.
type Timestamp struct {
	Time NTP64
	ID   ID
}

// New returns a timestamp for the given time and source id.
func New(t NTP64, id ID) Timestamp {
	return Timestamp{Time: t, ID: id}
}

// Parse parses the "<time>/<id>" string form.
func Parse(s string) (Timestamp, error) {
	timePart, idPart, ok := strings.Cut(s, "/")
	if !ok {
		return Timestamp{}, fmt.Errorf("invalid timestamp %q: missing '/' separator", s)
	}
	t, err := strconv.ParseUint(timePart, 10, 64)
	if err != nil {
		return Timestamp{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	id, err := ParseID(idPart)
	if err != nil {
		return Timestamp{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return Timestamp{Time: NTP64(t), ID: id}, nil
}

// String returns the "<time>/<id>" form accepted by Parse.
func (ts Timestamp) String() string {
	return strconv.FormatUint(uint64(ts.Time), 10) + "/" + ts.ID.String()
}

// Compare returns -1, 0 or +1 depending on whether ts sorts before, equal to, or after o.
func (ts Timestamp) Compare(o Timestamp) int {
	switch {
	case ts.Time < o.Time:
		return -1
	case ts.Time > o.Time:
		return 1
	}
	return bytes.Compare(ts.ID[:], o.ID[:])
}

// Before reports whether ts sorts strictly before o.
func (ts Timestamp) Before(o Timestamp) bool {
	return ts.Compare(o) < 0
}

// IsZero reports whether ts is the zero value.
func (ts Timestamp) IsZero() bool {
	return ts.Time == 0 && ts.ID.IsZero()
}

// MarshalText implements encoding.TextMarshaler.
func (ts Timestamp) MarshalText() ([]byte, error) {
	return []byte(ts.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (ts *Timestamp) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*ts = parsed
	return nil
}
