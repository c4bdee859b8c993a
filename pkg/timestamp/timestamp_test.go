package timestamp

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustID(t *testing.T, s string) ID {
	t.Helper()
	id, err := ParseID(s)
	require.NoError(t, err)
	return id
}

func TestParse_RoundTrip(t *testing.T) {
	t.Parallel()

	for _, s := range []string{
		"7386690599959157260/33",
		"0/1",
		"18446744073709551615/ffffffffffffffffffffffffffffffff",
		"7386690599959157260/a1b2c3",
	} {
		t.Run(s, func(t *testing.T) {
			ts, err := Parse(s)
			require.NoError(t, err)
			assert.Equal(t, s, ts.String())
		})
	}
}

func TestParse_NormalizesID(t *testing.T) {
	t.Parallel()

	ts, err := Parse("42/00AB")
	require.NoError(t, err)
	assert.Equal(t, "42/ab", ts.String())
}

func TestParse_Invalid(t *testing.T) {
	t.Parallel()

	for _, s := range []string{
		"",
		"42",
		"abc/1",
		"-1/1",
		"42/",
		"42/0",
		"42/xyz",
		"42/123456789012345678901234567890123",
	} {
		t.Run(s, func(t *testing.T) {
			_, err := Parse(s)
			assert.Error(t, err)
		})
	}
}

func TestCompare(t *testing.T) {
	t.Parallel()

	a := New(100, mustID(t, "1"))
	b := New(100, mustID(t, "2"))
	c := New(101, mustID(t, "1"))

	assert.Equal(t, 0, a.Compare(a))
	assert.Equal(t, -1, a.Compare(b))
	assert.Equal(t, 1, b.Compare(a))
	assert.True(t, b.Before(c), "time dominates id")
	assert.False(t, c.Before(b))

	list := []Timestamp{c, b, a}
	sort.Slice(list, func(i, j int) bool { return list[i].Before(list[j]) })
	assert.Equal(t, []Timestamp{a, b, c}, list)
}

func TestNTP64_TimeConversion(t *testing.T) {
	t.Parallel()

	wall := time.Date(2024, 3, 15, 10, 30, 0, 500_000_000, time.UTC)
	n := FromTime(wall)

	assert.Equal(t, uint64(wall.Unix()), uint64(n>>32))
	assert.Equal(t, uint64(1<<31), uint64(n&0xffffffff), "half a second is half the fraction range")
	assert.WithinDuration(t, wall, n.Time(), time.Nanosecond)
}

func TestTextMarshaling(t *testing.T) {
	t.Parallel()

	var ts Timestamp
	require.NoError(t, ts.UnmarshalText([]byte("12345/beef")))
	assert.Equal(t, NTP64(12345), ts.Time)

	out, err := ts.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "12345/beef", string(out))

	assert.Error(t, ts.UnmarshalText([]byte("nope")))
}

func TestZeroValues(t *testing.T) {
	t.Parallel()

	assert.True(t, Timestamp{}.IsZero())
	assert.True(t, ID{}.IsZero())
	assert.Equal(t, "0", ID{}.String())
	assert.False(t, New(1, mustID(t, "1")).IsZero())
}
