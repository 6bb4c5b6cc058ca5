package cftime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/nimbo/errs"
)

func date(y int, mo time.Month, d, h, mi, s, ms int) time.Time {
	return time.Date(y, mo, d, h, mi, s, ms*int(time.Millisecond), time.UTC)
}

func TestParse(t *testing.T) {
	t.Run("DaysWithTimeOfDay", func(t *testing.T) {
		u, err := Parse("days since 2000-01-01 00:00:00")
		require.NoError(t, err)
		require.Equal(t, UnitDays, u.Unit())
		require.Equal(t, date(2000, 1, 1, 0, 0, 0, 0), u.Epoch())
	})

	t.Run("HoursSinceUnixEpoch", func(t *testing.T) {
		u, err := Parse("hours since 1970-01-01 00:00:00")
		require.NoError(t, err)
		require.Equal(t, UnitHours, u.Unit())
		require.Equal(t, date(1970, 1, 1, 1, 0, 0, 0), u.Decode(1))
	})

	t.Run("BareDateMeansMidnight", func(t *testing.T) {
		u, err := Parse("seconds since 1981-05-29")
		require.NoError(t, err)
		require.Equal(t, date(1981, 5, 29, 0, 0, 0, 0), u.Epoch())
	})

	t.Run("CaseInsensitiveUnit", func(t *testing.T) {
		u, err := Parse("DAYS Since 2000-01-01")
		require.NoError(t, err)
		require.Equal(t, UnitDays, u.Unit())
	})

	t.Run("SingularUnit", func(t *testing.T) {
		u, err := Parse("hour since 2000-01-01")
		require.NoError(t, err)
		require.Equal(t, UnitHours, u.Unit())
	})

	t.Run("AbbreviatedUnit", func(t *testing.T) {
		u, err := Parse("secs since 2000-01-01")
		require.NoError(t, err)
		require.Equal(t, UnitSeconds, u.Unit())
	})

	t.Run("TSeparator", func(t *testing.T) {
		u, err := Parse("minutes since 1990-06-15T12:30:00")
		require.NoError(t, err)
		require.Equal(t, date(1990, 6, 15, 12, 30, 0, 0), u.Epoch())
	})

	t.Run("FractionalSecondsReference", func(t *testing.T) {
		u, err := Parse("seconds since 1900-01-01 00:00:00.5")
		require.NoError(t, err)
		require.Equal(t, date(1900, 1, 1, 0, 0, 0, 500), u.Epoch())
	})

	t.Run("ExtraWhitespace", func(t *testing.T) {
		u, err := Parse("  days   since   2000-01-01  00:00:00 ")
		require.NoError(t, err)
		require.Equal(t, UnitDays, u.Unit())
		require.Equal(t, date(2000, 1, 1, 0, 0, 0, 0), u.Epoch())
	})

	t.Run("NotTimeUnits", func(t *testing.T) {
		for _, s := range []string{"", "kelvin", "degrees_north", "m/s", "since"} {
			_, err := Parse(s)
			require.ErrorIs(t, err, errs.ErrNotTimeUnits, "units %q", s)
		}
	})

	t.Run("UnknownUnit", func(t *testing.T) {
		_, err := Parse("fortnights since 2000-01-01")
		require.ErrorIs(t, err, errs.ErrUnknownTimeUnit)
	})

	t.Run("BadReferenceTime", func(t *testing.T) {
		_, err := Parse("days since the big bang")
		require.ErrorIs(t, err, errs.ErrBadReferenceTime)

		_, err = Parse("days since 2000-13-45")
		require.ErrorIs(t, err, errs.ErrBadReferenceTime)
	})
}

func TestIsTimeString(t *testing.T) {
	require.True(t, IsTimeString("days since 2000-01-01"))
	require.True(t, IsTimeString("fortnights since whenever"))
	require.False(t, IsTimeString("kelvin"))
	require.False(t, IsTimeString("since 2000-01-01"))
	require.False(t, IsTimeString(""))
}

func TestUnits_Decode(t *testing.T) {
	t.Run("WholeDays", func(t *testing.T) {
		u, err := Parse("days since 2000-01-01 00:00:00")
		require.NoError(t, err)
		require.Equal(t, date(2000, 1, 1, 0, 0, 0, 0), u.Decode(0))
		require.Equal(t, date(2000, 1, 11, 0, 0, 0, 0), u.Decode(10))
	})

	t.Run("FractionalDays", func(t *testing.T) {
		u, err := Parse("days since 2000-01-01 00:00:00")
		require.NoError(t, err)
		require.Equal(t, date(2000, 1, 2, 12, 0, 0, 0), u.Decode(1.5))
	})

	t.Run("NegativeValues", func(t *testing.T) {
		u, err := Parse("hours since 2000-01-01 00:00:00")
		require.NoError(t, err)
		require.Equal(t, date(1999, 12, 31, 18, 0, 0, 0), u.Decode(-6))
	})

	t.Run("RoundsHalfAwayFromZero", func(t *testing.T) {
		u, err := Parse("seconds since 2000-01-01 00:00:00")
		require.NoError(t, err)
		// 0.0005 s = 0.5 ms rounds up to 1 ms, -0.0005 s rounds down to -1 ms.
		require.Equal(t, date(2000, 1, 1, 0, 0, 0, 1), u.Decode(0.0005))
		require.Equal(t, date(1999, 12, 31, 23, 59, 59, 999), u.Decode(-0.0005))
	})

	t.Run("Milliseconds", func(t *testing.T) {
		u, err := Parse("milliseconds since 2000-01-01 00:00:00")
		require.NoError(t, err)
		require.Equal(t, date(2000, 1, 1, 0, 0, 0, 250), u.Decode(250))
	})
}

func TestUnits_Encode(t *testing.T) {
	u, err := Parse("days since 2000-01-01 00:00:00")
	require.NoError(t, err)

	t.Run("WholeDays", func(t *testing.T) {
		require.Equal(t, 10.0, u.Encode(date(2000, 1, 11, 0, 0, 0, 0)))
	})

	t.Run("FractionalDays", func(t *testing.T) {
		require.Equal(t, 1.5, u.Encode(date(2000, 1, 2, 12, 0, 0, 0)))
	})

	t.Run("BeforeEpochIsNegative", func(t *testing.T) {
		require.Equal(t, -1.0, u.Encode(date(1999, 12, 31, 0, 0, 0, 0)))
	})
}

func TestUnits_RoundTrip(t *testing.T) {
	t.Run("EncodeThenDecode", func(t *testing.T) {
		for _, spec := range []string{
			"milliseconds since 1970-01-01",
			"seconds since 1970-01-01 00:00:00",
			"minutes since 1970-01-01 00:00:00",
			"hours since 1900-01-01 00:00:00",
			"days since 2000-01-01 00:00:00",
		} {
			u, err := Parse(spec)
			require.NoError(t, err)

			for _, ts := range []time.Time{
				date(1969, 7, 20, 20, 17, 40, 0),
				date(2000, 1, 1, 0, 0, 0, 0),
				date(2024, 2, 29, 23, 59, 59, 999),
				date(2100, 6, 1, 3, 30, 0, 1),
			} {
				require.Equal(t, ts, u.Decode(u.Encode(ts)), "units %q time %v", spec, ts)
			}
		}
	})

	t.Run("DecodeThenEncode", func(t *testing.T) {
		u, err := Parse("hours since 1970-01-01 00:00:00")
		require.NoError(t, err)

		for _, v := range []float64{0, 1, -1, 24, 1e6, 0.25} {
			require.Equal(t, v, u.Encode(u.Decode(v)))
		}
	})
}

func TestUnits_Slices(t *testing.T) {
	u, err := Parse("days since 2000-01-01 00:00:00")
	require.NoError(t, err)

	times := u.DecodeSlice([]float64{0, 1, 2})
	require.Len(t, times, 3)
	require.Equal(t, date(2000, 1, 3, 0, 0, 0, 0), times[2])

	values := u.EncodeSlice(times)
	require.Equal(t, []float64{0, 1, 2}, values)

	require.Empty(t, u.DecodeSlice(nil))
	require.Empty(t, u.EncodeSlice(nil))
}

func TestUnits_String(t *testing.T) {
	u, err := Parse("days since 2000-01-01")
	require.NoError(t, err)
	require.Equal(t, "days since 2000-01-01 00:00:00", u.String())

	u = New(UnitSeconds, date(1970, 1, 1, 0, 0, 0, 0))
	require.Equal(t, "seconds since 1970-01-01 00:00:00", u.String())
}

func TestNew_TruncatesToMilliseconds(t *testing.T) {
	epoch := time.Date(2000, 1, 1, 0, 0, 0, 123_456_789, time.UTC)
	u := New(UnitSeconds, epoch)
	require.Equal(t, date(2000, 1, 1, 0, 0, 0, 123), u.Epoch())
}
