package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	zoneRome   = "Europe/Rome"
	zoneTaipei = "Asia/Taipei"
	zoneLondon = "Europe/London"
)

func mustMoment(t *testing.T, s string) Moment {
	t.Helper()
	m, err := ParseMoment(s)
	require.NoError(t, err)
	return m
}

func TestLocalToUTC_RegularTime(t *testing.T) {
	conv := NewConverter(nil, Latest)

	result, err := conv.ParseLocalToUTC("2024-07-15 14:30", zoneRome)
	require.NoError(t, err)

	assert.Equal(t, "2024-07-15 14:30:00", result.Input.String())
	assert.Equal(t, zoneRome, result.Timezone)
	assert.Equal(t, "2024-07-15 12:30:00", result.Converted.String())
	assert.True(t, result.IsDST)
	assert.Equal(t, TransitionNone, result.Transition)
	assert.Equal(t, WallRegular, result.Wall)
}

func TestLocalToUTC_WinterTimeIsNotDST(t *testing.T) {
	conv := NewConverter(nil, Latest)

	result, err := conv.ParseLocalToUTC("2024-01-10 08:00", zoneLondon)
	require.NoError(t, err)

	assert.Equal(t, "2024-01-10 08:00:00", result.Converted.String())
	assert.False(t, result.IsDST)
	assert.Equal(t, TransitionNone, result.Transition)
}

func TestLocalToUTC_SpringForwardDay(t *testing.T) {
	conv := NewConverter(nil, Latest)

	result, err := conv.ParseLocalToUTC("2024-03-31 10:00", zoneRome)
	require.NoError(t, err)

	assert.Equal(t, SpringForward, result.Transition)
	assert.Equal(t, "2024-03-31 08:00:00", result.Converted.String())
	assert.True(t, result.IsDST)
}

func TestLocalToUTC_SkippedTimeIsFlagged(t *testing.T) {
	tests := []struct {
		name   string
		policy Disambiguation
		want   string
		dst    bool
	}{
		{name: "latest shifts forward", policy: Latest, want: "2024-03-31 01:30:00", dst: true},
		{name: "earliest shifts back", policy: Earliest, want: "2024-03-31 00:30:00", dst: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conv := NewConverter(nil, tt.policy)
			result, err := conv.ParseLocalToUTC("2024-03-31 02:30", zoneRome)
			require.NoError(t, err)

			assert.Equal(t, WallSkipped, result.Wall)
			assert.Equal(t, SpringForward, result.Transition)
			assert.Equal(t, tt.want, result.Converted.String())
			assert.Equal(t, tt.dst, result.IsDST)
		})
	}
}

func TestLocalToUTC_SkippedTimeStrict(t *testing.T) {
	conv := NewConverter(nil, Strict)

	_, err := conv.ParseLocalToUTC("2024-03-31 02:30", zoneRome)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNonExistentTime)
}

func TestLocalToUTC_RepeatedTime(t *testing.T) {
	tests := []struct {
		name   string
		policy Disambiguation
		want   string
		dst    bool
	}{
		{name: "latest takes second occurrence", policy: Latest, want: "2024-10-27 01:30:00", dst: false},
		{name: "earliest takes first occurrence", policy: Earliest, want: "2024-10-27 00:30:00", dst: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conv := NewConverter(nil, tt.policy)
			result, err := conv.ParseLocalToUTC("2024-10-27 02:30", zoneRome)
			require.NoError(t, err)

			assert.Equal(t, WallRepeated, result.Wall)
			assert.Equal(t, FallBack, result.Transition)
			assert.Equal(t, tt.want, result.Converted.String())
			assert.Equal(t, tt.dst, result.IsDST)
		})
	}
}

func TestLocalToUTC_RepeatedTimeStrict(t *testing.T) {
	conv := NewConverter(nil, Strict)

	_, err := conv.ParseLocalToUTC("2024-10-27 02:30", zoneRome)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAmbiguousTime)
}

func TestIsDST_MeansSummerTime(t *testing.T) {
	conv := NewConverter(nil, Latest)

	tests := []struct {
		zone  string
		local string
		dst   bool
	}{
		{"Europe/Dublin", "2024-07-01 12:00", true},
		{"Europe/Dublin", "2024-01-15 12:00", false},
		{zoneLondon, "2024-07-01 12:00", true},
		{"Australia/Sydney", "2024-01-15 12:00", true},
		{"Australia/Sydney", "2024-07-01 12:00", false},
		{zoneTaipei, "2024-07-01 12:00", false},
	}
	for _, tt := range tests {
		t.Run(tt.zone+" "+tt.local, func(t *testing.T) {
			local, err := conv.ParseLocalToUTC(tt.local, tt.zone)
			require.NoError(t, err)
			assert.Equal(t, tt.dst, local.IsDST)

			back, err := conv.UTCToLocal(local.Converted, tt.zone)
			require.NoError(t, err)
			assert.Equal(t, tt.dst, back.IsDST)
		})
	}

	day, err := conv.Day(mustMoment(t, "2024-07-01"), "Europe/Dublin")
	require.NoError(t, err)
	for _, h := range day.Hours {
		assert.True(t, h.IsDST, h.Local.String())
	}
}

func TestUTCToLocal_TaipeiHasNoDST(t *testing.T) {
	conv := NewConverter(nil, Latest)

	result, err := conv.ParseUTCToLocal("2024-10-27 01:30", zoneTaipei)
	require.NoError(t, err)

	assert.Equal(t, "2024-10-27 09:30:00", result.Converted.String())
	assert.False(t, result.IsDST)
	assert.Equal(t, TransitionNone, result.Transition)
	assert.Equal(t, WallRegular, result.Wall)
}

func TestUTCToLocal_TransitionAnchoredToUTCDay(t *testing.T) {
	conv := NewConverter(nil, Latest)

	spring, err := conv.ParseUTCToLocal("2024-03-31 12:00", zoneRome)
	require.NoError(t, err)
	assert.Equal(t, SpringForward, spring.Transition)
	assert.Equal(t, "2024-03-31 14:00:00", spring.Converted.String())
	assert.True(t, spring.IsDST)

	fall, err := conv.ParseUTCToLocal("2024-10-27 23:00", zoneRome)
	require.NoError(t, err)
	assert.Equal(t, FallBack, fall.Transition)
	assert.Equal(t, "2024-10-28 00:00:00", fall.Converted.String())
	assert.False(t, fall.IsDST)
}

func TestUTCToLocal_FlagsRepeatedLocalReading(t *testing.T) {
	conv := NewConverter(nil, Latest)

	first, err := conv.ParseUTCToLocal("2024-10-27 00:30", zoneRome)
	require.NoError(t, err)
	second, err := conv.ParseUTCToLocal("2024-10-27 01:30", zoneRome)
	require.NoError(t, err)

	assert.Equal(t, first.Converted, second.Converted)
	assert.Equal(t, WallRepeated, first.Wall)
	assert.Equal(t, WallRepeated, second.Wall)
	assert.True(t, first.IsDST)
	assert.False(t, second.IsDST)
}

func TestRoundTrip_AwayFromTransitions(t *testing.T) {
	conv := NewConverter(nil, Latest)
	zones := []string{zoneRome, zoneLondon, zoneTaipei, "America/Toronto", "Australia/Sydney", "Asia/Kolkata", "UTC"}
	inputs := []string{"2024-01-01 00:00", "2024-03-30 23:15", "2024-06-21 12:00", "2024-10-26 18:45", "2024-12-31 23:59:59"}

	for _, zone := range zones {
		for _, in := range inputs {
			toUTC, err := conv.ParseLocalToUTC(in, zone)
			require.NoError(t, err, "%s %s", zone, in)
			back, err := conv.UTCToLocal(toUTC.Converted, zone)
			require.NoError(t, err, "%s %s", zone, in)

			assert.True(t, back.Converted.Equal(mustMoment(t, in)), "%s %s round-tripped to %s", zone, in, back.Converted)
		}
	}
}

func TestConversion_IsIdempotent(t *testing.T) {
	conv := NewConverter(nil, Latest)

	first, err := conv.ParseLocalToUTC("2024-10-27 02:30", zoneRome)
	require.NoError(t, err)
	second, err := conv.ParseLocalToUTC("2024-10-27 02:30", zoneRome)
	require.NoError(t, err)

	if diff := cmp.Diff(first, second, cmp.Comparer(func(a, b Moment) bool { return a.Equal(b) })); diff != "" {
		t.Fatalf("repeated conversion differs (-first +second):\n%s", diff)
	}
}

func TestConversion_UnknownTimezone(t *testing.T) {
	conv := NewConverter(nil, Latest)

	_, err := conv.ParseLocalToUTC("2024-03-31 02:30", "Mars/Colony")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownTimezone)

	_, err = conv.ParseUTCToLocal("2024-03-31 02:30", "Mars/Colony")
	assert.ErrorIs(t, err, ErrUnknownTimezone)
}

func TestConversion_MalformedInput(t *testing.T) {
	conv := NewConverter(nil, Latest)

	_, err := conv.ParseLocalToUTC("31-03-2024", zoneRome)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrParse)

	_, err = conv.ParseUTCToLocal("yesterday", zoneRome)
	assert.ErrorIs(t, err, ErrParse)
}

func TestConversion_DSTAnomaly(t *testing.T) {
	conv := NewConverter(nil, Latest)

	// Samoa skipped 30 December 2011 when it crossed the date line.
	_, err := conv.ParseLocalToUTC("2011-12-30 12:00", "Pacific/Apia")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDSTAnomaly)

	_, err = conv.ParseUTCToLocal("2011-12-30 12:00", "Pacific/Apia")
	assert.ErrorIs(t, err, ErrDSTAnomaly)
}

func TestDay_SpringForward(t *testing.T) {
	conv := NewConverter(nil, Latest)

	day, err := conv.Day(mustMoment(t, "2024-03-31 15:00"), zoneRome)
	require.NoError(t, err)

	assert.Equal(t, SpringForward, day.Transition)
	assert.Equal(t, "2024-03-31 00:00:00", day.Date.String())
	require.Len(t, day.Hours, 23)
	for _, slot := range day.Hours {
		assert.NotEqual(t, 2, slot.Local.Hour(), "02:00 does not exist on this day")
		assert.False(t, slot.Repeated)
	}
	assert.Equal(t, "2024-03-30 23:00:00", day.Hours[0].UTC.String())
	assert.Equal(t, "2024-03-31 03:00:00", day.Hours[2].Local.String())
}

func TestDay_FallBack(t *testing.T) {
	conv := NewConverter(nil, Latest)

	day, err := conv.Day(mustMoment(t, "2024-10-27"), zoneRome)
	require.NoError(t, err)

	assert.Equal(t, FallBack, day.Transition)
	require.Len(t, day.Hours, 25)

	var repeated []HourSlot
	for _, slot := range day.Hours {
		if slot.Repeated {
			repeated = append(repeated, slot)
		}
	}
	require.Len(t, repeated, 2)
	assert.Equal(t, "2024-10-27 02:00:00", repeated[0].Local.String())
	assert.True(t, repeated[0].IsDST)
	assert.False(t, repeated[1].IsDST)
	assert.Equal(t, "2024-10-27 00:00:00", repeated[0].UTC.String())
	assert.Equal(t, "2024-10-27 01:00:00", repeated[1].UTC.String())
}

func TestDay_MidnightTransition(t *testing.T) {
	conv := NewConverter(nil, Latest)

	// Havana springs forward at midnight, so the day starts at 01:00.
	day, err := conv.Day(mustMoment(t, "2024-03-10"), "America/Havana")
	require.NoError(t, err)

	assert.Equal(t, SpringForward, day.Transition)
	require.Len(t, day.Hours, 23)
	assert.Equal(t, "2024-03-10 01:00:00", day.Hours[0].Local.String())
}

func TestDay_UnknownTimezone(t *testing.T) {
	conv := NewConverter(nil, Latest)

	_, err := conv.Day(mustMoment(t, "2024-10-27"), "Mars/Colony")
	assert.True(t, errors.Is(err, ErrUnknownTimezone))
}

func TestParseDisambiguation(t *testing.T) {
	tests := map[string]Disambiguation{
		"":         Latest,
		"latest":   Latest,
		"EARLIEST": Earliest,
		"strict":   Strict,
		"raise":    Strict,
	}
	for in, want := range tests {
		got, err := ParseDisambiguation(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseDisambiguation("guess")
	assert.Error(t, err)
	assert.Equal(t, "earliest", Earliest.String())
}

func TestClassifyDay(t *testing.T) {
	date := NewMoment(2024, time.March, 31, 0, 0, 0, 0)

	got, err := classifyDay(23*time.Hour+30*time.Minute, zoneRome, date)
	require.NoError(t, err)
	assert.Equal(t, TransitionNone, got, "half-hour shifts round up to a full day")

	_, err = classifyDay(22*time.Hour, zoneRome, date)
	require.ErrorIs(t, err, ErrDSTAnomaly)
	assert.Contains(t, err.Error(), "22 hours")
}
