package timeperiod

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentifierWeekendMorningIsNotAMPeak(t *testing.T) {
	spec, err := NewSpec("am-only", map[string][]Window{
		"AM Peak": {{Days: Weekdays, StartHour: 6, EndHour: 9}},
	})
	require.NoError(t, err)
	id := NewIdentifier(spec)

	_, ok := id.TimePeriod(time.Saturday, 7)
	assert.False(t, ok)

	tp, ok := id.TimePeriod(time.Wednesday, 7)
	assert.True(t, ok)
	assert.Equal(t, "AM Peak", tp)

	_, ok = id.TimePeriod(time.Wednesday, 9)
	assert.False(t, ok)
}

func TestPM3Spec(t *testing.T) {
	spec, err := Lookup(PM3)
	require.NoError(t, err)
	id := NewIdentifier(spec)

	cases := []struct {
		dow  time.Weekday
		hour int
		want string
	}{
		{time.Monday, 6, AMP},
		{time.Friday, 9, AMP},
		{time.Tuesday, 10, MIDD},
		{time.Thursday, 15, MIDD},
		{time.Wednesday, 16, PMP},
		{time.Wednesday, 19, PMP},
		{time.Saturday, 6, WE},
		{time.Sunday, 19, WE},
		{time.Sunday, 20, OVN},
		{time.Monday, 0, OVN},
		{time.Saturday, 5, OVN},
		{time.Friday, 23, OVN},
	}
	for _, c := range cases {
		tp, ok := id.TimePeriod(c.dow, c.hour)
		assert.True(t, ok, "%s %d", c.dow, c.hour)
		assert.Equal(t, c.want, tp, "%s %d", c.dow, c.hour)
	}

	// PM3 covers every hour of the week exactly once.
	for dow := time.Sunday; dow <= time.Saturday; dow++ {
		for hour := 0; hour < 24; hour++ {
			_, ok := id.TimePeriod(dow, hour)
			assert.True(t, ok)
		}
	}
	assert.Equal(t, []string{AMP, MIDD, OVN, PMP, WE}, spec.Periods())
}

func TestTimePeriodForBin(t *testing.T) {
	spec, err := Lookup(PM3AltPeaks)
	require.NoError(t, err)
	id := NewIdentifier(spec)

	// 15-minute bin 39 starts at 09:45.
	tp, ok := id.TimePeriodForBin(time.Monday, 39, 15)
	assert.True(t, ok)
	assert.Equal(t, AMP, tp)

	_, ok = id.TimePeriodForBin(time.Monday, 40, 15)
	assert.False(t, ok)

	tp, ok = id.TimePeriodForBin(time.Monday, 15, 60)
	assert.True(t, ok)
	assert.Equal(t, PMP, tp)

	_, ok = id.TimePeriodForBin(time.Monday, 500, 5)
	assert.False(t, ok)
}

func TestNewSpecRejectsOverlap(t *testing.T) {
	_, err := NewSpec("bad", map[string][]Window{
		"A": {{Days: Weekdays, StartHour: 6, EndHour: 10}},
		"B": {{Days: Days(time.Friday), StartHour: 9, EndHour: 12}},
	})
	assert.ErrorIs(t, err, ErrOverlap)
}

func TestNewSpecRejectsInvalidWindows(t *testing.T) {
	_, err := NewSpec("bad", map[string][]Window{"A": {{Days: 0, StartHour: 1, EndHour: 2}}})
	assert.Error(t, err)
	_, err = NewSpec("bad", map[string][]Window{"A": {{Days: Weekdays, StartHour: 5, EndHour: 5}}})
	assert.Error(t, err)
	_, err = NewSpec("bad", map[string][]Window{"A": {{Days: Weekdays, StartHour: 5, EndHour: 25}}})
	assert.Error(t, err)
	_, err = NewSpec("bad", map[string][]Window{"A": nil})
	assert.Error(t, err)
}

func TestPick(t *testing.T) {
	spec, err := Lookup(PM3)
	require.NoError(t, err)

	peaks, err := spec.Pick("peaks", AMP, PMP)
	require.NoError(t, err)
	assert.Equal(t, []string{AMP, PMP}, peaks.Periods())
	assert.Equal(t, "peaks", peaks.Name())

	_, err = spec.Pick("nope", "XYZ")
	assert.Error(t, err)
}

func TestLookup(t *testing.T) {
	_, err := Lookup("NOT_A_SPEC")
	assert.ErrorIs(t, err, ErrUnknownSpec)
	_, err = Lookup(MeasureDefault)
	assert.ErrorIs(t, err, ErrUnknownSpec)
	assert.Contains(t, Names(), MeasureDefault)
	assert.Contains(t, Names(), PM3)
}
