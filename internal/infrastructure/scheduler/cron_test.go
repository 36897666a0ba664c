package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCronExpression(t *testing.T) {
	tests := []struct {
		name    string
		expr    string
		wantErr bool
	}{
		{"every 15 minutes", "*/15 * * * *", false},
		{"daily at 02:30", "30 2 * * *", false},
		{"weekday range", "0 9 * * 1-5", false},
		{"list", "0,30 * * * *", false},
		{"range with step", "0-30/10 * * * *", false},
		{"too few fields", "* * * *", true},
		{"minute out of range", "60 * * * *", true},
		{"bad step", "*/0 * * * *", true},
		{"inverted range", "10-5 * * * *", true},
		{"garbage", "a * * * *", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCronExpression(tt.expr)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseField(t *testing.T) {
	v, err := parseField("0-30/10", 0, 59)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 10, 20, 30}, v)

	v, err = parseField("5,1,5,3", 0, 59)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3, 5}, v)

	v, err = parseField("50/5", 0, 59)
	require.NoError(t, err)
	assert.Equal(t, []int{50, 55}, v)
}

func TestCronExpression_Next(t *testing.T) {
	base := time.Date(2026, 3, 10, 14, 7, 30, 0, time.UTC) // Tuesday

	tests := []struct {
		expr string
		want time.Time
	}{
		{"*/15 * * * *", time.Date(2026, 3, 10, 14, 15, 0, 0, time.UTC)},
		{"30 2 * * *", time.Date(2026, 3, 11, 2, 30, 0, 0, time.UTC)},
		{"0 3 * * 1", time.Date(2026, 3, 16, 3, 0, 0, 0, time.UTC)},
		{"8 14 * * *", time.Date(2026, 3, 10, 14, 8, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			ce := MustParseCronExpression(tt.expr)
			assert.Equal(t, tt.want, ce.Next(base))
			assert.Equal(t, tt.expr, ce.String())
		})
	}
}

func TestParseSchedule(t *testing.T) {
	s, err := ParseSchedule("@every 10m")
	require.NoError(t, err)
	assert.Equal(t, "@every 10m0s", s.String())
	assert.IsType(t, &IntervalSchedule{}, s)

	s, err = ParseSchedule("@daily")
	require.NoError(t, err)
	assert.Equal(t, "@daily", s.String())
	base := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC), s.Next(base))

	s, err = ParseSchedule(" */5 * * * * ")
	require.NoError(t, err)
	assert.IsType(t, &CronExpression{}, s)

	_, err = ParseSchedule("@every 10ms")
	assert.Error(t, err)

	_, err = ParseSchedule("@every soon")
	assert.Error(t, err)

	_, err = ParseSchedule("@yearly")
	assert.Error(t, err)
}

func TestIntervalSchedule(t *testing.T) {
	s := NewIntervalSchedule(90 * time.Second)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, base.Add(90*time.Second), s.Next(base))
	assert.Equal(t, "@every 1m30s", s.String())
}
