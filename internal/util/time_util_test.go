package util

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPeriodHelpers(t *testing.T) {
	t.Run("iso week spans year end", func(t *testing.T) {
		// 2024-12-30 is monday of iso week 1 of 2025
		require.True(t, SameWeek(NewDate(2024, 12, 31), NewDate(2025, 1, 3)))
		require.False(t, SameWeek(NewDate(2025, 1, 3), NewDate(2025, 1, 6)))
	})

	t.Run("month", func(t *testing.T) {
		require.True(t, SameMonth(NewDate(2024, 3, 1), NewDate(2024, 3, 29)))
		require.False(t, SameMonth(NewDate(2024, 3, 29), NewDate(2025, 3, 29)))
	})

	t.Run("quarter", func(t *testing.T) {
		require.Equal(t, 1, Quarter(NewDate(2024, 3, 31)))
		require.Equal(t, 2, Quarter(NewDate(2024, 4, 1)))
		require.Equal(t, 4, Quarter(NewDate(2024, 12, 1)))
		require.True(t, SameQuarter(NewDate(2024, 1, 2), NewDate(2024, 3, 28)))
		require.False(t, SameQuarter(NewDate(2024, 3, 28), NewDate(2024, 4, 1)))
	})

	t.Run("parse round trip", func(t *testing.T) {
		d, err := ParseDate("2024-02-29")
		require.NoError(t, err)
		require.Equal(t, NewDate(2024, 2, 29), d)
		require.Equal(t, "2024-02-29", FormatDate(d))
	})
}
