package util

import (
	"time"
)

const layout = "2006-01-02"

func NewDate(year, month, day int) time.Time {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(layout, s, time.UTC)
}

func FormatDate(t time.Time) string {
	return t.Format(layout)
}

// SameWeek compares ISO weeks, so a Monday after a holiday still
// starts a new week
func SameWeek(t1, t2 time.Time) bool {
	y1, w1 := t1.ISOWeek()
	y2, w2 := t2.ISOWeek()
	return y1 == y2 && w1 == w2
}

func SameMonth(t1, t2 time.Time) bool {
	return t1.Year() == t2.Year() && t1.Month() == t2.Month()
}

func Quarter(t time.Time) int {
	return (int(t.Month())-1)/3 + 1
}

func SameQuarter(t1, t2 time.Time) bool {
	return t1.Year() == t2.Year() && Quarter(t1) == Quarter(t2)
}
