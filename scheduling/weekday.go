package scheduling

import (
	"fmt"
	"time"
)

// Weekday 星期，周一为0，周日为6
type Weekday int

const (
	Monday Weekday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

const daysInWeek = 7

var weekdayNames = [daysInWeek]string{
	"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday",
}

// WeekdayOf 取时间所在的星期
func WeekdayOf(t time.Time) Weekday {
	// time.Weekday 以周日为0
	return Weekday((int(t.Weekday()) + daysInWeek - 1) % daysInWeek)
}

// Valid 是否在0到6之间
func (w Weekday) Valid() bool {
	return w >= Monday && w <= Sunday
}

func (w Weekday) String() string {
	if !w.Valid() {
		return fmt.Sprintf("Weekday(%d)", int(w))
	}
	return weekdayNames[w]
}

// NextAfter 下一天，周日之后是周一
func NextAfter(w Weekday) Weekday {
	return (w + 1) % daysInWeek
}

// DaysBetween 从from往后数到to需要的天数，相同则为0
func DaysBetween(from, to Weekday) int {
	return int((to - from + daysInWeek) % daysInWeek)
}
