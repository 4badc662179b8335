package archive

import (
	"time"
)

// DayCell is one real day of the calendar grid.
type DayCell struct {
	Day     int    `json:"day"`
	Date    string `json:"date"`
	HasPost bool   `json:"has_post"`
	Count   int    `json:"count"`
	IsToday bool   `json:"is_today"`
}

// Calendar is a Monday-first month grid. Every week has exactly seven cells;
// nil cells are placeholders before day 1 and after the last day.
type Calendar struct {
	Label string       `json:"label"`
	Month string       `json:"month"`
	Prev  string       `json:"prev"`
	Next  string       `json:"next"`
	Weeks [][]*DayCell `json:"weeks"`
}

// CalendarMatrix builds the grid for month (YYYY-MM). An invalid month falls
// back to now's month. byDay maps YYYY-MM-DD to a post count.
func CalendarMatrix(month string, byDay map[string]int, now time.Time) Calendar {
	loc := now.Location()
	start, err := time.ParseInLocation(monthLayout, month, loc)
	if err != nil {
		start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
	}

	daysInMonth := start.AddDate(0, 1, -1).Day()
	leading := (int(start.Weekday()) + 6) % 7
	today := now.Format(dayLayout)

	var weeks [][]*DayCell
	week := make([]*DayCell, leading, 7)

	for day := 1; day <= daysInMonth; day++ {
		key := time.Date(start.Year(), start.Month(), day, 0, 0, 0, 0, loc).Format(dayLayout)
		count, has := byDay[key]
		week = append(week, &DayCell{
			Day:     day,
			Date:    key,
			HasPost: has,
			Count:   count,
			IsToday: key == today,
		})
		if len(week) == 7 {
			weeks = append(weeks, week)
			week = make([]*DayCell, 0, 7)
		}
	}
	if len(week) > 0 {
		for len(week) < 7 {
			week = append(week, nil)
		}
		weeks = append(weeks, week)
	}

	return Calendar{
		Label: start.Format("January 2006"),
		Month: start.Format(monthLayout),
		Prev:  start.AddDate(0, -1, 0).Format(monthLayout),
		Next:  start.AddDate(0, 1, 0).Format(monthLayout),
		Weeks: weeks,
	}
}
