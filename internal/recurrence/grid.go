package recurrence

import (
	"sort"
	"time"

	"eventcal/internal/dateutil"
	"eventcal/internal/model"
)

// GridCells is the number of cells in a month grid: six weeks of seven days.
const GridCells = 42

// maxMarkedDays caps how many cells a single long occurrence may mark.
const maxMarkedDays = 366

// MonthWindow returns the window covered by the month grid for year/month:
// from the Sunday on or before the 1st through the last of the 42 cells
// (both at midnight in loc).
func MonthWindow(year int, month time.Month, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.Local
	}
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	start := first.AddDate(0, 0, -int(first.Weekday()))
	return start, start.AddDate(0, 0, GridCells-1)
}

// Cell is one day of the month grid.
type Cell struct {
	Date           string `json:"date"`
	Day            int    `json:"day"`
	IsCurrentMonth bool   `json:"is_current_month"`
	IsToday        bool   `json:"is_today"`
	HasEvents      bool   `json:"has_events"`
}

// MonthGrid builds the 42 cells for year/month, marking days covered by any
// of the given instances. today is compared by calendar date.
func MonthGrid(year int, month time.Month, loc *time.Location, today time.Time, instances []Instance) []Cell {
	start, _ := MonthWindow(year, month, loc)
	marked := MarkedDates(instances)
	todayYMD := dateutil.FormatYMD(today.In(start.Location()))

	cells := make([]Cell, 0, GridCells)
	cursor := start
	for i := 0; i < GridCells; i++ {
		ymd := dateutil.FormatYMD(cursor)
		cells = append(cells, Cell{
			Date:           ymd,
			Day:            cursor.Day(),
			IsCurrentMonth: cursor.Month() == month,
			IsToday:        ymd == todayYMD,
			HasEvents:      marked[ymd],
		})
		cursor = cursor.AddDate(0, 0, 1)
	}
	return cells
}

// MarkedDates returns the set of YYYY-MM-DD days touched by any instance.
func MarkedDates(instances []Instance) map[string]bool {
	out := make(map[string]bool)
	for _, in := range instances {
		d := dateutil.StartOfDay(in.Occurrence.Start)
		for n := 0; !d.After(in.Occurrence.End) && n < maxMarkedDays; n++ {
			out[dateutil.FormatYMD(d)] = true
			d = d.AddDate(0, 0, 1)
		}
	}
	return out
}

// EventsOnDay returns the distinct events with an occurrence covering day
// (YYYY-MM-DD), sorted by title then id.
func EventsOnDay(instances []Instance, day string) []model.Event {
	seen := make(map[string]bool)
	out := make([]model.Event, 0)
	for _, in := range instances {
		start := dateutil.FormatYMD(in.Occurrence.Start)
		end := dateutil.FormatYMD(in.Occurrence.End)
		if day < start || day > end {
			continue
		}
		if seen[in.Event.ID] {
			continue
		}
		seen[in.Event.ID] = true
		out = append(out, in.Event)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Title != out[j].Title {
			return out[i].Title < out[j].Title
		}
		return out[i].ID < out[j].ID
	})
	return out
}
