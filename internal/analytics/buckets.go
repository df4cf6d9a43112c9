package analytics

import (
	"math"
	"time"
)

const (
	dailyWindow   = 7
	monthlyWindow = 12
	hourlyWindow  = 24

	dayLayout   = "2006-01-02"
	monthLayout = "2006-01"
	hourLayout  = "2006-01-02 15:00"
)

// DailyBuckets counts ts per calendar day for the last days days, today included.
// Days are taken in now's location.
func DailyBuckets(ts []time.Time, now time.Time, days int) []Bucket {
	loc := now.Location()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	periods := make([]time.Time, days)
	for i := range periods {
		periods[i] = today.AddDate(0, 0, i-(days-1))
	}
	return count(ts, loc, periods, dayLayout)
}

// MonthlyBuckets counts ts per calendar month for the last months months.
func MonthlyBuckets(ts []time.Time, now time.Time, months int) []Bucket {
	loc := now.Location()
	periods := make([]time.Time, months)
	for i := range periods {
		periods[i] = time.Date(now.Year(), now.Month()-time.Month(months-1-i), 1, 0, 0, 0, 0, loc)
	}
	return count(ts, loc, periods, monthLayout)
}

// HourlyBuckets counts ts per clock hour for the last hours hours. Hours are
// consecutive instants, so a repeated wall-clock hour at a DST fall-back gets
// its own bucket; both copies are then labelled with their UTC offset.
func HourlyBuckets(ts []time.Time, now time.Time, hours int) []Bucket {
	loc := now.Location()
	local := now.In(loc)
	current := now.Add(-time.Duration(local.Minute())*time.Minute -
		time.Duration(local.Second())*time.Second -
		time.Duration(local.Nanosecond()))
	first := current.Add(-time.Duration(hours-1) * time.Hour)

	out := make([]Bucket, hours)
	seen := make(map[string]int, hours)
	for i := range out {
		out[i].Period = first.Add(time.Duration(i) * time.Hour).In(loc).Format(hourLayout)
		seen[out[i].Period]++
	}
	for i := range out {
		if seen[out[i].Period] > 1 {
			out[i].Period = first.Add(time.Duration(i) * time.Hour).In(loc).Format(hourLayout + " -07:00")
		}
	}

	end := current.Add(time.Hour)
	for _, t := range ts {
		if t.Before(first) || !t.Before(end) {
			continue
		}
		out[int(t.Sub(first)/time.Hour)].Count++
	}
	return out
}

func count(ts []time.Time, loc *time.Location, periods []time.Time, layout string) []Bucket {
	out := make([]Bucket, len(periods))
	idx := make(map[string]int, len(periods))
	for i, p := range periods {
		key := p.In(loc).Format(layout)
		out[i] = Bucket{Period: key}
		idx[key] = i
	}
	for _, t := range ts {
		if i, ok := idx[t.In(loc).Format(layout)]; ok {
			out[i].Count++
		}
	}
	return out
}

// ActiveHours is the time since lastLogin in hours, rounded to two decimals.
func ActiveHours(lastLogin *time.Time, now time.Time) *float64 {
	if lastLogin == nil {
		return nil
	}
	h := now.Sub(*lastLogin).Hours()
	if h < 0 {
		h = 0
	}
	h = math.Round(h*100) / 100
	return &h
}
