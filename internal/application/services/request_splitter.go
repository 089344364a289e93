package services

// DayRange is a half-open range of days [From, Until) counted from today
type DayRange struct {
	From  int `json:"from"`
	Until int `json:"until"`
}

// Days returns the number of days in the range
func (r DayRange) Days() int {
	return r.Until - r.From
}

// SplitDayRange partitions the days [fromDay, fromDay+days) into contiguous
// ranges of at most maxSpan days. The last range is clipped to the end.
// maxSpan <= 0 disables splitting.
func SplitDayRange(fromDay, days, maxSpan int) []DayRange {
	end := fromDay + days
	if maxSpan <= 0 || days <= maxSpan {
		return []DayRange{{From: fromDay, Until: end}}
	}

	ranges := make([]DayRange, 0, (days+maxSpan-1)/maxSpan)
	for start := fromDay; start < end; start += maxSpan {
		ranges = append(ranges, DayRange{From: start, Until: min(start+maxSpan, end)})
	}
	return ranges
}
