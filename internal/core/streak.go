package core

// ComputeStreak derives the current and longest runs of consecutive logged
// days from an ascending list of epoch days.
//
// Current is the length of the run ending today, or ending yesterday when
// today is not logged yet. Duplicates are ignored. Days after today may be
// present but never extend the current run. The list is walked once.
func ComputeStreak(days []int, today int) Streak {
	var (
		s        Streak
		run      int
		prev     int
		atToday  int
		atBefore int
	)
	for i, d := range days {
		switch {
		case i > 0 && d == prev:
			continue
		case i > 0 && d == prev+1:
			run++
		default:
			run = 1
		}
		prev = d
		if run > s.Longest {
			s.Longest = run
		}
		switch d {
		case today:
			atToday = run
		case today - 1:
			atBefore = run
		}
	}
	if atToday > 0 {
		s.Current = atToday
	} else {
		s.Current = atBefore
	}
	return s
}
