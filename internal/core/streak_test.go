package core

import "testing"

func TestComputeStreak(t *testing.T) {
	tests := []struct {
		name  string
		days  []int
		today int
		want  Streak
	}{
		{"empty", nil, 100, Streak{0, 0}},
		{"run ending today", []int{10, 11, 12, 15, 16}, 16, Streak{2, 3}},
		{"stale streak", []int{10, 11, 12}, 14, Streak{0, 3}},
		{"yesterday keeps streak alive", []int{10, 11, 12}, 13, Streak{3, 3}},
		{"single day today", []int{20}, 20, Streak{1, 1}},
		{"today preferred over yesterday", []int{5, 6, 7, 8}, 8, Streak{4, 4}},
		{"duplicates ignored", []int{1, 2, 2, 3, 3, 3}, 3, Streak{3, 3}},
		{"gap before today", []int{1, 2, 3, 5}, 5, Streak{1, 3}},
		{"future marker does not extend", []int{14, 15, 16, 17}, 15, Streak{2, 4}},
		{"negative days", []int{-3, -2, -1}, -1, Streak{3, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ComputeStreak(tt.days, tt.today); got != tt.want {
				t.Errorf("ComputeStreak(%v, %d) = %+v, want %+v", tt.days, tt.today, got, tt.want)
			}
		})
	}
}
