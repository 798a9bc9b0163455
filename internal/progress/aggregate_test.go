package progress

import "testing"

func TestWeightedAverage(t *testing.T) {
	cases := []struct {
		name     string
		children []Weighted
		want     int
	}{
		{"no children", nil, 0},
		{"single", []Weighted{{Progress: 37, Weight: 5}}, 37},
		{"weighted", []Weighted{{100, 1}, {0, 3}}, 25},
		{"equal weights", []Weighted{{20, 1}, {40, 1}, {60, 1}}, 40},
		{"half rounds up", []Weighted{{50, 1}, {51, 1}}, 51},
		{"below half rounds down", []Weighted{{0, 3}, {1, 1}}, 0},
		{"third", []Weighted{{100, 1}, {0, 2}}, 33},
		{"two thirds", []Weighted{{100, 2}, {0, 1}}, 67},
		{"zero weight counts as one", []Weighted{{100, 0}, {0, 1}}, 50},
		{"negative weight counts as one", []Weighted{{100, -4}, {0, 1}}, 50},
		{"progress clamped", []Weighted{{150, 1}, {-20, 1}}, 50},
		{"all complete", []Weighted{{100, 100}, {100, 1}}, 100},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := WeightedAverage(tc.children); got != tc.want {
				t.Fatalf("WeightedAverage(%v) = %d, want %d", tc.children, got, tc.want)
			}
		})
	}
}
