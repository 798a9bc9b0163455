// Package progress derives Task and Project progress from their children.
package progress

import "progresshub/internal/model"

// Weighted is one child's contribution to its parent's average.
type Weighted struct {
	Progress int
	Weight   int
}

// WeightedAverage returns round(Σ p·w / Σ w), rounding halves up, or 0 for no
// children. A weight below 1 counts as 1 and progress is clamped to 0..100.
func WeightedAverage(children []Weighted) int {
	if len(children) == 0 {
		return 0
	}
	var completed, total int64
	for _, c := range children {
		w := int64(c.Weight)
		if w < model.MinWeight {
			w = model.MinWeight
		}
		completed += int64(clamp(c.Progress)) * w
		total += w
	}
	// (2c + t) / 2t == floor(c/t + 1/2) for non-negative c
	return int((2*completed + total) / (2 * total))
}

func clamp(p int) int {
	if p < model.MinProgress {
		return model.MinProgress
	}
	if p > model.MaxProgress {
		return model.MaxProgress
	}
	return p
}

func fromSubTasks(subs []model.SubTask) []Weighted {
	out := make([]Weighted, len(subs))
	for i, s := range subs {
		out[i] = Weighted{Progress: s.Progress, Weight: s.Weight}
	}
	return out
}

func fromTasks(tasks []model.Task) []Weighted {
	out := make([]Weighted, len(tasks))
	for i, t := range tasks {
		out[i] = Weighted{Progress: t.Progress, Weight: t.Weight}
	}
	return out
}
