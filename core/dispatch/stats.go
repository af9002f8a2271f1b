package dispatch

import (
	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/agv/core/order"
)

// window keeps the most recent samples of a measure.
type window struct {
	size    int
	samples []float64
}

func newWindow(size int) *window {
	return &window{size: size}
}

func (w *window) add(v float64) {
	w.samples = append(w.samples, v)
	if len(w.samples) > w.size {
		w.samples = w.samples[len(w.samples)-w.size:]
	}
}

// meanStd returns the mean and standard deviation of the window. Both are
// zero without samples; the deviation is zero with a single one.
func (w *window) meanStd() (float64, float64) {
	switch len(w.samples) {
	case 0:
		return 0, 0
	case 1:
		return w.samples[0], 0
	}
	return stat.MeanStdDev(w.samples, nil)
}

// Statistics summarise the dispatch activity.
type Statistics struct {
	Strategy       string `json:"strategy" yaml:"strategy"`
	TotalAssigned  int    `json:"total_assigned" yaml:"total_assigned"`
	TotalForced    int    `json:"total_forced" yaml:"total_forced"`
	TotalCompleted int    `json:"total_completed" yaml:"total_completed"`
	TotalExpired   int    `json:"total_expired" yaml:"total_expired"`
	TotalCancelled int    `json:"total_cancelled" yaml:"total_cancelled"`
	TotalFailed    int    `json:"total_failed" yaml:"total_failed"`
	TotalReleased  int    `json:"total_released" yaml:"total_released"`
	TotalBlocked   int    `json:"total_blocked" yaml:"total_blocked"`

	AvgWaitSeconds       float64 `json:"avg_wait_seconds" yaml:"avg_wait_seconds"`
	StdWaitSeconds       float64 `json:"std_wait_seconds" yaml:"std_wait_seconds"`
	AvgCompletionSeconds float64 `json:"avg_completion_seconds" yaml:"avg_completion_seconds"`
	StdCompletionSeconds float64 `json:"std_completion_seconds" yaml:"std_completion_seconds"`

	SuccessRate    float64 `json:"success_rate" yaml:"success_rate"`
	CompletionRate float64 `json:"completion_rate" yaml:"completion_rate"`

	Queue order.Counts `json:"queue" yaml:"queue"`
}

type counters struct {
	assigned, forced, completed, expired, cancelled, failed, released, blocked int

	wait       *window
	completion *window
}

func newCounters(size int) *counters {
	return &counters{wait: newWindow(size), completion: newWindow(size)}
}

func (c *counters) snapshot() Statistics {
	s := Statistics{
		TotalAssigned:  c.assigned,
		TotalForced:    c.forced,
		TotalCompleted: c.completed,
		TotalExpired:   c.expired,
		TotalCancelled: c.cancelled,
		TotalFailed:    c.failed,
		TotalReleased:  c.released,
		TotalBlocked:   c.blocked,
	}
	s.AvgWaitSeconds, s.StdWaitSeconds = c.wait.meanStd()
	s.AvgCompletionSeconds, s.StdCompletionSeconds = c.completion.meanStd()
	if n := c.assigned + c.failed; n > 0 {
		s.SuccessRate = float64(c.assigned) / float64(n)
	}
	if n := c.completed + c.expired + c.cancelled; n > 0 {
		s.CompletionRate = float64(c.completed) / float64(n)
	}
	return s
}
