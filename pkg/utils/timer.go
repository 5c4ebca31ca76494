package utils

import "time"

// StageTimer measures total elapsed time and named stage durations for a
// multi-step operation. Not safe for concurrent use.
type StageTimer struct {
	start  time.Time
	last   time.Time
	stages []Stage
}

// Stage is a named duration recorded by a StageTimer.
type Stage struct {
	Name     string
	Duration time.Duration
}

// NewStageTimer starts a timer.
func NewStageTimer() *StageTimer {
	now := time.Now()
	return &StageTimer{start: now, last: now}
}

// Mark records the time since the previous mark (or start) under name.
func (t *StageTimer) Mark(name string) time.Duration {
	now := time.Now()
	d := now.Sub(t.last)
	t.last = now
	t.stages = append(t.stages, Stage{Name: name, Duration: d})
	return d
}

// Elapsed returns the total time since the timer started.
func (t *StageTimer) Elapsed() time.Duration {
	return time.Since(t.start)
}

// Stages returns the recorded stages in order.
func (t *StageTimer) Stages() []Stage {
	return t.stages
}
