package utils

import (
	"testing"
	"time"
)

func TestStageTimer(t *testing.T) {
	timer := NewStageTimer()
	time.Sleep(5 * time.Millisecond)
	d := timer.Mark("first")
	if d <= 0 {
		t.Errorf("stage duration should be positive, got %v", d)
	}
	timer.Mark("second")

	stages := timer.Stages()
	if len(stages) != 2 {
		t.Fatalf("expected 2 stages, got %d", len(stages))
	}
	if stages[0].Name != "first" || stages[1].Name != "second" {
		t.Errorf("stage names = %s, %s", stages[0].Name, stages[1].Name)
	}
	if timer.Elapsed() < stages[0].Duration {
		t.Error("elapsed should cover all stages")
	}
}
