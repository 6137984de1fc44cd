package engine

import (
	"testing"
	"time"
)

func TestTaskTransitions(t *testing.T) {
	allowed := map[TaskStatus][]TaskStatus{
		TaskActive:     {TaskCompleted, TaskIncomplete, TaskPaused, TaskCancelled},
		TaskPaused:     {TaskActive, TaskCancelled},
		TaskIncomplete: {TaskActive, TaskCancelled},
	}
	for from, tos := range allowed {
		for _, to := range tos {
			if !CanTransition(from, to) {
				t.Fatalf("%s -> %s should be allowed", from, to)
			}
		}
	}
	if CanTransition(TaskPaused, TaskCompleted) {
		t.Fatalf("paused tasks must be resumed before completing")
	}
	for _, terminal := range []TaskStatus{TaskCompleted, TaskCancelled} {
		if !terminal.IsTerminal() {
			t.Fatalf("%s should be terminal", terminal)
		}
		if CanTransition(terminal, TaskActive) {
			t.Fatalf("%s must not reopen", terminal)
		}
	}
}

func TestCheckTransitionOrdering(t *testing.T) {
	err := CheckTransition(TaskCompleted, TaskCompleted, "owner", "intruder")
	if r, ok := AsRejection(err); !ok || r.Kind != RejectAlreadyTerminal {
		t.Fatalf("terminal check should come first, got %v", err)
	}
	err = CheckTransition(TaskActive, TaskCompleted, "owner", "intruder")
	if r, ok := AsRejection(err); !ok || r.Kind != RejectUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	err = CheckTransition(TaskPaused, TaskIncomplete, "owner", "owner")
	if r, ok := AsRejection(err); !ok || r.Kind != RejectInvalidTransition {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	if err := CheckTransition(TaskActive, TaskCompleted, "owner", "owner"); err != nil {
		t.Fatalf("valid completion rejected: %v", err)
	}
}

func TestNewCompletionUsesCalendarDay(t *testing.T) {
	now := time.Date(2026, time.October, 14, 22, 45, 0, 0, time.UTC)
	c := NewCompletion("t1", 17, now)
	if DayKey(c.Day) != "2026-10-14" || c.Day.Hour() != 0 || c.XPEarned != 17 {
		t.Fatalf("completion = %+v", c)
	}
}
