package core

import "testing"

func TestRunRecord_IsExecuting(t *testing.T) {
	tests := []struct {
		status RunStatus
		want   bool
	}{
		{RunStatusStarted, true},
		{RunStatusCanceling, true},
		{RunStatusQueued, false},
		{RunStatusStarting, false},
		{RunStatusNotStarted, false},
		{RunStatusManaged, false},
		{RunStatusSuccess, false},
		{RunStatusFailure, false},
	}
	for _, tt := range tests {
		run := &RunRecord{Status: tt.status}
		if got := run.IsExecuting(); got != tt.want {
			t.Errorf("IsExecuting() with %s = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestRunRecord_IsPendingMatchesPendingStatuses(t *testing.T) {
	pending := make(map[RunStatus]bool)
	for _, s := range PendingStatuses() {
		pending[s] = true
	}
	all := []RunStatus{
		RunStatusQueued, RunStatusNotStarted, RunStatusManaged, RunStatusStarting,
		RunStatusStarted, RunStatusCanceling, RunStatusSuccess, RunStatusFailure,
		RunStatusCanceled,
	}
	for _, s := range all {
		run := &RunRecord{Status: s}
		if run.IsPending() != pending[s] {
			t.Errorf("IsPending() with %s = %v, want %v", s, run.IsPending(), pending[s])
		}
		if run.IsPending() == run.IsTerminal() {
			t.Errorf("status %s: pending and terminal must disagree", s)
		}
	}
}

func TestIsHiddenTag(t *testing.T) {
	if !IsHiddenTag(".pulse/schedule") {
		t.Fatalf("dot-prefixed tag should be hidden")
	}
	if IsHiddenTag("team") {
		t.Fatalf("plain tag should not be hidden")
	}
	if IsHiddenTag("") {
		t.Fatalf("empty tag key should not be hidden")
	}
}
