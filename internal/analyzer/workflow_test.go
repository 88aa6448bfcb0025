package analyzer

import (
	"testing"
)

func TestWorkflowSequenceMining(t *testing.T) {
	a := NewWorkflow()
	tr := chainSession("read", "edit", "bash", "read", "edit", "bash")

	drafts := draftsContaining(a.Analyze(tr), "Repeated tool sequence")
	if len(drafts) != 1 {
		t.Fatalf("got %d sequence drafts, want 1: %+v", len(drafts), drafts)
	}
	want := "Repeated tool sequence: read → edit → bash (2 times)"
	if drafts[0].Description != want {
		t.Errorf("description = %q, want %q", drafts[0].Description, want)
	}
}

func TestWorkflowSubsumesShorterSequences(t *testing.T) {
	a := NewWorkflow()
	// read → grep → edit → bash recurs; its length-3 fragments recur at
	// the same frequency and must not be reported separately.
	tr := chainSession(
		"read", "grep", "edit", "bash", "write",
		"read", "grep", "edit", "bash",
	)

	drafts := draftsContaining(a.Analyze(tr), "Repeated tool sequence")
	if len(drafts) != 1 {
		t.Fatalf("got %d sequence drafts, want 1: %+v", len(drafts), drafts)
	}
	want := "Repeated tool sequence: read → grep → edit → bash (2 times)"
	if drafts[0].Description != want {
		t.Errorf("description = %q, want %q", drafts[0].Description, want)
	}
}

func TestWorkflowLoopDetection(t *testing.T) {
	a := NewWorkflow()
	tr := chainSession("bash", "edit", "bash", "edit", "bash", "edit")

	loops := draftsContaining(a.Analyze(tr), "Loop detected")
	if len(loops) != 1 {
		t.Fatalf("got %d loop drafts, want 1: %+v", len(loops), loops)
	}
	want := "Loop detected: bash → edit repeated 3 times"
	if loops[0].Description != want {
		t.Errorf("description = %q, want %q", loops[0].Description, want)
	}
}

func TestWorkflowNoLoopInShortChain(t *testing.T) {
	a := NewWorkflow()
	tr := chainSession("bash", "edit", "read")
	if drafts := a.Analyze(tr); len(drafts) != 0 {
		t.Fatalf("chain without repetition produced drafts: %+v", drafts)
	}
}

func TestWorkflowUniformRunIsNotALoop(t *testing.T) {
	a := NewWorkflow()
	tr := chainSession("bash", "bash", "bash", "bash")
	if loops := draftsContaining(a.Analyze(tr), "Loop detected"); len(loops) != 0 {
		t.Fatalf("a run of one tool is not a cycle: %+v", loops)
	}
}

func TestWorkflowPeriodThreeLoop(t *testing.T) {
	a := NewWorkflow()
	tr := chainSession("read", "edit", "bash", "read", "edit", "bash", "read", "edit", "bash")

	loops := draftsContaining(a.Analyze(tr), "Loop detected")
	if len(loops) != 1 {
		t.Fatalf("got %d loop drafts, want 1: %+v", len(loops), loops)
	}
	want := "Loop detected: read → edit → bash repeated 3 times"
	if loops[0].Description != want {
		t.Errorf("description = %q, want %q", loops[0].Description, want)
	}
}
