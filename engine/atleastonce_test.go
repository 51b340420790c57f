package engine

import (
	"context"
	"testing"

	"github.com/caseflow/engine/component"
	"github.com/caseflow/engine/persistence"
)

// throwsOnceTask fails its first invocation per case and succeeds after,
// modeling a step that fails transiently.
type throwsOnceTask struct {
	thrown map[string]bool
}

func (t *throwsOnceTask) ExecuteStep(ctx context.Context, stepCtx component.Context) (component.TaskResponse, error) {
	if !t.thrown[stepCtx.CaseID] {
		t.thrown[stepCtx.CaseID] = true
		return component.TaskResponse{}, errStub("risky step failed")
	}
	return component.TaskResponse{ResponseType: OKProceed}, nil
}

func linearTaskDefinition(compName string) *WorkflowDefinition {
	return NewWorkflowDefinition("LINEAR", "RISKY", []Step{
		{Name: "RISKY", Kind: KindTask, ComponentName: compName, Next: "end"},
	}, nil, nil)
}

func TestErrorPendThenResumeRetriesAndCompletes(t *testing.T) {
	store := persistence.NewMemStore()
	task := &throwsOnceTask{thrown: make(map[string]bool)}
	rs, err := New(linearTaskDefinition("RISKY_COMP"),
		WithStore(store),
		WithFactory(&singleComponentFactory{inst: task}),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := context.Background()
	if err := rs.StartCase(ctx, "case-5", nil, nil); err != nil {
		t.Fatalf("StartCase: %v", err)
	}

	info, _, err := rs.loadInfo(ctx, "case-5")
	if err != nil {
		t.Fatalf("loadInfo: %v", err)
	}
	if info.IsComplete {
		t.Fatal("expected the case to pend after the first call throws")
	}
	p, _ := info.Path(RootPathName)
	if p.ResponseType != ErrorPend {
		t.Fatalf("got response type %v, want ErrorPend after the risky step throws", p.ResponseType)
	}
	if p.PendWorkBasket != SystemErrorWorkBasket {
		t.Fatalf("got work basket %q, want the default system error basket", p.PendWorkBasket)
	}

	if err := rs.ResumeCase(ctx, "case-5", nil); err != nil {
		t.Fatalf("ResumeCase: %v", err)
	}

	info, _, err = rs.loadInfo(ctx, "case-5")
	if err != nil {
		t.Fatalf("loadInfo after resume: %v", err)
	}
	if !info.IsComplete {
		t.Fatal("expected the case to complete once the retried step succeeds")
	}
}

// TestSanitizerDowngradesCrashedOKProceedToOKPend models a crash
// after a step completed with OK_PROCEED and was persisted, but
// the process died before the next dispatch began. The persisted
// exec-path is left STARTED on the step that already returned
// OK_PROCEED; Sanitize must downgrade it to OK_PEND so the *next* step
// is what gets (re-)dispatched, never the crashed step itself — the
// crashed step's response was already durably observed.
func TestSanitizerDowngradesCrashedOKProceedToOKPend(t *testing.T) {
	def := NewWorkflowDefinition("LINEAR", "S1", []Step{
		{Name: "S1", Kind: KindTask, Next: "S2"},
		{Name: "S2", Kind: KindTask, Next: "end"},
	}, nil, nil)
	info := NewWorkflowInfo("case-6", def)
	// s2 returned OK_PROCEED and was persisted in this STARTED state;
	// the crash happened before s2.next (here, "end") was dispatched.
	info.SetPath(ExecPath{Name: RootPathName, Step: "S2", Status: StatusStarted, ResponseType: OKProceed})

	if err := Sanitize(info); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cursor, err := SelectCursor(info)
	if err != nil {
		t.Fatalf("SelectCursor: %v", err)
	}
	if cursor.Step != "end" {
		t.Fatalf("got cursor step %q, want end (s2.next) — s2 itself must not re-run", cursor.Step)
	}
	if cursor.Rerun {
		t.Error("expected no rerun flag: the repaired OK_PEND advances past s2, it does not replay it")
	}
}

func TestResumeFromNewServiceInstanceCompletesPendedCase(t *testing.T) {
	store := persistence.NewMemStore()
	task := &pauseThenOKTask{pended: make(map[string]bool)}
	rs, err := New(pendingDefinition(),
		WithStore(store),
		WithFactory(&singleComponentFactory{inst: task}),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := context.Background()
	if err := rs.StartCase(ctx, "case-1", nil, nil); err != nil {
		t.Fatalf("StartCase: %v", err)
	}

	// Simulate a fresh process reloading this case and resuming it: a
	// new RuntimeService sharing the same store.
	rs2, err := New(pendingDefinition(),
		WithStore(store),
		WithFactory(&singleComponentFactory{inst: task}),
	)
	if err != nil {
		t.Fatalf("New (second instance): %v", err)
	}
	if err := rs2.ResumeCase(ctx, "case-1", nil); err != nil {
		t.Fatalf("ResumeCase: %v", err)
	}

	info, _, err := rs2.loadInfo(ctx, "case-1")
	if err != nil {
		t.Fatalf("loadInfo: %v", err)
	}
	if !info.IsComplete {
		t.Fatal("expected the case to complete after resuming past the pend")
	}
}
