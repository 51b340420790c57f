package engine

import (
	"context"
	"testing"

	"github.com/caseflow/engine/component"
	"github.com/caseflow/engine/engine/emit"
	"github.com/caseflow/engine/persistence"
)

// echoTask is a TaskComponent that always proceeds, used to drive a
// RuntimeService through a definition without touching any real
// external collaborator.
type echoTask struct{}

func (echoTask) ExecuteStep(ctx context.Context, stepCtx component.Context) (component.TaskResponse, error) {
	return component.TaskResponse{ResponseType: OKProceed}, nil
}

// pauseThenOKTask pends the first time it is dispatched for a case and
// proceeds on any later dispatch (simulating a human task getting
// actioned between a pend and a resume).
type pauseThenOKTask struct {
	pended map[string]bool
}

func (p *pauseThenOKTask) ExecuteStep(ctx context.Context, stepCtx component.Context) (component.TaskResponse, error) {
	if !p.pended[stepCtx.CaseID] {
		p.pended[stepCtx.CaseID] = true
		return component.TaskResponse{ResponseType: OKPend, WorkBasket: "REVIEW"}, nil
	}
	return component.TaskResponse{ResponseType: OKProceed}, nil
}

// pendWithTicketTask pends on its first dispatch per case, raising a
// ticket alongside the pend (the same combination dispatchTask's
// OKPend/OKPendEOR branch supports), and proceeds on any later dispatch.
type pendWithTicketTask struct {
	pended map[string]bool
}

func (p *pendWithTicketTask) ExecuteStep(ctx context.Context, stepCtx component.Context) (component.TaskResponse, error) {
	if !p.pended[stepCtx.CaseID] {
		p.pended[stepCtx.CaseID] = true
		return component.TaskResponse{ResponseType: OKPend, WorkBasket: "REVIEW", Ticket: "CANCEL"}, nil
	}
	return component.TaskResponse{ResponseType: OKProceed}, nil
}

type singleComponentFactory struct {
	name string
	inst any
}

func (f *singleComponentFactory) New(ctx context.Context, stepCtx component.Context) (any, error) {
	return f.inst, nil
}

func straightThroughDefinition() *WorkflowDefinition {
	return NewWorkflowDefinition("STRAIGHT_THROUGH", "STEP_A", []Step{
		{Name: "STEP_A", Kind: KindTask, ComponentName: "ECHO", Next: "end"},
	}, nil, nil)
}

func pendingDefinition() *WorkflowDefinition {
	return NewWorkflowDefinition("PAUSE_THEN_OK", "STEP_A", []Step{
		{Name: "STEP_A", Kind: KindTask, ComponentName: "MAYBE_PEND", Next: "end"},
	}, nil, nil)
}

func pendingWithTicketDefinition() *WorkflowDefinition {
	return NewWorkflowDefinition("PEND_WITH_TICKET", "STEP_A", []Step{
		{Name: "STEP_A", Kind: KindTask, ComponentName: "MAYBE_PEND", Next: "end"},
	}, []Ticket{
		{Name: "CANCEL", TargetStep: "end"},
	}, nil)
}

func TestStartCaseRunsToCompletion(t *testing.T) {
	store := persistence.NewMemStore()
	buf := emit.NewBufferedEmitter()
	rs, err := New(straightThroughDefinition(),
		WithStore(store),
		WithFactory(&singleComponentFactory{name: "ECHO", inst: echoTask{}}),
		WithEmitter(buf),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := context.Background()
	if err := rs.StartCase(ctx, "case-1", nil, nil); err != nil {
		t.Fatalf("StartCase: %v", err)
	}

	info, found, err := rs.loadInfo(ctx, "case-1")
	if err != nil || !found {
		t.Fatalf("loadInfo: found=%v err=%v", found, err)
	}
	if !info.IsComplete {
		t.Error("expected the case to complete in one dispatch")
	}

	if len(buf.ForCase("case-1")) == 0 {
		t.Error("expected at least one observability event for the case")
	}
}

func TestStartCaseRejectsDoubleStart(t *testing.T) {
	store := persistence.NewMemStore()
	rs, err := New(straightThroughDefinition(),
		WithStore(store),
		WithFactory(&singleComponentFactory{name: "ECHO", inst: echoTask{}}),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := context.Background()
	if err := rs.StartCase(ctx, "case-1", nil, nil); err != nil {
		t.Fatalf("first StartCase: %v", err)
	}
	// The case completed already, so a naive re-start would be rejected
	// only if exec-paths still exist; completion still leaves the root
	// path present, so a second StartCase on the same caseID is illegal.
	err = rs.StartCase(ctx, "case-1", nil, nil)
	if err == nil {
		t.Fatal("expected an error starting an already-started case")
	}
}

func TestResumeCaseAfterPend(t *testing.T) {
	store := persistence.NewMemStore()
	task := &pauseThenOKTask{pended: make(map[string]bool)}
	rs, err := New(pendingDefinition(),
		WithStore(store),
		WithFactory(&singleComponentFactory{name: "MAYBE_PEND", inst: task}),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := context.Background()
	if err := rs.StartCase(ctx, "case-1", nil, nil); err != nil {
		t.Fatalf("StartCase: %v", err)
	}

	info, _, err := rs.loadInfo(ctx, "case-1")
	if err != nil {
		t.Fatalf("loadInfo: %v", err)
	}
	if info.IsComplete {
		t.Fatal("expected the case to be pended, not complete, after the first dispatch")
	}
	p, _ := info.Path(RootPathName)
	if p.PendWorkBasket != "REVIEW" {
		t.Fatalf("got work basket %q, want REVIEW", p.PendWorkBasket)
	}

	if err := rs.ResumeCase(ctx, "case-1", nil); err != nil {
		t.Fatalf("ResumeCase: %v", err)
	}

	info, _, err = rs.loadInfo(ctx, "case-1")
	if err != nil {
		t.Fatalf("loadInfo after resume: %v", err)
	}
	if !info.IsComplete {
		t.Error("expected the case to complete after resuming past the pend")
	}
}

// TestResumeCasePreservesPendStateWhenTicketRaisedAlongside drives a step
// that pends and raises a ticket in the same dispatch (the combination
// dispatchTask's OKPend/OKPendEOR branch supports), then resumes the case
// on a separate call. resumeInternal must not stamp the ticket's cursor
// onto the raiser's path before Run's collapseToRoot reads it: doing so
// would corrupt the adopted pend state and silently drop the original
// work item.
func TestResumeCasePreservesPendStateWhenTicketRaisedAlongside(t *testing.T) {
	store := persistence.NewMemStore()
	task := &pendWithTicketTask{pended: make(map[string]bool)}
	rs, err := New(pendingWithTicketDefinition(),
		WithStore(store),
		WithFactory(&singleComponentFactory{name: "MAYBE_PEND", inst: task}),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := context.Background()
	if err := rs.StartCase(ctx, "case-1", nil, nil); err != nil {
		t.Fatalf("StartCase: %v", err)
	}

	info, _, err := rs.loadInfo(ctx, "case-1")
	if err != nil {
		t.Fatalf("loadInfo: %v", err)
	}
	if info.IsComplete {
		t.Fatal("expected the case to be pended, not complete, after the first dispatch")
	}
	if info.Ticket != "CANCEL" {
		t.Fatalf("got ticket %q, want CANCEL outstanding after the pend", info.Ticket)
	}
	p, _ := info.Path(RootPathName)
	if p.PendWorkBasket != "REVIEW" {
		t.Fatalf("got work basket %q, want REVIEW", p.PendWorkBasket)
	}
	if p.Step != "STEP_A" {
		t.Fatalf("got step %q, want STEP_A preserved on the raiser path", p.Step)
	}

	// A separate ResumeCase call must not advance past the pend: the
	// ticket's TicketResponseType is OKPend, not OKProceed, so
	// collapseToRoot should re-adopt the raiser's original pend state
	// rather than jump to the ticket's TargetStep.
	if err := rs.ResumeCase(ctx, "case-1", nil); err != nil {
		t.Fatalf("ResumeCase: %v", err)
	}

	info, _, err = rs.loadInfo(ctx, "case-1")
	if err != nil {
		t.Fatalf("loadInfo after resume: %v", err)
	}
	if info.IsComplete {
		t.Fatal("expected the case to still be pended after resuming a pend-type ticket")
	}
	if info.Ticket != "" {
		t.Fatalf("got ticket %q still outstanding, want it cleared by collapseToRoot", info.Ticket)
	}
	p, _ = info.Path(RootPathName)
	if p.PendWorkBasket != "REVIEW" {
		t.Fatalf("got work basket %q after resume, want the original REVIEW preserved (not lost or emptied)", p.PendWorkBasket)
	}
	if p.Step != "STEP_A" {
		t.Fatalf("got step %q after resume, want STEP_A preserved (not skipped to the ticket target)", p.Step)
	}

	// Actioning the pend now proceeds normally: STEP_A's OKPend resumes at
	// its Next, which here is the end of the graph, so the case completes.
	if err := rs.ResumeCase(ctx, "case-1", nil); err != nil {
		t.Fatalf("second ResumeCase: %v", err)
	}
	info, _, err = rs.loadInfo(ctx, "case-1")
	if err != nil {
		t.Fatalf("loadInfo after second resume: %v", err)
	}
	if !info.IsComplete {
		t.Error("expected the case to complete after actioning the pend a second time")
	}
}

func TestResumeCaseNotFound(t *testing.T) {
	store := persistence.NewMemStore()
	rs, err := New(straightThroughDefinition(),
		WithStore(store),
		WithFactory(&singleComponentFactory{name: "ECHO", inst: echoTask{}}),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	err = rs.ResumeCase(context.Background(), "never-started", nil)
	if err == nil {
		t.Fatal("expected an error resuming a case that was never started")
	}
}

func TestChangeWorkBasketRelocatesPendedCase(t *testing.T) {
	store := persistence.NewMemStore()
	task := &pauseThenOKTask{pended: make(map[string]bool)}
	rs, err := New(pendingDefinition(),
		WithStore(store),
		WithFactory(&singleComponentFactory{name: "MAYBE_PEND", inst: task}),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := context.Background()
	if err := rs.StartCase(ctx, "case-1", nil, nil); err != nil {
		t.Fatalf("StartCase: %v", err)
	}

	if err := rs.ChangeWorkBasket(ctx, "case-1", "ESCALATED"); err != nil {
		t.Fatalf("ChangeWorkBasket: %v", err)
	}

	info, _, err := rs.loadInfo(ctx, "case-1")
	if err != nil {
		t.Fatalf("loadInfo: %v", err)
	}
	p, _ := info.Path(RootPathName)
	if p.PendWorkBasket != "ESCALATED" {
		t.Fatalf("got work basket %q, want ESCALATED", p.PendWorkBasket)
	}
	if p.PrevPendWorkBasket != "REVIEW" {
		t.Fatalf("got prev work basket %q, want REVIEW", p.PrevPendWorkBasket)
	}
}

func TestNewRequiresStoreAndFactory(t *testing.T) {
	if _, err := New(straightThroughDefinition()); err == nil {
		t.Fatal("expected an error when neither Store nor Factory are configured")
	}
	if _, err := New(straightThroughDefinition(), WithStore(persistence.NewMemStore())); err == nil {
		t.Fatal("expected an error when Factory is not configured")
	}
}

func TestNewCaseIDIsNonEmptyAndVaries(t *testing.T) {
	a := NewCaseID()
	b := NewCaseID()
	if a == "" || b == "" {
		t.Fatal("expected non-empty case IDs")
	}
	if a == b {
		t.Fatal("expected two freshly generated case IDs to differ")
	}
}
