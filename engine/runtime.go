package engine

import (
	"context"

	"github.com/google/uuid"
)

// NewCaseID returns a fresh random case identifier, for callers that have
// no natural business key to start a case under. It never collides with
// a caller-supplied caseID in practice and contains no SEP-conflicting
// characters, so it is always safe to pass straight to StartCase.
func NewCaseID() string {
	return uuid.NewString()
}

// RuntimeService is the public entry point into the engine: it loads
// or creates a case's WorkflowInfo, sanitizes it on recovery, selects
// a cursor, drives a StepExecutor on the caller's own goroutine, and
// fires the lifecycle events that bracket every call. One
// RuntimeService serves every case of one WorkflowDefinition.
type RuntimeService struct {
	def    *WorkflowDefinition
	opts   Options
	events *eventDispatcher
	pool   *workerPool
}

// New constructs a RuntimeService for def, applying defaultOptions and
// then every opt in order.
func New(def *WorkflowDefinition, opts ...Option) (*RuntimeService, error) {
	o := defaultOptions()
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return nil, err
		}
	}
	if o.Store == nil {
		return nil, &EngineError{Code: CodeInvalidDefinition, Message: "a Store is required"}
	}
	if o.Factory == nil {
		return nil, &EngineError{Code: CodeInvalidDefinition, Message: "a component Factory is required"}
	}
	return &RuntimeService{
		def:    def,
		opts:   o,
		events: newEventDispatcher(o.Handler, o.SLA, o.Metrics, o.Emitter),
		pool:   newWorkerPool(o.PoolSize, o.QueueDepth, o.Metrics),
	}, nil
}

func (rs *RuntimeService) stepExecutor() *StepExecutor {
	return newStepExecutor(rs.def, rs.opts, rs.events, rs.pool)
}

func (rs *RuntimeService) loadInfo(ctx context.Context, caseID string) (*WorkflowInfo, bool, error) {
	info := NewWorkflowInfo(caseID, rs.def)
	found, err := rs.opts.Store.Get(ctx, infoKey(rs.opts.KeySeparator, caseID), info)
	if err != nil {
		return nil, false, err
	}
	info.Definition = rs.def
	return info, found, nil
}

// StartCase begins a new case, persisting its definition reference
// and driving it to its first pend or completion.
func (rs *RuntimeService) StartCase(ctx context.Context, caseID string, initialVariables []Variable, slaMilestones []string) error {
	info, exists, err := rs.loadInfo(ctx, caseID)
	if err != nil {
		return err
	}
	if exists && len(info.ExecPaths()) > 0 {
		return &EngineError{Code: CodeIllegalState, Message: "case already started", CaseID: caseID, Cause: ErrCaseExists}
	}
	freshStart := !exists

	// Persist the definition. A prior crashed start may have already
	// written it; that is not an error.
	if err := rs.opts.Store.Save(ctx, definitionKey(rs.opts.KeySeparator, caseID), rs.def.Name); err != nil {
		return err
	}

	if !exists {
		info = NewWorkflowInfo(caseID, rs.def)
	} else if len(info.ExecPaths()) > 0 {
		if err := Sanitize(info); err != nil {
			return err
		}
	}

	if len(slaMilestones) > 0 {
		if err := rs.opts.Store.Save(ctx, slaKey(rs.opts.KeySeparator, caseID), slaMilestones); err != nil {
			return err
		}
	}

	info.OverlayVariables(initialVariables)

	if freshStart {
		if err := rs.events.processStart(ctx, caseID, info.Variables(), slaMilestones); err != nil {
			return err
		}
	}

	return rs.resumeInternal(ctx, info, nil, false)
}

// ResumeCase sanitizes a pended or crashed case and drives it forward
// from its resume cursor.
func (rs *RuntimeService) ResumeCase(ctx context.Context, caseID string, variablesOverlay []Variable) error {
	info, found, err := rs.loadInfo(ctx, caseID)
	if err != nil {
		return err
	}
	if !found {
		return &EngineError{Code: CodeIllegalState, Message: "case not found", CaseID: caseID, Cause: ErrCaseNotFound}
	}
	if err := Sanitize(info); err != nil {
		return err
	}
	return rs.resumeInternal(ctx, info, variablesOverlay, true)
}

// resumeInternal does the work shared by StartCase's delegation (no
// resume event) and a genuine ResumeCase call (fires ON_PROCESS_RESUME).
func (rs *RuntimeService) resumeInternal(ctx context.Context, info *WorkflowInfo, variablesOverlay []Variable, fireResumeEvent bool) error {
	if info.IsComplete {
		return &EngineError{Code: CodeIllegalState, Message: "case already complete", CaseID: info.CaseID, Cause: ErrCaseComplete}
	}

	info.WithLock(func() {
		info.IsPendAtSameStep = true
	})
	info.OverlayVariables(variablesOverlay)

	if fireResumeEvent {
		ticket, _ := infoTicket(info)
		if err := rs.events.processResume(ctx, info.CaseID, EventContext{CaseID: info.CaseID, Ticket: ticket}); err != nil {
			return err
		}
		if ticket != "" {
			if err := rs.events.ticketRaised(ctx, info.CaseID, ticket); err != nil {
				return err
			}
		}
	}

	cursor, err := SelectCursor(info)
	if err != nil {
		return err
	}

	// When a ticket is outstanding, cursor always names root but the
	// raiser's own path (root or a forked child) still holds the state
	// collapseToRoot needs to unwind correctly — applying the cursor here
	// would stamp the ticket's target step straight onto that path before
	// collapseToRoot ever reads it, corrupting the adopted pend state (or
	// clobbering the raiser's step if the ticket was a pend, not a
	// proceed). Leave the path untouched and let Run's first-iteration
	// collapseToRoot call perform the entire unwind instead.
	if ticketOutstanding, _ := infoTicket(info); ticketOutstanding == "" {
		p, ok := info.Path(cursor.ExecPath)
		if !ok {
			p = ExecPath{Name: cursor.ExecPath}
		}
		p.Step = cursor.Step
		p.Status = StatusStarted
		p.PendWorkBasket = ""
		info.SetPath(p)
		info.WithLock(func() {
			if info.PendExecPath == cursor.ExecPath {
				info.PendExecPath = ""
			}
		})
	}

	se := rs.stepExecutor()
	runErr := se.Run(ctx, info, cursor.ExecPath, true)
	if runErr != nil {
		return runErr
	}

	if info.IsComplete {
		return rs.events.processComplete(ctx, info.CaseID)
	}
	pendPath, _ := infoPendExecPath(info)
	if pendPath == "" {
		return nil
	}
	pend, _ := info.Path(pendPath)
	return rs.events.processPend(ctx, info.CaseID, pend.PrevPendWorkBasket, pend.PendWorkBasket, pend.TBCSlaWorkBasket, pend.PendError)
}

// ReopenCase re-raises ticketName against a completed case, optionally
// parking it in pendWorkBasket before the caller resumes it. A case that
// is not yet complete is rejected with ErrCaseNotComplete.
func (rs *RuntimeService) ReopenCase(ctx context.Context, caseID, ticketName string, pendBeforeResume bool, pendWorkBasket string, variablesOverlay []Variable) error {
	if ticketName == "" {
		return &EngineError{Code: CodeIllegalState, Message: "ticketName is required", CaseID: caseID}
	}
	if pendBeforeResume && pendWorkBasket == "" {
		return &EngineError{Code: CodeIllegalState, Message: "pendWorkBasket is required when pendBeforeResume", CaseID: caseID}
	}

	info, found, err := rs.loadInfo(ctx, caseID)
	if err != nil {
		return err
	}
	if !found {
		return &EngineError{Code: CodeIllegalState, Message: "case not found", CaseID: caseID, Cause: ErrCaseNotFound}
	}
	if !info.IsComplete {
		return &EngineError{Code: CodeIllegalState, Message: "case not yet complete", CaseID: caseID, Cause: ErrCaseNotComplete}
	}

	root := ExecPath{Name: RootPathName, Status: StatusCompleted, Ticket: ticketName}
	if pendBeforeResume {
		root.PendWorkBasket = pendWorkBasket
		root.ResponseType = OKPend
	}
	info.ResetPaths(map[string]ExecPath{RootPathName: root})
	info.WithLock(func() {
		info.IsComplete = false
		info.Ticket = ticketName
		info.TicketResponseType = OKProceed
		info.PendExecPath = RootPathName
	})
	info.OverlayVariables(variablesOverlay)

	se := rs.stepExecutor()
	if err := se.saveInfo(ctx, info); err != nil {
		return err
	}

	if err := rs.events.processReopen(ctx, caseID, ticketName); err != nil {
		return err
	}
	if pendBeforeResume {
		return rs.events.processPend(ctx, caseID, "", pendWorkBasket, "", nil)
	}
	return rs.resumeInternal(ctx, info, nil, true)
}

// ChangeWorkBasket relocates a pended exec-path to a new work-basket: a
// management operation, off the hot path, that relocates a pended case
// from one work basket to another without advancing execution.
func (rs *RuntimeService) ChangeWorkBasket(ctx context.Context, caseID, newWorkBasket string) error {
	info, found, err := rs.loadInfo(ctx, caseID)
	if err != nil {
		return err
	}
	if !found {
		return &EngineError{Code: CodeIllegalState, Message: "case not found", CaseID: caseID, Cause: ErrCaseNotFound}
	}

	pendPath, ok := infoPendExecPath(info)
	if !ok {
		return &EngineError{Code: CodeIllegalState, Message: "case is not pended", CaseID: caseID}
	}
	p, ok := info.Path(pendPath)
	if !ok {
		return &EngineError{Code: CodeIllegalState, Message: "pend exec-path " + pendPath + " not present", CaseID: caseID}
	}
	oldWorkBasket := p.PendWorkBasket
	p.PrevPendWorkBasket = oldWorkBasket
	p.PendWorkBasket = newWorkBasket
	info.SetPath(p)

	se := rs.stepExecutor()
	if err := se.saveInfo(ctx, info); err != nil {
		return err
	}
	if err := se.audit.write(ctx, AuditRecord{
		CaseID:       caseID,
		StepName:     "CHANGE_WORK_BASKET",
		ExecPath:     pendPath,
		ResponseType: p.ResponseType,
		WorkBasket:   newWorkBasket,
	}, info); err != nil {
		return err
	}

	tbc := p.TBCSlaWorkBasket
	if oldWorkBasket == tbc || newWorkBasket == tbc {
		return nil
	}
	return rs.events.processPend(ctx, caseID, oldWorkBasket, newWorkBasket, "", p.PendError)
}
