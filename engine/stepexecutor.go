package engine

import (
	"context"
	"time"

	"github.com/caseflow/engine/component"
)

// StepExecutor drives one exec-path at a time: it reads the current
// step, dispatches by step kind, applies the response, and updates the
// exec-path and info. RuntimeService constructs one per
// top-level call and reuses it for every exec-path the run touches,
// including forked children — the same instance runs every branch that
// fork (scheduler.go) spawns, so every path shares the same
// store/factory/events/metrics wiring.
type StepExecutor struct {
	def     *WorkflowDefinition
	store   Store
	factory component.Factory
	events  *eventDispatcher
	notify  WorkBasketNotifier
	metrics *Metrics
	audit   *auditWriter
	opts    Options
	pool    *workerPool
}

func newStepExecutor(def *WorkflowDefinition, opts Options, events *eventDispatcher, pool *workerPool) *StepExecutor {
	return &StepExecutor{
		def:     def,
		store:   opts.Store,
		factory: opts.Factory,
		events:  events,
		notify:  opts.Notify,
		metrics: opts.Metrics,
		audit:   newAuditWriter(opts.Store, opts.KeySeparator, opts.SnapshotVariablesInAudit, opts.Emitter),
		opts:    opts,
		pool:    pool,
	}
}

// Run drives pathName forward until it pends, completes, or hands off
// control (a ticket unwind collapses it into path "." and keeps
// running, a join defers to its parent, a non-root thread observing an
// outstanding ticket exits). rootThread is true only for the call chain
// that has never crossed a goroutine boundary — the original call from
// RuntimeService, and the last branch of each fork, which
// workerPool.runAll always runs inline on the calling goroutine.
// Branches that run caller-side because the pool is full are not
// root-thread invocations. Only a
// root-thread invocation performs ticket unwinding; everything else
// defers to whichever invocation does hold that status.
func (se *StepExecutor) Run(ctx context.Context, info *WorkflowInfo, pathName string, rootThread bool) error {
	for {
		if rootThread {
			if nextStep, pended, unwound := se.collapseToRoot(ctx, info); unwound {
				if pended {
					return se.finishPend(ctx, info, RootPathName)
				}
				pathName = RootPathName
				p, _ := info.Path(RootPathName)
				p.Step = nextStep
				p.Status = StatusStarted
				info.SetPath(p)
				continue
			}
		} else if t, _ := infoTicket(info); t != "" {
			// A sibling elsewhere raised a ticket; this non-root path
			// defers to whichever invocation is the root thread.
			return nil
		}

		p, ok := info.Path(pathName)
		if !ok {
			return &EngineError{Code: CodeIllegalState, Message: "exec-path " + pathName + " not found", CaseID: info.CaseID}
		}
		step, ok := se.def.Step(p.Step)
		if !ok {
			step = Step{Name: string(KindEnd), Kind: KindEnd}
		}

		p.Status = StatusStarted
		info.SetPath(p)

		start := time.Now()
		var (
			next     string
			pend     bool
			terminal bool
			err      error
		)

		switch step.Kind {
		case KindEnd:
			return se.finishComplete(ctx, info, pathName)

		case KindTask:
			next, pend, terminal, err = se.dispatchTask(ctx, info, pathName, rootThread, step)

		case KindSingularRoute:
			next, pend, err = se.dispatchSRoute(ctx, info, pathName, step)

		case KindParallelRoute, KindParallelRouteDynamic:
			next, pend, err = se.fork(ctx, info, pathName, rootThread, step)

		case KindJoin:
			next, terminal, err = se.handleJoin(ctx, info, pathName, step)

		case KindPause:
			next, pend, err = se.dispatchPause(ctx, info, pathName, step)

		case KindPersist:
			next, pend, err = se.dispatchPersist(ctx, info, pathName, step)

		default:
			err = &EngineError{Code: CodeInvalidDefinition, Message: "unknown step kind " + string(step.Kind), CaseID: info.CaseID}
		}

		if se.metrics != nil {
			cur, _ := info.Path(pathName)
			se.metrics.ObserveStepLatency(step.Name, step.Kind, cur.ResponseType, float64(time.Since(start).Milliseconds()))
		}
		if err != nil {
			return err
		}
		if terminal {
			return nil
		}
		if pend {
			return se.finishPend(ctx, info, pathName)
		}

		if err := se.auditAndPersist(ctx, info, pathName, step); err != nil {
			return err
		}

		if next == "" || next == string(KindEnd) {
			p, _ = info.Path(pathName)
			p.Step = string(KindEnd)
			info.SetPath(p)
			continue
		}
		p, _ = info.Path(pathName)
		p.Step = next
		info.SetPath(p)
	}
}

func infoTicket(info *WorkflowInfo) (string, ResponseType) {
	var t string
	var rt ResponseType
	info.WithLock(func() {
		t = info.Ticket
		rt = info.TicketResponseType
	})
	return t, rt
}

// auditAndPersist writes the audit record for the step just executed
// and, when aggressive persistence is on, saves the info snapshot.
// Aggressive persistence writes info before audit.
func (se *StepExecutor) auditAndPersist(ctx context.Context, info *WorkflowInfo, pathName string, step Step) error {
	if se.opts.AggressivePersistence {
		if err := se.saveInfo(ctx, info); err != nil {
			return err
		}
	}
	p, _ := info.Path(pathName)
	now := time.Now()
	return se.audit.write(ctx, AuditRecord{
		CaseID:       info.CaseID,
		StepName:     step.Name,
		ExecPath:     pathName,
		ResponseType: p.ResponseType,
		WorkBasket:   p.PendWorkBasket,
		StartedAt:    now,
		FinishedAt:   now,
	}, info)
}

func (se *StepExecutor) saveInfo(ctx context.Context, info *WorkflowInfo) error {
	return se.store.SaveOrUpdate(ctx, infoKey(se.opts.KeySeparator, info.CaseID), info)
}

// finishPend persists the final pend state and fires ON_PROCESS_PEND
// through the caller (RuntimeService), which owns event sequencing for
// a top-level call. finishPend itself only guarantees durability.
func (se *StepExecutor) finishPend(ctx context.Context, info *WorkflowInfo, pathName string) error {
	return se.saveInfo(ctx, info)
}

// finishComplete marks pathName COMPLETED at the synthetic end step and,
// once every exec-path is COMPLETED with no pend work-basket, marks the
// case complete and clears pendExecPath.
func (se *StepExecutor) finishComplete(ctx context.Context, info *WorkflowInfo, pathName string) error {
	p, _ := info.Path(pathName)
	p.Status = StatusCompleted
	p.ResponseType = OKProceed
	p.PendWorkBasket = ""
	info.SetPath(p)

	allDone := true
	for _, other := range info.ExecPaths() {
		if other.Status != StatusCompleted || other.PendWorkBasket != "" {
			allDone = false
			break
		}
	}
	info.WithLock(func() {
		if allDone {
			info.IsComplete = true
			info.PendExecPath = ""
		}
	})
	if err := se.audit.write(ctx, AuditRecord{
		CaseID:       info.CaseID,
		StepName:     string(KindEnd),
		ExecPath:     pathName,
		ResponseType: OKProceed,
		StartedAt:    time.Now(),
		FinishedAt:   time.Now(),
	}, info); err != nil {
		return err
	}
	return se.saveInfo(ctx, info)
}

func (se *StepExecutor) buildContext(info *WorkflowInfo, pathName string, step Step) component.Context {
	p, _ := info.Path(pathName)
	return component.Context{
		CaseID:             info.CaseID,
		StepName:           step.Name,
		CompName:           step.ComponentName,
		UserData:           step.UserData,
		Variables:          info,
		ExecPathName:       pathName,
		PendWorkBasket:     p.PendWorkBasket,
		LastPendWorkBasket: p.PrevPendWorkBasket,
		LastPendStep:       p.Step,
		PendError:          p.PendError,
		IsPendAtSameStep:   info.IsPendAtSameStep,
		TicketName:         p.Ticket,
	}
}

func (se *StepExecutor) clearPendAtSameStep(info *WorkflowInfo) {
	info.WithLock(func() {
		info.IsPendAtSameStep = false
	})
}

func systemErrorResponse(opts Options, cause error) (ResponseType, string, *ErrorHandler) {
	return ErrorPend, opts.SystemErrorWorkBasket, &ErrorHandler{
		Code:    "STEP_ERROR",
		Message: cause.Error(),
	}
}
