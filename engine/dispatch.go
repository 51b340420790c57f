package engine

import (
	"context"

	"github.com/caseflow/engine/component"
)

// dispatchTask runs a TASK step.
//
// Returns (next, pend, terminal, err): terminal is true when this path
// raised a ticket and is not the root thread — it has stamped itself
// and must stop without further bookkeeping, deferring to whichever
// invocation holds root-thread status — and also when a pend response
// is abandoned because a different ticket is already live case-wide.
func (se *StepExecutor) dispatchTask(ctx context.Context, info *WorkflowInfo, pathName string, rootThread bool, step Step) (next string, pend bool, terminal bool, err error) {
	resp, callErr := se.invokeTask(ctx, info, pathName, step)
	if callErr != nil {
		rt, wb, eh := systemErrorResponse(se.opts, callErr)
		resp = component.TaskResponse{ResponseType: rt, WorkBasket: wb, Error: eh}
	}

	p, _ := info.Path(pathName)

	switch resp.ResponseType {
	case OKProceed:
		if resp.Ticket == "" {
			se.clearPendAtSameStep(info)
			return step.Next, false, false, nil
		}
		won := se.raiseTicketIfFirst(ctx, info, pathName, resp.Ticket, OKProceed)
		if rootThread {
			target := resp.Ticket
			if !won {
				target, _ = infoTicket(info)
			}
			t, ok := se.def.Ticket(target)
			if !ok {
				return "", false, false, &EngineError{Code: CodeTicketNotFound, Message: "ticket " + target + " not found", CaseID: info.CaseID}
			}
			info.ResetPaths(map[string]ExecPath{
				RootPathName: {Name: RootPathName, Status: StatusStarted, Step: t.TargetStep},
			})
			info.WithLock(func() {
				info.Ticket = ""
				info.TicketResponseType = ""
				info.PendExecPath = ""
			})
			se.clearPendAtSameStep(info)
			return t.TargetStep, false, false, nil
		}
		p.Status = StatusCompleted
		p.ResponseType = OKProceed
		info.SetPath(p)
		return "", false, true, nil

	case OKPend, OKPendEOR:
		existingTicket, _ := infoTicket(info)
		if existingTicket != "" && existingTicket != resp.Ticket {
			// Another ticket is already case-wide live; this pend is
			// abandoned quietly, saving only variables.
			return "", false, true, nil
		}
		p.Status = StatusCompleted
		p.ResponseType = resp.ResponseType
		p.PrevPendWorkBasket = p.PendWorkBasket
		p.PendWorkBasket = resp.WorkBasket
		p.PendError = nil
		info.SetPath(p)
		if resp.Ticket != "" {
			se.raiseTicketIfFirst(ctx, info, pathName, resp.Ticket, resp.ResponseType)
		}
		if resp.WorkBasket != p.PrevPendWorkBasket {
			se.clearPendAtSameStep(info)
		}
		info.NotePending(pathName)
		if se.notify != nil {
			_ = se.notify.Notify(ctx, info.CaseID, pathName, resp.WorkBasket)
		}
		return "", true, false, nil

	case ErrorPend:
		wb := resp.WorkBasket
		if wb == "" {
			wb = se.opts.SystemErrorWorkBasket
		}
		p.Status = StatusCompleted
		p.ResponseType = ErrorPend
		p.PrevPendWorkBasket = p.PendWorkBasket
		p.PendWorkBasket = wb
		p.PendError = resp.Error
		info.SetPath(p)
		info.NotePending(pathName)
		if se.notify != nil {
			_ = se.notify.Notify(ctx, info.CaseID, pathName, wb)
		}
		return "", true, false, nil

	default:
		return "", false, false, &EngineError{Code: CodeRouteContract, Message: "task returned unknown response type " + string(resp.ResponseType), CaseID: info.CaseID}
	}
}

func (se *StepExecutor) invokeTask(ctx context.Context, info *WorkflowInfo, pathName string, step Step) (component.TaskResponse, error) {
	stepCtx := se.buildContext(info, pathName, step)
	inst, err := se.factory.New(ctx, stepCtx)
	if err != nil {
		return component.TaskResponse{}, err
	}
	task, ok := inst.(component.TaskComponent)
	if !ok {
		return component.TaskResponse{}, &EngineError{Code: CodeMissingCollab, Message: "component " + step.ComponentName + " does not implement TaskComponent", CaseID: info.CaseID}
	}
	return task.ExecuteStep(ctx, stepCtx)
}

// dispatchSRoute runs an S_ROUTE step. A pending response from a
// route is a contract violation.
func (se *StepExecutor) dispatchSRoute(ctx context.Context, info *WorkflowInfo, pathName string, step Step) (next string, pend bool, err error) {
	resp, callErr := se.invokeRoute(ctx, info, pathName, step)
	if callErr != nil {
		rt, wb, eh := systemErrorResponse(se.opts, callErr)
		resp = component.RouteResponse{ResponseType: rt, WorkBasket: wb, Error: eh}
	}

	p, _ := info.Path(pathName)

	switch resp.ResponseType {
	case OKProceed:
		if len(resp.Branches) != 1 {
			return "", false, &EngineError{Code: CodeRouteContract, Message: "S_ROUTE must pick exactly one branch", CaseID: info.CaseID}
		}
		target := ""
		for _, b := range step.Branches {
			if b.Name == resp.Branches[0] {
				target = b.Next
				break
			}
		}
		if target == "" {
			return "", false, &EngineError{Code: CodeRouteContract, Message: "undeclared branch " + resp.Branches[0], CaseID: info.CaseID}
		}
		se.clearPendAtSameStep(info)
		return target, false, nil

	case ErrorPend:
		p.Status = StatusCompleted
		p.ResponseType = ErrorPend
		p.PrevPendWorkBasket = p.PendWorkBasket
		p.PendWorkBasket = resp.WorkBasket
		if p.PendWorkBasket == "" {
			p.PendWorkBasket = se.opts.SystemErrorWorkBasket
		}
		p.PendError = resp.Error
		info.SetPath(p)
		info.NotePending(pathName)
		return "", true, nil

	default:
		return "", false, &EngineError{Code: CodeRouteContract, Message: "pending response from a route is a contract violation", CaseID: info.CaseID}
	}
}

func (se *StepExecutor) invokeRoute(ctx context.Context, info *WorkflowInfo, pathName string, step Step) (component.RouteResponse, error) {
	stepCtx := se.buildContext(info, pathName, step)
	inst, err := se.factory.New(ctx, stepCtx)
	if err != nil {
		return component.RouteResponse{}, err
	}
	route, ok := inst.(component.RouteComponent)
	if !ok {
		return component.RouteResponse{}, &EngineError{Code: CodeMissingCollab, Message: "component " + step.ComponentName + " does not implement RouteComponent", CaseID: info.CaseID}
	}
	return route.ExecuteRoute(ctx, stepCtx)
}

// dispatchPause unconditionally pends.
func (se *StepExecutor) dispatchPause(ctx context.Context, info *WorkflowInfo, pathName string, step Step) (next string, pend bool, err error) {
	p, _ := info.Path(pathName)
	p.Status = StatusCompleted
	p.ResponseType = OKPend
	p.PrevPendWorkBasket = p.PendWorkBasket
	p.PendWorkBasket = PauseWorkBasket
	info.SetPath(p)
	info.NotePending(pathName)
	if se.notify != nil {
		_ = se.notify.Notify(ctx, info.CaseID, pathName, PauseWorkBasket)
	}
	return "", true, nil
}

// dispatchPersist fires ON_PERSIST. A handler error converts this
// into an ErrorPend at the system error basket rather than propagating.
func (se *StepExecutor) dispatchPersist(ctx context.Context, info *WorkflowInfo, pathName string, step Step) (next string, pend bool, err error) {
	if se.events != nil {
		if persistErr := se.events.persist(ctx, info.CaseID); persistErr != nil {
			p, _ := info.Path(pathName)
			p.Status = StatusCompleted
			p.ResponseType = ErrorPend
			p.PrevPendWorkBasket = p.PendWorkBasket
			p.PendWorkBasket = se.opts.SystemErrorWorkBasket
			p.PendError = &ErrorHandler{Code: "PERSIST_HANDLER_ERROR", Message: persistErr.Error()}
			info.SetPath(p)
			info.NotePending(pathName)
			return "", true, nil
		}
	}
	se.clearPendAtSameStep(info)
	return step.Next, false, nil
}
