package engine

import "context"

// raiseTicketIfFirst stamps ticketName on pathName's exec-path, and
// additionally adopts it as the case-level ticket if none is currently
// live: first raiser wins. A later raiser's intent is recorded on its
// own path but dropped case-wide; that drop is surfaced as a
// diagnostic ON_TICKET_DROPPED event.
func (se *StepExecutor) raiseTicketIfFirst(ctx context.Context, info *WorkflowInfo, pathName, ticketName string, rt ResponseType) bool {
	won := false
	info.WithLock(func() {
		if info.Ticket == "" {
			info.Ticket = ticketName
			info.TicketResponseType = rt
			won = true
		}
	})
	p, _ := info.Path(pathName)
	p.Ticket = ticketName
	info.SetPath(p)

	if se.metrics != nil {
		se.metrics.ObserveTicket(ticketName, won)
	}
	if !won && se.events != nil {
		_ = se.events.ticketDropped(ctx, info.CaseID, pathName, ticketName)
	}
	return won
}

// collapseToRoot checks for an outstanding case-level ticket and, if one
// exists, unwinds the case to a single exec-path ".": either jumping
// straight to the ticket's target (the raiser returned OK_PROCEED) or
// adopting the raiser's pend state (the raiser returned a pend
// response). Only ever called by a root-thread invocation of
// StepExecutor.Run.
//
// Returns unwound=false when there is nothing to do. When unwound is
// true and pended is false, nextStep names where path "." should resume
// executing. When pended is true, the case is now durably suspended at
// path ".".
func (se *StepExecutor) collapseToRoot(ctx context.Context, info *WorkflowInfo) (nextStep string, pended bool, unwound bool) {
	ticketName, rt := infoTicket(info)
	if ticketName == "" {
		return "", false, false
	}
	t, ok := se.def.Ticket(ticketName)
	if !ok {
		return "", false, false
	}

	if rt == OKProceed {
		info.ResetPaths(map[string]ExecPath{
			RootPathName: {Name: RootPathName, Status: StatusStarted, Step: t.TargetStep},
		})
		info.WithLock(func() {
			info.Ticket = ""
			info.TicketResponseType = ""
			info.PendExecPath = ""
		})
		return t.TargetStep, false, true
	}

	var raiser ExecPath
	found := false
	for _, p := range info.ExecPaths() {
		if p.Ticket == ticketName {
			raiser = p
			found = true
			break
		}
	}
	root := ExecPath{Name: RootPathName, Status: StatusCompleted, ResponseType: rt}
	if found {
		root.Step = raiser.Step
		root.PendWorkBasket = raiser.PendWorkBasket
		root.PendError = raiser.PendError
	} else {
		root.PendWorkBasket = TempHoldWorkBasket
		root.ResponseType = OKPend
	}
	info.ResetPaths(map[string]ExecPath{RootPathName: root})
	info.WithLock(func() {
		info.Ticket = ""
		info.TicketResponseType = ""
		info.PendExecPath = RootPathName
	})
	return "", true, true
}
