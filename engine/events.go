package engine

import (
	"context"

	"github.com/caseflow/engine/engine/emit"
)

// EventType enumerates the closed set of lifecycle events an engine
// fires to the external handler.
type EventType string

const (
	OnProcessStart    EventType = "ON_PROCESS_START"
	OnProcessResume   EventType = "ON_PROCESS_RESUME"
	OnProcessPend     EventType = "ON_PROCESS_PEND"
	OnProcessComplete EventType = "ON_PROCESS_COMPLETE"
	OnProcessReopen   EventType = "ON_PROCESS_REOPEN"
	OnTicketRaised    EventType = "ON_TICKET_RAISED"
	OnPersist         EventType = "ON_PERSIST"

	// OnTicketDropped is a diagnostic event, outside the core lifecycle
	// set, fired when a non-first ticket raiser's intent is dropped, so
	// operators can see contention instead of it vanishing silently.
	OnTicketDropped EventType = "ON_TICKET_DROPPED"
)

// EventContext carries whatever detail is relevant to the firing event;
// fields not meaningful for a given EventType are left zero.
type EventContext struct {
	CaseID             string
	Variables          map[string]Variable
	PendWorkBasket     string
	PendError          *ErrorHandler
	Ticket             string
	DroppedTicket      string
	DroppedExecPath    string
}

// Handler is the external lifecycle callback. Invocations are
// synchronous; a non-nil error propagates to the caller of the
// triggering RuntimeService method except for OnPersist, where it is
// converted into an ErrorPend.
type Handler interface {
	Invoke(ctx context.Context, eventType EventType, ec EventContext) error
}

// SLAQueueManager is the external deadline/milestone tracker. The engine
// only derives enqueue/dequeue calls; it never decides what a milestone
// means.
type SLAQueueManager interface {
	EnqueueCaseStartMilestones(ctx context.Context, caseID string, milestones []string) error
	Dequeue(ctx context.Context, caseID string, workBasket string) error
	Enqueue(ctx context.Context, caseID string, workBasket string) error
	DequeueAll(ctx context.Context, caseID string) error
}

// WorkBasketNotifier is the external work-management service. The engine
// only records which basket a case is pended at and tells this
// collaborator so it can route the work item; it never queries it back.
type WorkBasketNotifier interface {
	Notify(ctx context.Context, caseID, execPath, workBasket string) error
}

// eventDispatcher wires Handler + SLAQueueManager together, wrapping
// each applicable event with SLA coordination.
type eventDispatcher struct {
	handler Handler
	sla     SLAQueueManager
	metrics *Metrics
	emitter emit.Emitter
}

func newEventDispatcher(h Handler, sla SLAQueueManager, m *Metrics, e emit.Emitter) *eventDispatcher {
	if e == nil {
		e = emit.NewNullEmitter()
	}
	return &eventDispatcher{handler: h, sla: sla, metrics: m, emitter: e}
}

func (d *eventDispatcher) fire(ctx context.Context, eventType EventType, ec EventContext) error {
	if d.metrics != nil {
		d.metrics.ObserveEvent(eventType)
	}
	d.emitter.Emit(emit.Event{
		CaseID: ec.CaseID,
		Ticket: ec.Ticket,
		Msg:    string(eventType),
		Meta: map[string]interface{}{
			"work_basket": ec.PendWorkBasket,
		},
	})
	if d.handler == nil {
		return nil
	}
	return d.handler.Invoke(ctx, eventType, ec)
}

// processStart fires ON_PROCESS_START and enqueues SLA milestones. Only
// called on a genuinely fresh start, never on crash-recovery of a prior
// partial startCase.
func (d *eventDispatcher) processStart(ctx context.Context, caseID string, vars map[string]Variable, milestones []string) error {
	if err := d.fire(ctx, OnProcessStart, EventContext{CaseID: caseID, Variables: vars}); err != nil {
		return err
	}
	if d.sla != nil && len(milestones) > 0 {
		return d.sla.EnqueueCaseStartMilestones(ctx, caseID, milestones)
	}
	return nil
}

func (d *eventDispatcher) processResume(ctx context.Context, caseID string, pending EventContext) error {
	return d.fire(ctx, OnProcessResume, pending)
}

// processPend fires ON_PROCESS_PEND and derives the SLA dequeue(old) +
// enqueue(new) transition. tbcWorkBasket, when non-empty, is the
// to-be-cleared basket an OK_PEND_EOR step is holding until the next
// real pend; the derivation defers to it instead of oldWorkBasket when
// present.
func (d *eventDispatcher) processPend(ctx context.Context, caseID, oldWorkBasket, newWorkBasket, tbcWorkBasket string, pendErr *ErrorHandler) error {
	if err := d.fire(ctx, OnProcessPend, EventContext{CaseID: caseID, PendWorkBasket: newWorkBasket, PendError: pendErr}); err != nil {
		return err
	}
	if d.sla == nil {
		return nil
	}
	dequeueFrom := oldWorkBasket
	if tbcWorkBasket != "" {
		dequeueFrom = tbcWorkBasket
	}
	if dequeueFrom != "" && dequeueFrom != newWorkBasket {
		if err := d.sla.Dequeue(ctx, caseID, dequeueFrom); err != nil {
			return err
		}
	}
	if newWorkBasket != "" {
		return d.sla.Enqueue(ctx, caseID, newWorkBasket)
	}
	return nil
}

func (d *eventDispatcher) processComplete(ctx context.Context, caseID string) error {
	if err := d.fire(ctx, OnProcessComplete, EventContext{CaseID: caseID}); err != nil {
		return err
	}
	if d.sla != nil {
		return d.sla.DequeueAll(ctx, caseID)
	}
	return nil
}

func (d *eventDispatcher) processReopen(ctx context.Context, caseID, ticket string) error {
	return d.fire(ctx, OnProcessReopen, EventContext{CaseID: caseID, Ticket: ticket})
}

func (d *eventDispatcher) ticketRaised(ctx context.Context, caseID, ticket string) error {
	return d.fire(ctx, OnTicketRaised, EventContext{CaseID: caseID, Ticket: ticket})
}

func (d *eventDispatcher) ticketDropped(ctx context.Context, caseID, execPath, ticket string) error {
	return d.fire(ctx, OnTicketDropped, EventContext{CaseID: caseID, DroppedExecPath: execPath, DroppedTicket: ticket})
}

func (d *eventDispatcher) persist(ctx context.Context, caseID string) error {
	return d.fire(ctx, OnPersist, EventContext{CaseID: caseID})
}
