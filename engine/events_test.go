package engine

import (
	"context"
	"testing"
)

type recordingHandler struct {
	invocations []EventType
	failOn      EventType
}

func (h *recordingHandler) Invoke(ctx context.Context, eventType EventType, ec EventContext) error {
	h.invocations = append(h.invocations, eventType)
	if eventType == h.failOn {
		return errStub("handler failure")
	}
	return nil
}

type recordingSLA struct {
	enqueued       []string
	dequeued       []string
	dequeuedAll    []string
	milestoneCalls int
}

func (s *recordingSLA) EnqueueCaseStartMilestones(ctx context.Context, caseID string, milestones []string) error {
	s.milestoneCalls++
	return nil
}

func (s *recordingSLA) Dequeue(ctx context.Context, caseID string, workBasket string) error {
	s.dequeued = append(s.dequeued, workBasket)
	return nil
}

func (s *recordingSLA) Enqueue(ctx context.Context, caseID string, workBasket string) error {
	s.enqueued = append(s.enqueued, workBasket)
	return nil
}

func (s *recordingSLA) DequeueAll(ctx context.Context, caseID string) error {
	s.dequeuedAll = append(s.dequeuedAll, caseID)
	return nil
}

func TestEventDispatcherProcessStartEnqueuesMilestonesOnlyWhenPresent(t *testing.T) {
	h := &recordingHandler{}
	sla := &recordingSLA{}
	d := newEventDispatcher(h, sla, nil, nil)

	if err := d.processStart(context.Background(), "case-1", nil, []string{"M1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sla.milestoneCalls != 1 {
		t.Errorf("got %d milestone calls, want 1", sla.milestoneCalls)
	}

	if err := d.processStart(context.Background(), "case-2", nil, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sla.milestoneCalls != 1 {
		t.Errorf("expected no additional milestone call without milestones, got %d total", sla.milestoneCalls)
	}
}

func TestEventDispatcherProcessPendDerivesDequeueEnqueue(t *testing.T) {
	sla := &recordingSLA{}
	d := newEventDispatcher(nil, sla, nil, nil)

	if err := d.processPend(context.Background(), "case-1", "OLD", "NEW", "", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sla.dequeued) != 1 || sla.dequeued[0] != "OLD" {
		t.Errorf("got dequeued %v, want [OLD]", sla.dequeued)
	}
	if len(sla.enqueued) != 1 || sla.enqueued[0] != "NEW" {
		t.Errorf("got enqueued %v, want [NEW]", sla.enqueued)
	}
}

func TestEventDispatcherProcessPendPrefersTbcBasketForDequeue(t *testing.T) {
	sla := &recordingSLA{}
	d := newEventDispatcher(nil, sla, nil, nil)

	if err := d.processPend(context.Background(), "case-1", "OLD", "NEW", "TBC", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sla.dequeued) != 1 || sla.dequeued[0] != "TBC" {
		t.Errorf("got dequeued %v, want [TBC] (tbcWorkBasket takes precedence over oldWorkBasket)", sla.dequeued)
	}
}

func TestEventDispatcherProcessPendSkipsDequeueWhenBasketUnchanged(t *testing.T) {
	sla := &recordingSLA{}
	d := newEventDispatcher(nil, sla, nil, nil)

	if err := d.processPend(context.Background(), "case-1", "SAME", "SAME", "", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sla.dequeued) != 0 {
		t.Errorf("expected no dequeue when old and new work baskets are identical, got %v", sla.dequeued)
	}
	if len(sla.enqueued) != 1 {
		t.Errorf("expected the enqueue of the new basket to still happen, got %v", sla.enqueued)
	}
}

func TestEventDispatcherProcessCompleteDequeuesAll(t *testing.T) {
	sla := &recordingSLA{}
	d := newEventDispatcher(nil, sla, nil, nil)

	if err := d.processComplete(context.Background(), "case-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sla.dequeuedAll) != 1 || sla.dequeuedAll[0] != "case-1" {
		t.Errorf("got %v, want [case-1]", sla.dequeuedAll)
	}
}

func TestEventDispatcherFireSurfacesHandlerErrorOnPersist(t *testing.T) {
	h := &recordingHandler{failOn: OnPersist}
	d := newEventDispatcher(h, nil, nil, nil)

	err := d.persist(context.Background(), "case-1")
	if err == nil {
		t.Fatal("expected the handler's error on OnPersist to propagate")
	}
}

func TestEventDispatcherFireSurfacesHandlerErrorOnAnyEvent(t *testing.T) {
	h := &recordingHandler{failOn: OnTicketRaised}
	d := newEventDispatcher(h, nil, nil, nil)

	if err := d.ticketRaised(context.Background(), "case-1", "CANCEL"); err == nil {
		t.Fatal("expected the handler's error to propagate for a non-persist event too")
	}
}

func TestEventDispatcherNilHandlerIsFine(t *testing.T) {
	d := newEventDispatcher(nil, nil, nil, nil)
	if err := d.processReopen(context.Background(), "case-1", "CANCEL"); err != nil {
		t.Fatalf("unexpected error with a nil handler: %v", err)
	}
}

func TestEventDispatcherTicketDroppedRecordsDroppedDetails(t *testing.T) {
	h := &recordingHandler{}
	d := newEventDispatcher(h, nil, nil, nil)

	if err := d.ticketDropped(context.Background(), "case-1", ".FORK.A.", "CANCEL"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(h.invocations) != 1 || h.invocations[0] != OnTicketDropped {
		t.Fatalf("got %v, want a single OnTicketDropped invocation", h.invocations)
	}
}
