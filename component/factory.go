// Package component declares the interfaces the engine calls out to for
// step behavior, and the data shapes crossing that boundary. Every type
// here is an external collaborator: the engine never implements one,
// it only calls one.
package component

import (
	"context"
)

// Context is the read-only snapshot handed to a component at dispatch
// time. Variables is the case's live shared variable map — writes a
// component makes through it are visible to every other exec-path
// immediately.
type Context struct {
	CaseID   string
	StepName string
	CompName string
	UserData map[string]any

	Variables VariableAccessor

	ExecPathName       string
	PendWorkBasket     string
	LastPendWorkBasket string
	LastPendStep       string
	PendError          *ErrorHandler
	IsPendAtSameStep   bool
	TicketName         string
}

// TaskResponse is the outcome of TaskComponent.ExecuteStep.
//
// WorkBasket is required whenever ResponseType is a pend response.
// Ticket, if set, must name a ticket declared in the workflow
// definition. Error is required when ResponseType is ErrorPend.
type TaskResponse struct {
	ResponseType ResponseType
	WorkBasket   string
	Ticket       string
	Error        *ErrorHandler
}

// RouteResponse is the outcome of RouteComponent.ExecuteRoute.
//
// Branches holds exactly one name for an S_ROUTE dispatch, or one or
// more for a P_ROUTE_DYNAMIC dispatch. A RouteComponent may never
// return a pend response — that is a contract violation the engine
// surfaces as a fatal error.
type RouteResponse struct {
	ResponseType ResponseType
	Branches     []string
	WorkBasket   string
	Error        *ErrorHandler
}

// TaskComponent is user code bound to a TASK step.
type TaskComponent interface {
	ExecuteStep(ctx context.Context, stepCtx Context) (TaskResponse, error)
}

// RouteComponent is user code bound to an S_ROUTE, P_ROUTE or
// P_ROUTE_DYNAMIC step.
type RouteComponent interface {
	ExecuteRoute(ctx context.Context, stepCtx Context) (RouteResponse, error)
}

// Factory instantiates the component bound to a step's ComponentName.
// Implementations typically hold a registry keyed by name; the engine
// calls New once per dispatch and does not cache the result.
type Factory interface {
	New(ctx context.Context, stepCtx Context) (any, error)
}
