// Package engine provides the core workflow orchestration runtime: the
// step-graph interpreter, the parallel execution-path scheduler, the
// ticket interrupt mechanism, the pend/resume state machine, crash
// recovery via sanitization, and the at-least-once durability contract.
package engine

import "github.com/caseflow/engine/component"

// StepKind identifies the behavior a Step dispatches to during execution.
type StepKind string

const (
	// KindTask invokes user code via the component factory and expects a TaskResponse.
	KindTask StepKind = "TASK"

	// KindSingularRoute picks exactly one outgoing branch based on user route code.
	KindSingularRoute StepKind = "S_ROUTE"

	// KindParallelRoute forks a statically declared set of branches.
	KindParallelRoute StepKind = "P_ROUTE"

	// KindParallelRouteDynamic forks a branch set chosen at runtime by user route code.
	KindParallelRouteDynamic StepKind = "P_ROUTE_DYNAMIC"

	// KindJoin is the synchronization point where parallel branches converge.
	KindJoin StepKind = "P_JOIN"

	// KindPause unconditionally pends the exec-path until externally resumed.
	KindPause StepKind = "PAUSE"

	// KindPersist is a checkpoint marker that fires the ON_PERSIST event.
	KindPersist StepKind = "PERSIST"

	// KindEnd is the synthetic terminal step. It never appears in a definition's
	// step map; StepExecutor substitutes it when a step's next pointer is empty
	// or points past the end of the graph.
	KindEnd StepKind = "end"
)

// Branch is one outgoing edge of a route step: a name paired with the step
// to execute when that branch is taken.
type Branch struct {
	Name string
	Next string
}

// Step is one immutable node in a WorkflowDefinition's graph.
//
// Attributes not relevant to a given Kind are left zero: a TASK has no
// Branches, a P_ROUTE has no ComponentName for itself (its branches carry
// their own Next pointers), a PAUSE has only Next.
type Step struct {
	Name string
	Kind StepKind

	// ComponentName is the key the component factory uses to instantiate
	// user code for TASK, S_ROUTE, P_ROUTE and P_ROUTE_DYNAMIC steps.
	ComponentName string

	// UserData is opaque configuration handed to the component unmodified.
	UserData map[string]any

	// Next is the single successor step name. Used by TASK, PAUSE, PERSIST
	// and P_JOIN, and as the common child target for P_ROUTE_DYNAMIC (its
	// branches are chosen at runtime, so they share one template Next
	// rather than each declaring their own).
	Next string

	// Branches lists the named outgoing edges of S_ROUTE and P_ROUTE steps.
	// P_ROUTE_DYNAMIC steps may leave Branches empty or partial: dynamic
	// branch names are never matched against it, since they are legal by
	// construction (chosen by the route's own user code at runtime); any
	// entries present are documentation only.
	Branches []Branch

	// JoinStep names the P_JOIN step that this P_ROUTE's branches all
	// converge on. Unused for other kinds.
	JoinStep string
}

// Ticket is a named goto-style interrupt: raising one unwinds any parallel
// structure active in the case and resumes execution at TargetStep.
type Ticket struct {
	Name       string
	TargetStep string
}

// VariableType, Variable, ResponseType, ErrorHandler and VariableAccessor
// are declared in package component, not here: component is the leaf
// package the engine calls out to, and must never import engine back.
// These aliases let the rest of this package use the bare engine.X
// names it would have had if they were declared locally.
type (
	VariableType     = component.VariableType
	Variable         = component.Variable
	ResponseType     = component.ResponseType
	ErrorHandler     = component.ErrorHandler
	VariableAccessor = component.VariableAccessor
)

const (
	VarBoolean     = component.VarBoolean
	VarInteger     = component.VarInteger
	VarLong        = component.VarLong
	VarString      = component.VarString
	VarObject      = component.VarObject
	VarListBoolean = component.VarListBoolean
	VarListInteger = component.VarListInteger
	VarListLong    = component.VarListLong
	VarListString  = component.VarListString
	VarListObject  = component.VarListObject

	OKProceed = component.OKProceed
	OKPend    = component.OKPend
	OKPendEOR = component.OKPendEOR
	ErrorPend = component.ErrorPend
)
