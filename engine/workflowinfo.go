package engine

import "sync"

// WorkflowInfo is the mutable root of one case's state: variables, the
// live exec-path map, the case-level ticket, and the pointer to whichever
// exec-path is currently pended.
//
// WorkflowInfo exclusively owns its ExecPath map — there are no
// back-pointers from an ExecPath to WorkflowInfo or to a parent path (see
// ParentName). A single per-case mutex guards every field
// mutation except the Variables map, which uses its own per-key cells so
// that single-variable reads and writes never contend with exec-path
// bookkeeping.
type WorkflowInfo struct {
	CaseID     string
	Definition *WorkflowDefinition

	IsComplete bool

	// Ticket is the case-level ticket: first-wins across every exec-path
	// that raises one.
	Ticket string

	// TicketResponseType records how the raiser pended when it raised
	// Ticket, so a later unwind knows whether to adopt the ticket target
	// directly (OKProceed) or to adopt the raiser's pend state (OKPend /
	// OKPendEOR / ErrorPend).
	TicketResponseType ResponseType

	// PendExecPath names the deepest currently-pended exec-path, except
	// when it is literally RootPathName, which signals post-ticket
	// unification (invariant 5).
	PendExecPath string

	// IsPendAtSameStep is set when ResumeCase begins on an existing
	// pended case and cleared the moment any forward progress occurs.
	IsPendAtSameStep bool

	mu        sync.Mutex
	execPaths map[string]ExecPath
	variables map[string]*variableCell
}

type variableCell struct {
	mu sync.Mutex
	v  Variable
}

// NewWorkflowInfo creates an empty info record for a fresh case.
func NewWorkflowInfo(caseID string, def *WorkflowDefinition) *WorkflowInfo {
	return &WorkflowInfo{
		CaseID:     caseID,
		Definition: def,
		execPaths:  make(map[string]ExecPath),
		variables:  make(map[string]*variableCell),
	}
}

// WithLock runs fn while holding the case-level mutex. Use for any
// compound read-modify-write across IsComplete / Ticket / PendExecPath /
// the ExecPath map. The mutex is not reentrant: fn must not call any
// other WorkflowInfo method that takes it (Path, SetPath, ExecPaths,
// NotePending, the variable accessors, ...).
func (w *WorkflowInfo) WithLock(fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fn()
}

// ExecPaths returns a shallow copy of the current exec-path map. Safe to
// call without WithLock; the copy is a point-in-time snapshot.
func (w *WorkflowInfo) ExecPaths() map[string]ExecPath {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make(map[string]ExecPath, len(w.execPaths))
	for k, v := range w.execPaths {
		out[k] = v
	}
	return out
}

// Path returns the named exec-path and whether it exists. It takes the
// case-level mutex itself, so it must not be called from inside a
// WithLock closure.
func (w *WorkflowInfo) Path(name string) (ExecPath, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	p, ok := w.execPaths[name]
	return p, ok
}

// SetPath inserts or overwrites an exec-path by its Name. It takes the
// case-level mutex itself, so it must not be called from inside a
// WithLock closure.
func (w *WorkflowInfo) SetPath(p ExecPath) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.execPaths[p.Name] = p
}

// DeletePath removes an exec-path by name (used when resetting all paths
// to a single root path, e.g. on ticket adoption or reopen).
func (w *WorkflowInfo) DeletePath(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.execPaths, name)
}

// ResetPaths replaces the entire exec-path map atomically.
func (w *WorkflowInfo) ResetPaths(paths map[string]ExecPath) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.execPaths = paths
}

// updatePendExecPathLocked enforces invariant 5: keep the existing value if it is
// at least as deep as the incoming candidate, replace it if the candidate
// is deeper, and always replace if the candidate is the literal root (which
// signals post-ticket unification). Must be called while holding the lock.
func (w *WorkflowInfo) updatePendExecPathLocked(candidate string) {
	if candidate == RootPathName {
		w.PendExecPath = candidate
		return
	}
	if w.PendExecPath == "" {
		w.PendExecPath = candidate
		return
	}
	existing, ok := w.execPaths[w.PendExecPath]
	incoming, ok2 := w.execPaths[candidate]
	if !ok || (ok2 && incoming.Depth() > existing.Depth()) {
		w.PendExecPath = candidate
	}
}

// NotePending records that path pended, updating PendExecPath per the
// depth-wins rule above. Safe to call concurrently from sibling exec-path
// goroutines.
func (w *WorkflowInfo) NotePending(pathName string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.updatePendExecPathLocked(pathName)
}

// GetVariable reads a variable by name. The zero Variable and false are
// returned if it has never been set.
func (w *WorkflowInfo) GetVariable(name string) (Variable, bool) {
	w.mu.Lock()
	cell, ok := w.variables[name]
	w.mu.Unlock()
	if !ok {
		return Variable{}, false
	}
	cell.mu.Lock()
	defer cell.mu.Unlock()
	return cell.v, true
}

// SetVariable writes a variable by name, creating its cell on first
// write. Writes to different variables never contend with each other:
// each key gets its own cell, so no lock is needed across keys.
func (w *WorkflowInfo) SetVariable(v Variable) {
	w.mu.Lock()
	cell, ok := w.variables[v.Name]
	if !ok {
		cell = &variableCell{}
		w.variables[v.Name] = cell
	}
	w.mu.Unlock()

	cell.mu.Lock()
	defer cell.mu.Unlock()
	cell.v = v
}

// Variables returns a point-in-time snapshot of every variable, keyed by
// name. Used when overlaying initial/resume variables and when building
// audit-record snapshots.
func (w *WorkflowInfo) Variables() map[string]Variable {
	w.mu.Lock()
	names := make([]string, 0, len(w.variables))
	cells := make([]*variableCell, 0, len(w.variables))
	for name, cell := range w.variables {
		names = append(names, name)
		cells = append(cells, cell)
	}
	w.mu.Unlock()

	out := make(map[string]Variable, len(names))
	for i, name := range names {
		cells[i].mu.Lock()
		out[name] = cells[i].v
		cells[i].mu.Unlock()
	}
	return out
}

// OverlayVariables upserts each given variable; it never deletes
// existing ones not present in the overlay.
func (w *WorkflowInfo) OverlayVariables(vars []Variable) {
	for _, v := range vars {
		w.SetVariable(v)
	}
}
