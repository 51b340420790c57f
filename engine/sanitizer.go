package engine

// SystemErrorWorkBasket is the default work-basket the sanitizer and
// StepExecutor use for unrepaired/errored exec-paths when Options does
// not override it.
const SystemErrorWorkBasket = "system_error"

// TempHoldWorkBasket is the work-basket the sanitizer stamps on an
// exec-path it promotes to carry an orphaned case-level ticket (step 2).
const TempHoldWorkBasket = "workflow_temp_hold"

// PauseWorkBasket is the work-basket a PAUSE step pends into.
const PauseWorkBasket = "workflow_pause"

// Sanitize runs the deterministic crash-repair pass over a freshly
// loaded WorkflowInfo, mutating it in place, and returns an error only
// when the info cannot be repaired. It must run
// before RuntimeService picks a starting cursor. Sanitize is
// idempotent: running it twice on an already-sanitized info is a
// no-op.
func Sanitize(info *WorkflowInfo) error {
	paths := info.ExecPaths()

	// Step 1: derive IsComplete if unset. WorkflowInfo.IsComplete has no
	// separate "unset" representation in Go (bool zero value is false),
	// so this derivation only ever has an observable effect when the
	// caller explicitly marks the record as freshly loaded with an
	// unknown completion state; StartCase/ResumeCase never do, so in
	// practice this step is a conservative recomputation that always
	// agrees with a correctly-written IsComplete. It is kept because the
	// source-of-truth for "complete" is the path set, not the flag.
	allCompletedNoPend := true
	for _, p := range paths {
		if p.Status != StatusCompleted || p.PendWorkBasket != "" {
			allCompletedNoPend = false
			break
		}
	}
	if len(paths) > 0 {
		info.IsComplete = allCompletedNoPend
	}

	// Step 2: an orphaned case-level ticket (no exec-path carries it) is
	// adopted by the shortest-named path, arbitrarily breaking ties by
	// map iteration order (Go map order is already randomized, which is
	// an acceptable tie-break since the sanitizer only needs *a*
	// deterministic-enough repair, not a globally deterministic one).
	if info.Ticket != "" {
		carried := false
		for _, p := range paths {
			if p.Ticket == info.Ticket {
				carried = true
				break
			}
		}
		if !carried {
			shortest := ""
			for name := range paths {
				if shortest == "" || len(name) < len(shortest) {
					shortest = name
				}
			}
			if shortest != "" {
				p := paths[shortest]
				p.Ticket = info.Ticket
				p.PendWorkBasket = TempHoldWorkBasket
				p.ResponseType = OKPend
				paths[shortest] = p
			}
		}
	}

	// Step 3: repair every path interrupted mid-step (STARTED survives a
	// crash only if the process died before the path could mark itself
	// COMPLETED).
	for name, p := range paths {
		if p.Status != StatusStarted {
			continue
		}
		p.Status = StatusCompleted
		if p.PrevPendWorkBasket != "" {
			p.PendWorkBasket = p.PrevPendWorkBasket
		} else {
			p.PendWorkBasket = TempHoldWorkBasket
		}

		step, ok := info.Definition.Step(p.Step)
		switch {
		case !ok:
			p.ResponseType = OKPendEOR
		case step.Kind == KindParallelRoute || step.Kind == KindParallelRouteDynamic:
			// Leave as-is: accepts the small risk that every child had
			// already finished but the parent crashed before running the
			// join (see DESIGN.md for the chosen behavior).
		case step.Kind == KindSingularRoute && p.ResponseType == OKProceed:
			p.ResponseType = OKPendEOR
		case step.Kind == KindTask && p.ResponseType == OKProceed:
			p.ResponseType = OKPend
		case p.ResponseType == "":
			p.ResponseType = OKPendEOR
		}
		paths[name] = p
	}

	info.ResetPaths(paths)

	// Step 4: if the case isn't complete and no pend path is recorded,
	// find the deepest pended path. No candidate means the state cannot
	// be repaired.
	if !info.IsComplete && info.PendExecPath == "" {
		deepest := ""
		deepestDepth := -1
		for name, p := range paths {
			if p.PendWorkBasket == "" {
				continue
			}
			if d := p.Depth(); d > deepestDepth {
				deepest = name
				deepestDepth = d
			}
		}
		if deepest == "" {
			return &EngineError{
				Code:    CodeUnrepairable,
				Message: "no pend path found for incomplete case",
				CaseID:  info.CaseID,
				Cause:   ErrUnrepairable,
			}
		}
		info.PendExecPath = deepest
	}

	return nil
}
