package engine

// Cursor is the starting point StepExecutor resumes from: which exec-path
// to re-enter, which step to dispatch, and whether that dispatch should
// re-run the step or move past it.
type Cursor struct {
	ExecPath string
	Step     string

	// Rerun is true when the cursor must re-dispatch the same step
	// (ErrorPend recovery, or an OKPendEOR re-evaluation) rather than
	// advance to the step's Next. A released PAUSE step advances to Next.
	Rerun bool
}

// SelectCursor picks the exec-path/step pair a StepExecutor resumes at.
// info must already be sanitized.
//
//   - Fresh case (no exec-paths at all): the definition's StartStep on the
//     root path.
//   - Outstanding case-level ticket: the ticket's TargetStep on the root
//     path, since a ticket always unifies execution back to root.
//   - Otherwise resume at info.PendExecPath, branching on the response
//     type it pended with:
//   - OKPend: advance to the pended step's Next.
//   - OKPendEOR: re-evaluate the same step (it didn't finish routing).
//   - ErrorPend: re-run the same step (it's a retry entry point, not a
//     silent engine retry — the caller decides to resume it).
//   - a PAUSE step pended with no special response semantics: release
//     forward to Next, same as OKPend.
func SelectCursor(info *WorkflowInfo) (Cursor, error) {
	paths := info.ExecPaths()

	if len(paths) == 0 {
		return Cursor{ExecPath: RootPathName, Step: info.Definition.StartStep}, nil
	}

	if info.Ticket != "" {
		t, ok := info.Definition.Ticket(info.Ticket)
		if !ok {
			return Cursor{}, &EngineError{
				Code:    CodeTicketNotFound,
				Message: "ticket " + info.Ticket + " not found in definition",
				CaseID:  info.CaseID,
			}
		}
		return Cursor{ExecPath: RootPathName, Step: t.TargetStep}, nil
	}

	pendName := info.PendExecPath
	if pendName == "" {
		return Cursor{}, &EngineError{
			Code:    CodeIllegalState,
			Message: "no pend exec-path to resume from",
			CaseID:  info.CaseID,
		}
	}
	p, ok := paths[pendName]
	if !ok {
		return Cursor{}, &EngineError{
			Code:    CodeIllegalState,
			Message: "pend exec-path " + pendName + " not present",
			CaseID:  info.CaseID,
		}
	}

	step, ok := info.Definition.Step(p.Step)
	if !ok {
		return Cursor{}, &EngineError{
			Code:    CodeStepNotFound,
			Message: "step " + p.Step + " not found in definition",
			CaseID:  info.CaseID,
		}
	}

	switch p.ResponseType {
	case OKPendEOR:
		return Cursor{ExecPath: pendName, Step: step.Name, Rerun: true}, nil
	case ErrorPend:
		return Cursor{ExecPath: pendName, Step: step.Name, Rerun: true}, nil
	default: // OKPend, and PAUSE's implicit release.
		return Cursor{ExecPath: pendName, Step: step.Next}, nil
	}
}
