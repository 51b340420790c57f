package engine

import "testing"

func TestWorkflowInfoSetGetPath(t *testing.T) {
	info := NewWorkflowInfo("case-1", nil)
	info.SetPath(ExecPath{Name: RootPathName, Step: "START"})

	p, ok := info.Path(RootPathName)
	if !ok || p.Step != "START" {
		t.Fatalf("got %+v ok=%v", p, ok)
	}

	if _, ok := info.Path(".MISSING."); ok {
		t.Fatal("expected missing path to not be found")
	}
}

func TestWorkflowInfoDeletePath(t *testing.T) {
	info := NewWorkflowInfo("case-1", nil)
	info.SetPath(ExecPath{Name: ".FORK.A."})
	info.DeletePath(".FORK.A.")
	if _, ok := info.Path(".FORK.A."); ok {
		t.Fatal("expected path to be gone after DeletePath")
	}
}

func TestWorkflowInfoResetPaths(t *testing.T) {
	info := NewWorkflowInfo("case-1", nil)
	info.SetPath(ExecPath{Name: ".FORK.A."})
	info.SetPath(ExecPath{Name: ".FORK.B."})

	info.ResetPaths(map[string]ExecPath{
		RootPathName: {Name: RootPathName, Step: "X"},
	})

	all := info.ExecPaths()
	if len(all) != 1 {
		t.Fatalf("got %d paths after reset, want 1", len(all))
	}
	if _, ok := all[RootPathName]; !ok {
		t.Fatal("expected root path to survive reset")
	}
}

func TestWorkflowInfoUpdatePendExecPathDepthWins(t *testing.T) {
	info := NewWorkflowInfo("case-1", nil)
	info.SetPath(ExecPath{Name: ".FORK.A."})
	info.SetPath(ExecPath{Name: ".FORK.A.INNER.B."})

	info.NotePending(".FORK.A.")
	if info.PendExecPath != ".FORK.A." {
		t.Fatalf("got %q, want .FORK.A. as the first recorded pend", info.PendExecPath)
	}

	// A deeper candidate replaces a shallower one.
	info.NotePending(".FORK.A.INNER.B.")
	if info.PendExecPath != ".FORK.A.INNER.B." {
		t.Fatalf("got %q, want the deeper path to win", info.PendExecPath)
	}

	// A shallower candidate after a deeper one is already recorded does
	// not displace it.
	info.NotePending(".FORK.A.")
	if info.PendExecPath != ".FORK.A.INNER.B." {
		t.Fatalf("got %q, shallower candidate should not displace the deeper recorded pend", info.PendExecPath)
	}
}

func TestWorkflowInfoUpdatePendExecPathRootAlwaysWins(t *testing.T) {
	info := NewWorkflowInfo("case-1", nil)
	info.SetPath(ExecPath{Name: ".FORK.A.INNER.B."})
	info.NotePending(".FORK.A.INNER.B.")

	info.NotePending(RootPathName)
	if info.PendExecPath != RootPathName {
		t.Fatalf("got %q, want root to unconditionally win (post-ticket unification signal)", info.PendExecPath)
	}
}

func TestWorkflowInfoVariableRoundTrip(t *testing.T) {
	info := NewWorkflowInfo("case-1", nil)

	if _, ok := info.GetVariable("unset"); ok {
		t.Fatal("expected unset variable to not be found")
	}

	info.SetVariable(Variable{Name: "amount", Type: VarInteger, Value: 42})
	v, ok := info.GetVariable("amount")
	if !ok || v.Value != 42 {
		t.Fatalf("got %+v ok=%v", v, ok)
	}

	all := info.Variables()
	if len(all) != 1 || all["amount"].Value != 42 {
		t.Fatalf("got %+v", all)
	}
}

func TestWorkflowInfoOverlayVariablesUpsertsOnly(t *testing.T) {
	info := NewWorkflowInfo("case-1", nil)
	info.SetVariable(Variable{Name: "kept", Type: VarString, Value: "original"})

	info.OverlayVariables([]Variable{
		{Name: "kept", Type: VarString, Value: "overwritten"},
		{Name: "added", Type: VarString, Value: "new"},
	})

	kept, _ := info.GetVariable("kept")
	if kept.Value != "overwritten" {
		t.Fatalf("got %v, want overwritten", kept.Value)
	}
	added, ok := info.GetVariable("added")
	if !ok || added.Value != "new" {
		t.Fatalf("got %+v ok=%v", added, ok)
	}
}
