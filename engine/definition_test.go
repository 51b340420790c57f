package engine

import "testing"

func TestWorkflowDefinitionStepLookup(t *testing.T) {
	def := NewWorkflowDefinition("TEST", "START", []Step{
		{Name: "START", Kind: KindTask, Next: "END"},
	}, nil, nil)

	s, ok := def.Step("START")
	if !ok || s.Kind != KindTask {
		t.Fatalf("got %+v ok=%v", s, ok)
	}

	_, ok = def.Step("MISSING")
	if ok {
		t.Fatal("expected missing step to not be found")
	}
}

func TestWorkflowDefinitionSyntheticEndStep(t *testing.T) {
	def := NewWorkflowDefinition("TEST", "START", nil, nil, nil)

	for _, name := range []string{"", "end"} {
		s, ok := def.Step(name)
		if !ok {
			t.Fatalf("end step lookup for %q should always resolve", name)
		}
		if s.Kind != KindEnd {
			t.Fatalf("got kind %v, want KindEnd", s.Kind)
		}
	}
}

func TestWorkflowDefinitionTicketLookup(t *testing.T) {
	def := NewWorkflowDefinition("TEST", "START", nil, []Ticket{
		{Name: "CANCEL", TargetStep: "CANCEL_STEP"},
	}, nil)

	tk, ok := def.Ticket("CANCEL")
	if !ok || tk.TargetStep != "CANCEL_STEP" {
		t.Fatalf("got %+v ok=%v", tk, ok)
	}

	if _, ok := def.Ticket("UNKNOWN"); ok {
		t.Fatal("expected unknown ticket to not be found")
	}
}
