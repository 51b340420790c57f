package engine

// WorkflowDefinition is the immutable, shared graph for one process
// type: no back-pointers, read-only once published.
// A *WorkflowDefinition is safe to share across every case and every
// StepExecutor goroutine concurrently: nothing in this package ever
// mutates one after NewWorkflowDefinition returns.
type WorkflowDefinition struct {
	Name string

	// StartStep is the entry step name for a fresh case.
	StartStep string

	steps   map[string]Step
	tickets map[string]Ticket

	// VariableSchema declares the legal variables and their types for
	// cases of this definition. It is advisory metadata consumed by
	// callers (e.g. for UI rendering); the engine does not enforce it
	// beyond the overlay semantics in RuntimeService.
	VariableSchema []Variable
}

// NewWorkflowDefinition builds an immutable definition from its steps and
// tickets. Step and ticket names must be unique; NewWorkflowDefinition
// does not validate graph reachability — missing steps fail at
// dispatch time with a typed EngineError instead.
func NewWorkflowDefinition(name, startStep string, steps []Step, tickets []Ticket, schema []Variable) *WorkflowDefinition {
	d := &WorkflowDefinition{
		Name:           name,
		StartStep:      startStep,
		steps:          make(map[string]Step, len(steps)),
		tickets:        make(map[string]Ticket, len(tickets)),
		VariableSchema: schema,
	}
	for _, s := range steps {
		d.steps[s.Name] = s
	}
	for _, t := range tickets {
		d.tickets[t.Name] = t
	}
	return d
}

// Step looks up a step by name. The synthetic "end" step always resolves,
// even though it is never present in the steps map, since reaching it (or
// an empty next-pointer) always terminates the path.
func (d *WorkflowDefinition) Step(name string) (Step, bool) {
	if name == "" || name == string(KindEnd) {
		return Step{Name: string(KindEnd), Kind: KindEnd}, true
	}
	s, ok := d.steps[name]
	return s, ok
}

// Ticket looks up a ticket by name.
func (d *WorkflowDefinition) Ticket(name string) (Ticket, bool) {
	t, ok := d.tickets[name]
	return t, ok
}
