package engine

import "encoding/json"

// serializableInfo is the JSON-serializable shape of WorkflowInfo (§6
// "Persisted artifacts"). WorkflowInfo itself is not directly
// marshalable because of its mutex and unexported maps, mirroring the
// teacher's MemStore/serializableMemStore split (store/memory.go).
type serializableInfo struct {
	CaseID              string              `json:"case_id"`
	DefinitionName      string              `json:"definition_name"`
	IsComplete          bool                `json:"is_complete"`
	Ticket              string              `json:"ticket"`
	TicketResponseType  ResponseType        `json:"ticket_response_type"`
	PendExecPath        string              `json:"pend_exec_path"`
	IsPendAtSameStep    bool                `json:"is_pend_at_same_step"`
	ExecPaths           map[string]ExecPath `json:"exec_paths"`
	Variables           map[string]Variable `json:"variables"`
}

// MarshalJSON serializes a WorkflowInfo for the persistence façade. The
// WorkflowDefinition itself is not embedded; only its name is recorded
// (definition_name). The definition's steps and tickets are not persisted
// anywhere: StartCase stores just the definition's name under
// journey<SEP>caseId.
func (w *WorkflowInfo) MarshalJSON() ([]byte, error) {
	w.mu.Lock()
	paths := make(map[string]ExecPath, len(w.execPaths))
	for k, v := range w.execPaths {
		paths[k] = v
	}
	defName := ""
	if w.Definition != nil {
		defName = w.Definition.Name
	}
	w.mu.Unlock()

	return json.Marshal(serializableInfo{
		CaseID:             w.CaseID,
		DefinitionName:     defName,
		IsComplete:         w.IsComplete,
		Ticket:             w.Ticket,
		TicketResponseType: w.TicketResponseType,
		PendExecPath:       w.PendExecPath,
		IsPendAtSameStep:   w.IsPendAtSameStep,
		ExecPaths:          paths,
		Variables:          w.Variables(),
	})
}

// UnmarshalJSON deserializes into an existing WorkflowInfo. Callers must
// set Definition themselves after unmarshaling (RuntimeService.loadInfo
// attaches the service's own *WorkflowDefinition — see MarshalJSON).
func (w *WorkflowInfo) UnmarshalJSON(data []byte) error {
	var s serializableInfo
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	w.mu.Lock()
	w.CaseID = s.CaseID
	w.IsComplete = s.IsComplete
	w.Ticket = s.Ticket
	w.TicketResponseType = s.TicketResponseType
	w.PendExecPath = s.PendExecPath
	w.IsPendAtSameStep = s.IsPendAtSameStep
	w.execPaths = s.ExecPaths
	if w.execPaths == nil {
		w.execPaths = make(map[string]ExecPath)
	}
	w.variables = make(map[string]*variableCell, len(s.Variables))
	for name, v := range s.Variables {
		w.variables[name] = &variableCell{v: v}
	}
	w.mu.Unlock()
	return nil
}
