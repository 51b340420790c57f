package engine

import (
	"context"
	"strconv"
	"time"

	"github.com/caseflow/engine/engine/emit"
)

// AuditRecord is one durable log entry for a single step dispatch. Its
// persistence key is audit_log<SEP>caseId<SEP>seq<SEP>stepName; Seq comes from
// Store.IncrCounter("audit_log_"+caseID), giving a monotonically
// increasing, per-case sequence.
type AuditRecord struct {
	CaseID       string              `json:"case_id"`
	Seq          int64               `json:"seq"`
	StepName     string              `json:"step_name"`
	ExecPath     string              `json:"exec_path"`
	Branches     []string            `json:"branches,omitempty"`
	ResponseType ResponseType        `json:"response_type"`
	WorkBasket   string              `json:"work_basket,omitempty"`
	Variables    map[string]Variable `json:"variables,omitempty"`
	StartedAt    time.Time           `json:"started_at"`
	FinishedAt   time.Time           `json:"finished_at"`
}

// auditWriter records one AuditRecord per step dispatch. A fork/join
// pair produces no duplicate records: each branch path that reaches the
// join stops there (handleJoin in scheduler.go reports it terminal)
// without writing a record, and the parent path writes a single record
// for the route step once fork returns.
type auditWriter struct {
	store        Store
	keySeparator string
	snapshotVars bool
	emitter      emit.Emitter
}

func newAuditWriter(store Store, keySeparator string, snapshotVars bool, emitter emit.Emitter) *auditWriter {
	if emitter == nil {
		emitter = emit.NewNullEmitter()
	}
	return &auditWriter{store: store, keySeparator: keySeparator, snapshotVars: snapshotVars, emitter: emitter}
}

func (w *auditWriter) write(ctx context.Context, rec AuditRecord, info *WorkflowInfo) error {
	if w.snapshotVars && rec.Variables == nil {
		rec.Variables = info.Variables()
	}
	seq, err := w.store.IncrCounter(ctx, "audit_log_"+rec.CaseID)
	if err != nil {
		return err
	}
	rec.Seq = seq
	key := auditKey(w.keySeparator, rec.CaseID, seq, rec.StepName)
	if err := w.store.Save(ctx, key, rec); err != nil {
		return err
	}
	w.emitter.Emit(emit.Event{
		CaseID:   rec.CaseID,
		ExecPath: rec.ExecPath,
		StepName: rec.StepName,
		Msg:      "step_dispatch",
		Meta: map[string]interface{}{
			"response_type": string(rec.ResponseType),
			"work_basket":   rec.WorkBasket,
			"seq":           rec.Seq,
		},
	})
	return nil
}

func auditKey(sep, caseID string, seq int64, stepName string) string {
	return auditKeyPrefix + sep + caseID + sep + strconv.FormatInt(seq, 10) + sep + stepName
}
