package engine

import (
	"context"
	"sort"
)

// ReplayCase reconstructs the sequence of exec-path states a case passed
// through by walking its durable audit log, for post-incident review.
//
// ReplayCase never re-invokes component code and never mutates any
// stored state; it is read-only, and safe to call against a live case.
func ReplayCase(ctx context.Context, store Store, keySeparator, caseID string) ([]AuditRecord, error) {
	prefix := auditKeyPrefix + keySeparator + caseID + keySeparator
	items, err := store.GetAll(ctx, prefix, func() any { return &AuditRecord{} })
	if err != nil {
		return nil, err
	}

	records := make([]AuditRecord, 0, len(items))
	for _, item := range items {
		rec, ok := item.(*AuditRecord)
		if !ok {
			continue
		}
		records = append(records, *rec)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Seq < records[j].Seq
	})
	return records, nil
}

// ReplaySnapshot is one reconstructed point-in-time view of a case's
// exec-path set, derived by folding the audit log forward.
type ReplaySnapshot struct {
	Seq       int64
	StepName  string
	ExecPaths map[string]ExecPath
}

// ReplayTimeline folds a case's audit log into a sequence of snapshots,
// one per record, each showing the cumulative exec-path state up to and
// including that record. Unlike ReplayCase's flat record list, this
// reconstructs the evolving shape of the case for a human reviewing an
// incident step by step.
func ReplayTimeline(ctx context.Context, store Store, keySeparator, caseID string) ([]ReplaySnapshot, error) {
	records, err := ReplayCase(ctx, store, keySeparator, caseID)
	if err != nil {
		return nil, err
	}

	paths := make(map[string]ExecPath)
	snapshots := make([]ReplaySnapshot, 0, len(records))
	for _, rec := range records {
		paths[rec.ExecPath] = ExecPath{
			Name:         rec.ExecPath,
			Status:       StatusCompleted,
			ResponseType: rec.ResponseType,
			PendWorkBasket: func() string {
				if rec.ResponseType == OKPend || rec.ResponseType == OKPendEOR || rec.ResponseType == ErrorPend {
					return rec.WorkBasket
				}
				return ""
			}(),
		}
		snapshot := make(map[string]ExecPath, len(paths))
		for k, v := range paths {
			snapshot[k] = v
		}
		snapshots = append(snapshots, ReplaySnapshot{Seq: rec.Seq, StepName: rec.StepName, ExecPaths: snapshot})
	}
	return snapshots, nil
}
