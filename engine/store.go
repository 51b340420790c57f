package engine

import "github.com/caseflow/engine/persistence"

// Store is the persistence façade the engine core is built against.
// Aliased here so the rest of this package can refer to Store without
// importing the persistence package by name at every call site.
type Store = persistence.Store

// ErrStoreNotFound re-exports persistence.ErrNotFound for callers that
// only import engine.
var ErrStoreNotFound = persistence.ErrNotFound

// Prefixes used to build persistence keys. The configured key
// separator must not appear in a caseID.
const (
	definitionKeyPrefix  = "journey"
	infoKeyPrefix        = "workflow_info"
	slaKeyPrefix         = "journey_sla"
	auditKeyPrefix       = "audit_log"
)

func definitionKey(sep, caseID string) string {
	return definitionKeyPrefix + sep + caseID
}

func infoKey(sep, caseID string) string {
	return infoKeyPrefix + sep + caseID
}

func slaKey(sep, caseID string) string {
	return slaKeyPrefix + sep + caseID
}
