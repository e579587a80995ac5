package store

import "fairq/queue-service/internal/models"

// allowedTargets is the full set a status update may name. Cancelled is
// reserved and deliberately absent.
var allowedTargets = map[string]bool{
	models.StatusPending:    true,
	models.StatusProcessing: true,
	models.StatusCompleted:  true,
}

var transitions = map[string]string{
	models.StatusPending:    models.StatusProcessing,
	models.StatusProcessing: models.StatusCompleted,
}

// ValidTarget reports whether a status update may name target at all,
// regardless of the ticket's current state.
func ValidTarget(target string) bool {
	return allowedTargets[target]
}

// CanTransition reports whether a ticket may move from one status to
// another. Re-issuing the current status is allowed (idempotent no-op);
// skipping Processing or moving backward is not.
func CanTransition(from, to string) bool {
	if !allowedTargets[to] {
		return false
	}
	if from == to {
		return true
	}
	return transitions[from] == to
}
