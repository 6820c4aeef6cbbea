package saga

import (
	"fmt"

	"docindex-platform/models"
)

// Action selects which phase function a step runs.
type Action string

const (
	ActionInit          Action = "init"
	ActionProcessBatch  Action = "process_batch"
	ActionFinalize      Action = "finalize"
	ActionCleanupFailed Action = "cleanup_failed"
)

// Actions lists every action in state-machine order.
var Actions = []Action{ActionInit, ActionProcessBatch, ActionFinalize, ActionCleanupFailed}

func ParseAction(s string) (Action, error) {
	for _, a := range Actions {
		if string(a) == s {
			return a, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAction, s)
}

// Request is one scheduler invocation. State is nil for init and may be nil
// for cleanup_failed when init itself failed.
type Request struct {
	Action Action            `json:"action"`
	State  *models.SagaState `json:"state,omitempty"`
	Cause  string            `json:"cause,omitempty"`
}

// NextAction maps a returned phase to the action the scheduler runs next.
// ok is false for terminal phases.
func NextAction(phase models.Phase) (action Action, ok bool) {
	switch phase {
	case models.PhaseInit:
		return ActionInit, true
	case models.PhaseProcessingBatch:
		return ActionProcessBatch, true
	case models.PhaseFinalizing:
		return ActionFinalize, true
	case models.PhaseCleaningUp:
		return ActionCleanupFailed, true
	case models.PhaseCompleted, models.PhaseFailed:
		return "", false
	}
	return "", false
}
