package saga

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

var (
	// ErrInvalidState marks a state payload the requested action cannot run on.
	ErrInvalidState = errors.New("invalid saga state")
	// ErrUnknownAction marks an action outside the state machine.
	ErrUnknownAction = errors.New("unknown saga action")
)

// maxErrorText bounds the error text stored per failed document.
const maxErrorText = 200

func invalidState(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidState, fmt.Sprintf(format, args...))
}

// DeletionResult reports a best-effort resource deletion. Callers log it and
// never turn it into a step failure.
type DeletionResult struct {
	ResourceID string
	Attempted  bool
	Reason     string
	Err        error
}

func (r DeletionResult) Failed() bool { return r.Attempted && r.Err != nil }

func (r DeletionResult) String() string {
	switch {
	case !r.Attempted:
		return fmt.Sprintf("skipped deletion of %q: %s", r.ResourceID, r.Reason)
	case r.Err != nil:
		return fmt.Sprintf("failed to delete %s resource %s: %s", r.Reason, r.ResourceID, truncate(r.Err.Error(), maxErrorText))
	default:
		return fmt.Sprintf("deleted %s resource %s", r.Reason, r.ResourceID)
	}
}

// appendBounded appends msg and keeps only the last limit entries.
func appendBounded(list []string, msg string, limit int) []string {
	out := append(append([]string(nil), list...), msg)
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
