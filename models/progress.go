package models

import "time"

// ProgressErrorLimit is how many recent errors each snapshot carries.
const ProgressErrorLimit = 5

// ProgressSnapshot is published to observers after every notable step.
type ProgressSnapshot struct {
	Phase           Phase     `json:"phase"`
	Message         string    `json:"message,omitempty"`
	TotalDocuments  int       `json:"totalDocuments"`
	ProcessedCount  int       `json:"processedCount"`
	ErrorCount      int       `json:"errorCount"`
	ErrorMessages   []string  `json:"errorMessages"`
	CurrentDocument string    `json:"currentDocument,omitempty"`
	NewResourceID   string    `json:"newResourceId,omitempty"`
	Error           string    `json:"error,omitempty"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// SnapshotOf builds a snapshot from a state; nil states yield an empty one.
func SnapshotOf(s *SagaState, phase Phase) ProgressSnapshot {
	snap := ProgressSnapshot{Phase: phase}
	if s == nil {
		return snap
	}
	snap.TotalDocuments = s.TotalDocuments
	snap.ProcessedCount = s.ProcessedCount
	snap.ErrorCount = s.ErrorCount
	snap.ErrorMessages = s.RecentErrors(ProgressErrorLimit)
	snap.NewResourceID = s.NewResourceID
	return snap
}
