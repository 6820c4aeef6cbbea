package models

import "time"

// Phase is the position of a reindex run in its state machine.
type Phase string

const (
	PhaseInit            Phase = "INIT"
	PhaseProcessingBatch Phase = "PROCESSING_BATCH"
	PhaseFinalizing      Phase = "FINALIZING"
	PhaseCompleted       Phase = "COMPLETED"
	PhaseCleaningUp      Phase = "CLEANING_UP"
	PhaseFailed          Phase = "FAILED"
)

// Terminal reports whether no further step follows this phase.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseFailed
}

// SagaState is threaded between scheduler invocations. Nothing else mutates it
// while a run is in flight.
type SagaState struct {
	Phase             Phase     `bson:"phase" json:"phase"`
	OldResourceID     string    `bson:"old_resource_id,omitempty" json:"oldResourceId,omitempty"`
	NewResourceID     string    `bson:"new_resource_id" json:"newResourceId"`
	NewDataSourceID   string    `bson:"new_data_source_id" json:"newDataSourceId"`
	VectorIndexHandle string    `bson:"vector_index_handle" json:"vectorIndexHandle"`
	TotalDocuments    int       `bson:"total_documents" json:"totalDocuments"`
	ProcessedCount    int       `bson:"processed_count" json:"processedCount"`
	ErrorCount        int       `bson:"error_count" json:"errorCount"`
	ErrorMessages     []string  `bson:"error_messages" json:"errorMessages"`
	BatchSize         int       `bson:"batch_size" json:"batchSize"`
	CurrentBatchIndex int       `bson:"current_batch_index" json:"currentBatchIndex"`
	StartedAt         time.Time `bson:"started_at" json:"startedAt"`
}

// Clone returns a copy that shares no slices with s.
func (s *SagaState) Clone() *SagaState {
	if s == nil {
		return nil
	}
	out := *s
	if s.ErrorMessages != nil {
		out.ErrorMessages = make([]string, len(s.ErrorMessages))
		copy(out.ErrorMessages, s.ErrorMessages)
	}
	return &out
}

// RecentErrors returns up to n of the most recent error messages, oldest first.
func (s *SagaState) RecentErrors(n int) []string {
	if s == nil || len(s.ErrorMessages) == 0 {
		return nil
	}
	start := len(s.ErrorMessages) - n
	if start < 0 {
		start = 0
	}
	return append([]string(nil), s.ErrorMessages[start:]...)
}

// ReindexRun is the durable checkpoint the scheduler keeps per run.
type ReindexRun struct {
	ID         string     `bson:"_id" json:"id"`
	State      SagaState  `bson:"state" json:"state"`
	LastAction string     `bson:"last_action" json:"last_action"`
	Cause      string     `bson:"cause,omitempty" json:"cause,omitempty"`
	CreatedAt  time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `bson:"updated_at" json:"updated_at"`
	FinishedAt *time.Time `bson:"finished_at,omitempty" json:"finished_at,omitempty"`
}
