package models

import "time"

// ReindexLockKey is the reserved ops_config key of the reindex lock. It cannot
// collide with a document id (ObjectID hex).
const ReindexLockKey = "__reindex_lock__"

// LockRecord is the single shared row telling document-level operations that a
// full reindex is in flight.
type LockRecord struct {
	Key       string    `bson:"_id" json:"-"`
	IsLocked  bool      `bson:"is_locked" json:"is_locked"`
	StartedAt time.Time `bson:"started_at" json:"started_at"`
}

// LockState is what readers see. Degraded is set when the record could not be
// read and the state was assumed unlocked.
type LockState struct {
	Locked    bool      `json:"locked"`
	StartedAt time.Time `json:"started_at,omitempty"`
	Degraded  bool      `json:"degraded,omitempty"`
}
