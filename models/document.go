package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Document is the catalog row written by the ingestion pipeline when a file
// has been uploaded and its text extracted.
type Document struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Filename        string             `bson:"filename" json:"filename"`
	ContentType     string             `bson:"content_type" json:"content_type"`
	ContentLocation string             `bson:"content_location" json:"content_location"` // Storage path of the extracted text
	SidecarLocation string             `bson:"sidecar_location,omitempty" json:"sidecar_location,omitempty"`
	Status          string             `bson:"status" json:"status"` // pending, processing, completed, failed
	ErrorMessage    string             `bson:"error_message,omitempty" json:"error_message,omitempty"`
	UploadedAt      time.Time          `bson:"uploaded_at" json:"uploaded_at"`
	ProcessedAt     *time.Time         `bson:"processed_at,omitempty" json:"processed_at,omitempty"`

	// Outcome of the last single-document reprocess/reindex. Status is not
	// touched by those operations.
	LastOperation      string     `bson:"last_operation,omitempty" json:"last_operation,omitempty"`
	LastOperationError string     `bson:"last_operation_error,omitempty" json:"last_operation_error,omitempty"`
	LastOperationAt    *time.Time `bson:"last_operation_at,omitempty" json:"last_operation_at,omitempty"`
}

// Ref projects the catalog row onto the read-only view the reindex saga uses.
func (d Document) Ref() DocumentRef {
	return DocumentRef{
		DocumentID:      d.ID.Hex(),
		ContentLocation: d.ContentLocation,
		Filename:        d.Filename,
	}
}

// DocumentRef is immutable input for the reindex saga.
type DocumentRef struct {
	DocumentID      string `bson:"document_id" json:"document_id"`
	ContentLocation string `bson:"content_location" json:"content_location"`
	Filename        string `bson:"filename,omitempty" json:"filename,omitempty"`
}

// Label is what error messages use to name the document.
func (r DocumentRef) Label() string {
	if r.Filename != "" {
		return r.Filename
	}
	return r.DocumentID
}

// Document processing status constants
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)
