package models

import "time"

// ActiveResourceKey is the ops_config key holding the resource queries hit.
const ActiveResourceKey = "__active_search_resource__"

// IndexResource is one searchable store: a chunk collection plus its search
// indexes.
type IndexResource struct {
	ID               string    `bson:"_id" json:"id"`
	DataSourceID     string    `bson:"data_source_id" json:"data_source_id"`
	Collection       string    `bson:"collection" json:"collection"`
	VectorIndexName  string    `bson:"vector_index_name" json:"vector_index_name"`
	VectorIndexBuilt bool      `bson:"vector_index_built" json:"vector_index_built"`
	CreatedAt        time.Time `bson:"created_at" json:"created_at"`
}

// CreatedResource is what the index resource manager hands back to the saga.
type CreatedResource struct {
	ResourceID        string `json:"resourceId"`
	DataSourceID      string `json:"dataSourceId"`
	VectorIndexHandle string `json:"vectorIndexHandle"`
}

// Chunk is one ingested piece of a document inside a resource collection.
type Chunk struct {
	ContentLocation string         `bson:"content_location" json:"content_location"`
	DataSourceID    string         `bson:"data_source_id" json:"data_source_id"`
	Order           int            `bson:"order" json:"order"`
	Text            string         `bson:"text" json:"text"`
	Metadata        map[string]any `bson:"metadata,omitempty" json:"metadata,omitempty"`
	Vector          []float32      `bson:"vector,omitempty" json:"-"`
	IngestedAt      time.Time      `bson:"ingested_at" json:"ingested_at"`
}
