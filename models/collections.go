package models

// Mongo collection names shared by the API server, the worker and the ops CLI.
const (
	CollectionDocuments      = "documents"
	CollectionOpsConfig      = "ops_config"
	CollectionIndexResources = "index_resources"
	CollectionReindexRuns    = "reindex_runs"
)
