package mcpserver

// AskInput defines inputs for the drdoc_ask MCP tool.
type AskInput struct {
	Question string `json:"question" jsonschema:"natural-language question about the ingested documentation"`
	Mode     string `json:"mode,omitempty" jsonschema:"retrieval mode override: vector, symbolic or hybrid (default: automatic)"`
}

// AskOutput is the output for drdoc_ask.
type AskOutput struct {
	Answer     string   `json:"answer"`
	Citations  []string `json:"citations,omitempty"`
	Confidence float32  `json:"confidence"`
	Mode       string   `json:"mode"`
	Reasoning  string   `json:"reasoning,omitempty"`
}

// IngestInput defines inputs for the drdoc_ingest MCP tool.
type IngestInput struct {
	Path     string `json:"path" jsonschema:"directory or file of documentation to ingest"`
	SourceID string `json:"source_id,omitempty" jsonschema:"logical source identifier (default: path)"`
}

// IngestOutput is the output for drdoc_ingest.
type IngestOutput struct {
	SourceID      string `json:"source_id"`
	FilesSeen     int    `json:"files_seen"`
	FilesSkipped  int    `json:"files_skipped"`
	FilesFailed   int    `json:"files_failed"`
	ChunksWritten int    `json:"chunks_written"`
	FactsWritten  int    `json:"facts_written"`
	Duration      string `json:"duration"`
}

// StatusInput defines inputs for the drdoc_status MCP tool.
type StatusInput struct{}

// StatusOutput reports store contents.
type StatusOutput struct {
	Chunks  int64 `json:"chunks"`
	Vectors int64 `json:"vectors"`
	Facts   int64 `json:"facts"`
	Files   int64 `json:"files"`
	Bytes   int64 `json:"bytes"`
}
