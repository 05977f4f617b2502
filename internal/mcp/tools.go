package mcp

// ContextInput is the input of get_context and search_context.
type ContextInput struct {
	Query          string `json:"query" jsonschema:"the question to find context for"`
	UserID         string `json:"user_id" jsonschema:"owner of the conversation"`
	ConversationID string `json:"conversation_id" jsonschema:"conversation whose documents are searched"`
	TopK           int    `json:"top_k,omitempty" jsonschema:"maximum number of chunks, default 5"`
}

// ContextOutput is the output of get_context.
type ContextOutput struct {
	Context string `json:"context" jsonschema:"relevant chunks joined by a separator, empty when nothing matched"`
}

// SearchOutput is the output of search_context.
type SearchOutput struct {
	Results []ResultOutput `json:"results"`
}

// ResultOutput is one ranked chunk with its score breakdown.
type ResultOutput struct {
	Text    string  `json:"text"`
	Score   float64 `json:"score" jsonschema:"fused relevance score"`
	Vector  float64 `json:"vector" jsonschema:"normalized vector similarity"`
	Keyword float64 `json:"keyword" jsonschema:"normalized keyword relevance"`
}

// MemoryInput is the input of get_memory.
type MemoryInput struct {
	Query          string `json:"query" jsonschema:"the latest user message"`
	UserID         string `json:"user_id"`
	ConversationID string `json:"conversation_id"`
}

// MemoryOutput is the output of get_memory.
type MemoryOutput struct {
	Rendered      string   `json:"rendered" jsonschema:"memory formatted for a prompt"`
	Summary       string   `json:"summary,omitempty"`
	Closure       bool     `json:"closure" jsonschema:"true when the query closes the conversation"`
	SemanticHits  []string `json:"semantic_hits,omitempty"`
	WorkingWindow []string `json:"working_window,omitempty"`
}

// IngestFileInput is the input of ingest_file.
type IngestFileInput struct {
	Path           string `json:"path" jsonschema:"absolute path of the document"`
	UserID         string `json:"user_id"`
	ConversationID string `json:"conversation_id"`
}

// IngestTextInput is the input of ingest_text.
type IngestTextInput struct {
	Text           string `json:"text"`
	Source         string `json:"source" jsonschema:"label recorded as the chunk source"`
	UserID         string `json:"user_id"`
	ConversationID string `json:"conversation_id"`
}

// IngestOutput is the output of the ingest tools.
type IngestOutput struct {
	Stored int `json:"stored" jsonschema:"number of chunks stored"`
}

// RecordMessageInput is the input of record_message.
type RecordMessageInput struct {
	UserID         string `json:"user_id"`
	ConversationID string `json:"conversation_id"`
	Role           string `json:"role" jsonschema:"user or assistant"`
	Content        string `json:"content"`
}

// RecordMessageOutput is the output of record_message.
type RecordMessageOutput struct {
	ID       string `json:"id"`
	Embedded bool   `json:"embedded" jsonschema:"false when the embedding failed; the message is still stored"`
}

// DiscoverInput is the input of discover_files.
type DiscoverInput struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k,omitempty" jsonschema:"maximum number of files, default 3"`
}

// DiscoverOutput is the output of discover_files.
type DiscoverOutput struct {
	Files []FileMatch `json:"files"`
}

// FileMatch is a pool file relevant to a query.
type FileMatch struct {
	Path  string  `json:"path"`
	Score float64 `json:"score"`
}

// CleanupInput is the input of cleanup_conversation. An empty
// conversation id removes every conversation of the user.
type CleanupInput struct {
	UserID         string `json:"user_id"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// CleanupOutput is the output of cleanup_conversation.
type CleanupOutput struct {
	Removed string `json:"removed"`
}
