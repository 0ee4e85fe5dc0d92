package models

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Chunk is one bounded, overlapping slice of a transcript.
type Chunk struct {
	ID      string
	Index   int
	Content string
}

type ScoredChunk struct {
	Chunk
	Score float32
}

// ConversationEntry is a single turn in a session's conversation log.
type ConversationEntry struct {
	Role string `json:"role"`
	Text string `json:"text"`
}
