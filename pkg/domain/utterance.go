package domain

// Source tells where an utterance came from.
type Source string

const (
	SourceVoice Source = "voice"
	SourceTyped Source = "typed"
)

// Utterance is one unit of user input. Sequence is assigned when the
// orchestrator accepts it and is the basis for discarding stale responses.
type Utterance struct {
	Text     string `json:"text"`
	Source   Source `json:"source"`
	Sequence uint64 `json:"sequence"`
}

// Role attributes a turn to a speaker.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one entry of the conversation log. Turns are appended, never edited.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
