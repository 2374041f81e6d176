// ABOUTME: Wire message and command types for the line-delimited JSON agent protocol.
// ABOUTME: Defines the closed sets of server→client and client→server kinds.

package protocol

// Server→client message kinds.
const (
	KindInit            = "init"
	KindConversation    = "conversation"
	KindStatus          = "status"
	KindInfo            = "info"
	KindError           = "error"
	KindCompletionStats = "completion_stats"
)

// Client→server command kinds.
const (
	KindUserInput = "user_input"
	KindInterrupt = "interrupt"
)

// Status states reported by the agent.
const (
	StateIdle                   = "idle"
	StateResponding             = "responding"
	StateWaitingForConfirmation = "waiting_for_confirmation"
)

// Message is one server→client protocol message. The closed set of kinds
// shares a single flat struct; unused fields are omitted on the wire.
type Message struct {
	Type string `json:"type"`

	// init
	Version       string `json:"version,omitempty"`
	WorkspaceRoot string `json:"workspaceRoot,omitempty"`
	Model         string `json:"model,omitempty"`

	// conversation
	Role        string `json:"role,omitempty"`
	Content     string `json:"content,omitempty"`
	ID          string `json:"id,omitempty"`
	Timestamp   string `json:"timestamp,omitempty"`
	IsStreaming bool   `json:"isStreaming,omitempty"`

	// status / info / error
	State   string `json:"state,omitempty"`
	Message string `json:"message,omitempty"`
	Thought string `json:"thought,omitempty"`

	// completion_stats
	Duration         float64 `json:"duration,omitempty"`
	PromptTokens     int     `json:"prompt_tokens,omitempty"`
	CompletionTokens int     `json:"completion_tokens,omitempty"`
}

// EventKind reports the message type for observability normalization.
func (m Message) EventKind() string {
	return m.Type
}

// Command is one client→server protocol command.
type Command struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
}

// UserInput builds a user_input command carrying the given content.
func UserInput(content string) Command {
	return Command{Type: KindUserInput, Content: content}
}

// Interrupt builds an interrupt command to stop agent-side work.
func Interrupt() Command {
	return Command{Type: KindInterrupt}
}
