package chat

// Conversation roles stored in a session transcript.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a chat transcript.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// User builds a user turn.
func User(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// Assistant builds an assistant turn.
func Assistant(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}
