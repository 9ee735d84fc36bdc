package chat

import "time"

// Session groups an exchange of messages.
type Session struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Message is one turn in a session.
type Message struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"sessionId"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	ImagePath string    `json:"imagePath,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// SendRequest is the payload for posting a message.
type SendRequest struct {
	SessionID string `json:"sessionId"`
	Text      string `json:"text"`
	ImagePath string `json:"imagePath"`
}

// SendResponse carries the assistant's reply.
type SendResponse struct {
	Session Session `json:"session"`
	Reply   Message `json:"reply"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)
