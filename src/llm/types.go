package llm

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Message is one chat message. Content is sent as a plain string, or as a
// text part followed by an image_url part when ImageURL is set.
type Message struct {
	Role     string
	Text     string
	ImageURL string
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

func (m Message) MarshalJSON() ([]byte, error) {
	role := m.Role
	if role == "" {
		role = "user"
	}
	if m.ImageURL == "" {
		return json.Marshal(struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		}{role, m.Text})
	}
	return json.Marshal(struct {
		Role    string        `json:"role"`
		Content []contentPart `json:"content"`
	}{role, []contentPart{
		{Type: "text", Text: m.Text},
		{Type: "image_url", ImageURL: &imageURL{URL: m.ImageURL}},
	}})
}

type chatRequest struct {
	Model    string    `json:"model"`
	Stream   bool      `json:"stream"`
	Messages []Message `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *APIError `json:"error,omitempty"`
}

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Error *APIError `json:"error,omitempty"`
}

// APIError is an error object returned inside a response body. It matches ErrTransport.
type APIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    any    `json:"code"` // string or number depending on the provider
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error: %s (type: %s, code: %v)", e.Message, e.Type, e.Code)
}

func (e *APIError) Is(target error) bool { return target == ErrTransport }

// EncodePNG returns a data URL for PNG bytes, ready for an image_url part.
func EncodePNG(data []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(data)
}
