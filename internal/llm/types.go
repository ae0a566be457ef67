package llm

import (
	"errors"
	"fmt"
	"net/http"

	"clinical-rag/internal/retry"
)

// Message represents a single message in a chat conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatParams holds parameters for chat completion requests.
type ChatParams struct {
	// Model specifies the model to use. If empty, the client's default model is used.
	Model string

	// MaxTokens specifies the maximum number of tokens to generate.
	// If 0, no limit is applied.
	MaxTokens int

	// Temperature controls the randomness of the output.
	Temperature float32
}

// AnswerParams are the fixed generation settings for grounded answers.
var AnswerParams = ChatParams{MaxTokens: 4096, Temperature: 0}

// StatusError is a non-200 response from an OpenAI-compatible endpoint.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("bad status %d: %s", e.Code, e.Body)
}

// classify marks client errors other than rate limiting as final.
func classify(err error) error {
	var se *StatusError
	if errors.As(err, &se) && se.Code >= 400 && se.Code < 500 && se.Code != http.StatusTooManyRequests {
		return retry.Permanent(err)
	}
	return err
}
