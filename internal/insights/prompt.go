// Package insights asks a language model for a narrative analysis of an
// augmented dataset. The reply is an opaque string shown to the user as-is.
package insights

import (
	"fmt"

	"github.com/cleared-dev/fpa/internal/export"
	"github.com/cleared-dev/fpa/internal/model"
)

// Roles used in chat messages.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// SystemPrompt sets the model's persona.
const SystemPrompt = "You are an FP&A analyst."

// Instruction precedes the dataset in the user message.
const Instruction = "Analyze this financial data. Highlight key variances, " +
	"explain possible reasons, and suggest one action for next quarter."

// Message is one chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// BuildPrompt renders the full augmented dataset as CSV and wraps it in the
// fixed instruction.
func BuildPrompt(a *model.Analysis) ([]Message, error) {
	data, err := export.CSVString(a)
	if err != nil {
		return nil, fmt.Errorf("insights: rendering dataset: %w", err)
	}
	return []Message{
		{Role: RoleSystem, Content: SystemPrompt},
		{Role: RoleUser, Content: Instruction + "\n\nData:\n" + data},
	}, nil
}
