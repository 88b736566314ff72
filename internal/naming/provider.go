// Package naming suggests human-friendly labels for clusters by showing a few
// representative face crops to a vision model. Suggestions are advisory; the
// rename flow applies them through the regular mutation surface.
package naming

import (
	_ "embed"
	"context"
	"fmt"
	"strings"
)

//go:embed prompts/label_suggestion.txt
var labelSuggestionPrompt string

// Provider is an AI backend that proposes a label for a cluster.
type Provider interface {
	Name() string
	SuggestLabel(ctx context.Context, samples [][]byte, existingLabels []string) (*LabelSuggestion, error)
}

// LabelSuggestion is one proposed cluster label.
type LabelSuggestion struct {
	// Label is the proposed name, e.g. a person description like
	// "Woman_With_Red_Hair". Never a real identification.
	Label string `json:"label"`
	// Confidence score 0-1 for the suggestion.
	Confidence float64 `json:"confidence"`
	// Reasoning behind the suggestion.
	Reasoning string `json:"reasoning,omitempty"`
}

// buildLabelPrompt renders the system prompt with the labels already in use
// so the model avoids proposing a duplicate.
func buildLabelPrompt(existingLabels []string) string {
	taken := "none"
	if len(existingLabels) > 0 {
		taken = strings.Join(existingLabels, ", ")
	}
	return fmt.Sprintf(labelSuggestionPrompt, taken)
}
