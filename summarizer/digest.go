package summarizer

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"fluxrelay/models"
)

var (
	ErrMalformedDigest = errors.New("digest is not valid JSON")
	ErrMissingNews     = errors.New("digest has no news list")
	ErrEmptyDigest     = errors.New("digest news list is empty")
)

// ParseDigest decodes a model answer of the form {"news":[...]}. The answer
// may be wrapped in a Markdown code fence.
func ParseDigest(text string) ([]models.DigestItem, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(stripCodeFence(text)), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDigest, err)
	}

	news, ok := raw["news"]
	if !ok {
		return nil, ErrMissingNews
	}

	var items []models.DigestItem
	if err := json.Unmarshal(news, &items); err != nil || items == nil {
		return nil, ErrMissingNews
	}
	if len(items) == 0 {
		return []models.DigestItem{}, ErrEmptyDigest
	}
	return items, nil
}

func stripCodeFence(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// drop the language tag line
	if i := strings.Index(s, "\n"); i >= 0 {
		s = s[i+1:]
	} else {
		s = ""
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
