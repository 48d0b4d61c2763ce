// Package tokens bounds text by token count for prompts sent to the service.
package tokens

import (
	"github.com/pkoukk/tiktoken-go"
	"github.com/rs/zerolog"
)

// runesPerToken approximates English text when no encoding is available.
const runesPerToken = 4

// Truncator cuts text to a token budget. Without an encoding it falls back
// to a rune budget of runesPerToken per token.
type Truncator struct {
	enc    *tiktoken.Tiktoken
	budget int
}

// NewTruncator loads encoding (e.g. cl100k_base). Loading may need network
// access for the BPE ranks; on failure the rune fallback is used.
func NewTruncator(encoding string, budget int, log *zerolog.Logger) *Truncator {
	t := &Truncator{budget: budget}
	if encoding == "" {
		return t
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		if log != nil {
			log.Warn().Err(err).Str("encoding", encoding).Msg("token encoding unavailable, truncating by characters")
		}
		return t
	}
	t.enc = enc
	return t
}

// Truncate returns text cut to the budget and whether anything was removed.
// A non-positive budget disables truncation.
func (t *Truncator) Truncate(text string) (string, bool) {
	if t.budget <= 0 {
		return text, false
	}
	if t.enc == nil {
		return truncateRunes(text, t.budget*runesPerToken)
	}
	ids := t.enc.Encode(text, nil, nil)
	if len(ids) <= t.budget {
		return text, false
	}
	return t.enc.Decode(ids[:t.budget]), true
}

// Count reports the number of tokens in text, or an estimate without an encoding.
func (t *Truncator) Count(text string) int {
	if t.enc == nil {
		return (len([]rune(text)) + runesPerToken - 1) / runesPerToken
	}
	return len(t.enc.Encode(text, nil, nil))
}

func truncateRunes(text string, n int) (string, bool) {
	r := []rune(text)
	if len(r) <= n {
		return text, false
	}
	return string(r[:n]), true
}
