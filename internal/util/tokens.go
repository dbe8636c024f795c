package util

import (
	"fmt"
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

// TokenCounter counts prompt tokens. All providers are approximated with the
// GPT-4 encoding.
type TokenCounter struct {
	codec tokenizer.Codec
}

// NewTokenCounter creates a counter backed by the GPT-4 codec.
func NewTokenCounter() (*TokenCounter, error) {
	codec, err := tokenizer.ForModel(tokenizer.GPT4)
	if err != nil {
		return nil, fmt.Errorf("failed to create tokenizer codec: %w", err)
	}
	return &TokenCounter{codec: codec}, nil
}

var (
	defaultCounter     *TokenCounter
	defaultCounterOnce sync.Once
)

// DefaultTokenCounter returns a shared counter. If the codec cannot be loaded
// the counter falls back to a character based estimate.
func DefaultTokenCounter() *TokenCounter {
	defaultCounterOnce.Do(func() {
		tc, err := NewTokenCounter()
		if err != nil {
			tc = &TokenCounter{}
		}
		defaultCounter = tc
	})
	return defaultCounter
}

// Count returns the number of tokens in text (4 chars ≈ 1 token without a codec).
func (tc *TokenCounter) Count(text string) int {
	if tc == nil || tc.codec == nil {
		return len(text) / 4
	}
	n, err := tc.codec.Count(text)
	if err != nil {
		return len(text) / 4
	}
	return n
}
