package tokenbudget

import (
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

const (
	DefaultCharsPerToken = 3
	DefaultEncoding      = "cl100k_base"
)

type Estimator interface {
	Estimate(text string) int
}

type EstimatorFunc func(text string) int

func (f EstimatorFunc) Estimate(text string) int {
	return f(text)
}

// CharEstimator approximates tokens as ceil(characters / CharsPerToken),
// counting characters as code points.
type CharEstimator struct {
	CharsPerToken int
}

func (e CharEstimator) Estimate(text string) int {
	perToken := e.CharsPerToken
	if perToken <= 0 {
		perToken = DefaultCharsPerToken
	}
	chars := utf8.RuneCountInString(text)
	return (chars + perToken - 1) / perToken
}

// TiktokenEstimator counts tokens with a BPE encoding.
type TiktokenEstimator struct {
	encoder *tiktoken.Tiktoken
	mu      sync.Mutex
}

func NewTiktokenEstimator(encoding string) (*TiktokenEstimator, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	encoder, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load tiktoken encoding %q: %w", encoding, err)
	}
	return &TiktokenEstimator{encoder: encoder}, nil
}

func (e *TiktokenEstimator) Estimate(text string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.encoder.Encode(text, nil, nil))
}
