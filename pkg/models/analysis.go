// Package models contains shared data models used across the DocLens codebase.
package models

import "context"

// Provider is the interface every AI integration must implement.
// Never call a specific AI backend directly — always inject this interface.
type Provider interface {
	// Analyze produces a structured analysis for the given plain text.
	Analyze(ctx context.Context, text string) (DocumentAnalysis, error)
	// Name returns the provider identifier (e.g., "openai", "anthropic").
	Name() string
}

// DocumentAnalysis is the structured output of analyzing one document.
// It is persisted as the job's result column and returned verbatim to
// polling clients once the job completes.
type DocumentAnalysis struct {
	Summary     string   `json:"summary"`
	KeyPoints   []string `json:"key_points"`
	Keywords    []string `json:"keywords"`
	Category    string   `json:"category"`
	Sentiment   string   `json:"sentiment"`
	WordCount   int      `json:"word_count"`
	CharCount   int      `json:"char_count"`
	TextPreview string   `json:"text_preview,omitempty"`
	Provider    string   `json:"provider,omitempty"`
	Model       string   `json:"model,omitempty"`

	// Degraded marks a deterministic fallback result produced when every
	// configured provider was exhausted. The job still completes.
	Degraded bool `json:"degraded,omitempty"`
}
