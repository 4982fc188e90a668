package mock

import (
	"context"

	"github.com/doclens/doclens/pkg/models"
)

// MockProvider satisfies models.Provider for testing.
type MockProvider struct {
	Name_       string
	AnalyzeFunc func(ctx context.Context, text string) (models.DocumentAnalysis, error)
	Calls       int
}

func (m *MockProvider) Name() string { return m.Name_ }

func (m *MockProvider) Analyze(ctx context.Context, text string) (models.DocumentAnalysis, error) {
	m.Calls++
	if m.AnalyzeFunc != nil {
		return m.AnalyzeFunc(ctx, text)
	}
	return models.DocumentAnalysis{}, nil
}

// NewMockProvider returns a MockProvider with a sensible default response.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		Name_: "mock",
		AnalyzeFunc: func(_ context.Context, text string) (models.DocumentAnalysis, error) {
			return models.DocumentAnalysis{
				Summary:   "Mock analysis summary for testing",
				KeyPoints: []string{"mock key point"},
				Keywords:  []string{"mock"},
				Category:  "testing",
				Sentiment: "neutral",
				Model:     "mock-v1",
			}, nil
		},
	}
}

// NewFailingProvider returns a MockProvider that always returns the given error.
func NewFailingProvider(err error) *MockProvider {
	return &MockProvider{
		Name_: "mock-failing",
		AnalyzeFunc: func(_ context.Context, _ string) (models.DocumentAnalysis, error) {
			return models.DocumentAnalysis{}, err
		},
	}
}

// Compile-time check that MockProvider implements Provider.
var _ models.Provider = (*MockProvider)(nil)
