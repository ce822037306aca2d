package analysis

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// --- Completer Mock ---

type mockCompleter struct {
	mock.Mock
}

func (m *mockCompleter) Complete(ctx context.Context, system, prompt string, maxTokens int) (string, error) {
	args := m.Called(ctx, system, prompt, maxTokens)
	return args.String(0), args.Error(1)
}

// answering returns a completer whose every call yields answer.
func answering(answer string) *mockCompleter {
	m := &mockCompleter{}
	m.On("Complete", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(answer, nil)
	return m
}

// failing returns a completer whose every call fails with err.
func failing(err error) *mockCompleter {
	m := &mockCompleter{}
	m.On("Complete", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("", err)
	return m
}
