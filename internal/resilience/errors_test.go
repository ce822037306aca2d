package resilience

import (
	"errors"
	"fmt"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"explicit", NewTransientError(errors.New("x"), 503), true},
		{"wrapped", fmt.Errorf("call: %w", NewTransientError(errors.New("x"), 429)), true},
		{"plain", errors.New("bad request"), false},
		{"conn reset", fmt.Errorf("dial: %w", syscall.ECONNRESET), true},
		{"conn refused", syscall.ECONNREFUSED, true},
		{"net timeout", timeoutErr{}, true},
		{"message pattern", errors.New("read tcp: i/o timeout"), true},
		{"unexpected eof", errors.New("unexpected EOF"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504, 529} {
		assert.True(t, IsTransientHTTPStatus(code), "status %d", code)
	}
	for _, code := range []int{200, 400, 401, 403, 404, 422} {
		assert.False(t, IsTransientHTTPStatus(code), "status %d", code)
	}
}

func TestFromStatus(t *testing.T) {
	base := errors.New("upstream")
	assert.Nil(t, FromStatus(nil, 503))
	assert.True(t, IsTransient(FromStatus(base, 503)))
	assert.Equal(t, base, FromStatus(base, 401))

	var te *TransientError
	if assert.True(t, errors.As(FromStatus(base, 429), &te)) {
		assert.Equal(t, 429, te.StatusCode)
		assert.ErrorIs(t, te, base)
	}
}

func TestClassify(t *testing.T) {
	assert.Equal(t, "transient", Classify(NewTransientError(errors.New("x"), 500)))
	assert.Equal(t, "permanent", Classify(errors.New("no pages")))
}
