package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestError_Is(t *testing.T) {
	assert := require.New(t)

	err := NewKeyNotFoundError("abc")
	assert.ErrorIs(err, ErrKeyNotFound)
	assert.NotErrorIs(err, ErrSourceUnavailable)

	wrapped := fmt.Errorf("lookup failed: %w", err)
	assert.ErrorIs(wrapped, ErrKeyNotFound)
	assert.Equal(ErrorTypeKeyNotFound, TypeOf(wrapped))
}

func TestError_Message(t *testing.T) {
	assert := require.New(t)

	err := NewSourceUnavailableError("fetch failed", context.DeadlineExceeded)
	assert.Equal("SourceUnavailable: fetch failed: context deadline exceeded", err.Error())
	assert.ErrorIs(err, context.DeadlineExceeded)

	err = NewConfigurationError("url is required", nil)
	assert.Equal("ConfigurationError: url is required", err.Error())

	assert.Equal("MalformedDocument", ErrMalformedDocument.Error())
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "plain error", err: stderrors.New("boom"), want: false},
		{name: "source unavailable", err: NewSourceUnavailableError("down", nil), want: true},
		{name: "wrapped source unavailable", err: fmt.Errorf("x: %w", NewSourceUnavailableError("down", nil)), want: true},
		{name: "malformed document", err: NewMalformedDocumentError("bad", nil), want: false},
		{name: "key not found", err: NewKeyNotFoundError("abc"), want: false},
		{name: "configuration", err: NewConfigurationError("bad", nil), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}
