package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsErrorType_Wrapped(t *testing.T) {
	err := fmt.Errorf("load neighborhood: %w", NewStorage("relationships", stderrors.New("connection refused")))

	assert.True(t, IsStorage(err))
	assert.False(t, IsValidation(err))
	assert.True(t, IsRetryable(err))
	assert.Contains(t, err.Error(), "connection refused")
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"validation", NewValidation("depth", "Must be between 1 and 3"), false},
		{"storage", NewStorage("accounts", stderrors.New("down")), true},
		{"timeout", NewContextTimeout("pagerank", time.Second), false},
		{"cancelled", NewContextCancelled("pagerank", context.Canceled), false},
		{"cache", NewCache("memory", "graph:A", stderrors.New("full")), false},
		{"plain", stderrors.New("boom"), false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestFromContext(t *testing.T) {
	assert.Nil(t, FromContext("op", time.Second, nil))

	err := FromContext("op", 2*time.Second, context.DeadlineExceeded)
	var timeout *ErrContextTimeout
	assert.True(t, stderrors.As(err, &timeout))
	assert.Equal(t, 2*time.Second, timeout.Timeout)

	err = FromContext("op", time.Second, context.Canceled)
	var cancelled *ErrContextCancelled
	assert.True(t, stderrors.As(err, &cancelled))
	assert.True(t, stderrors.Is(err, context.Canceled))
}

func TestValidationFields(t *testing.T) {
	err := NewValidation("min_volume", "Must be non-negative")
	assert.Equal(t, "min_volume", err.Field)
	assert.Equal(t, "[validation] Must be non-negative", err.Error())
	assert.Nil(t, err.Unwrap())
}
