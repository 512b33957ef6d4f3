package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DerivesClassification(t *testing.T) {
	tests := []struct {
		name      string
		code      string
		category  Category
		severity  Severity
		retryable bool
	}{
		{"invalid input", ErrCodeInvalidInput, CategoryValidation, SeverityError, false},
		{"unsupported strategy", ErrCodeUnsupportedStrategy, CategoryValidation, SeverityError, false},
		{"unsupported mode", ErrCodeUnsupportedMode, CategoryValidation, SeverityError, false},
		{"loop guard", ErrCodeLoopGuard, CategoryInternal, SeverityFatal, false},
		{"network timeout", ErrCodeNetworkTimeout, CategoryNetwork, SeverityWarning, true},
		{"storage failed", ErrCodeStorageFailed, CategoryInternal, SeverityWarning, false},
		{"config invalid", ErrCodeConfigInvalid, CategoryConfig, SeverityError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, "message", nil)
			assert.Equal(t, tt.category, err.Category)
			assert.Equal(t, tt.severity, err.Severity)
			assert.Equal(t, tt.retryable, err.Retryable)
		})
	}
}

func TestError_Format(t *testing.T) {
	err := InvalidInput("query text is empty")
	assert.Equal(t, "[ERR_401_INVALID_INPUT] query text is empty", err.Error())
}

func TestWrap_PreservesCause(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := Wrap(ErrCodeNetworkUnavailable, cause)

	require.NotNil(t, err)
	assert.Equal(t, cause, errors.Unwrap(err))
	assert.True(t, errors.Is(err, cause))
}

func TestWrap_NilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}

func TestIs_MatchesByCode(t *testing.T) {
	a := New(ErrCodeInvalidInput, "one", nil)
	b := New(ErrCodeInvalidInput, "two", nil)
	c := New(ErrCodeInternal, "three", nil)

	assert.True(t, errors.Is(a, b))
	assert.False(t, errors.Is(a, c))
}

func TestIsInvalidInput(t *testing.T) {
	assert.True(t, IsInvalidInput(InvalidInput("empty text")))
	assert.True(t, IsInvalidInput(UnsupportedStrategy("bogus")))
	assert.False(t, IsInvalidInput(InternalError("boom", nil)))
	assert.False(t, IsInvalidInput(fmt.Errorf("plain error")))
	assert.False(t, IsInvalidInput(nil))
}

func TestIsCollaborator(t *testing.T) {
	assert.True(t, IsCollaborator(Collaborator(ErrCodeEmbeddingFailed, "embed down", nil)))
	assert.True(t, IsCollaborator(Collaborator(ErrCodeSearchFailed, "search down", nil)))
	assert.False(t, IsCollaborator(InvalidInput("bad")))
	assert.False(t, IsCollaborator(LoopGuard("stuck")))
}

func TestCollaborator_UnknownCodeFallsBack(t *testing.T) {
	err := Collaborator(ErrCodeInvalidInput, "not a collaborator code", nil)
	assert.Equal(t, ErrCodeCollaborator, err.Code)
}

func TestLoopGuard_IsFatal(t *testing.T) {
	err := LoopGuard("no forward progress at offset 42")
	assert.True(t, IsLoopGuard(err))
	assert.True(t, IsFatal(err))
	assert.False(t, IsCollaborator(err))
}

func TestWithDetail(t *testing.T) {
	err := InvalidInput("bad").WithDetail("field", "query").WithDetail("length", "0")
	assert.Equal(t, "query", err.Details["field"])
	assert.Equal(t, "0", err.Details["length"])
}

func TestGetCode_WrappedChain(t *testing.T) {
	inner := New(ErrCodeRerankFailed, "model unavailable", nil)
	outer := fmt.Errorf("rerank stage: %w", inner)

	assert.Equal(t, ErrCodeRerankFailed, GetCode(outer))
	assert.True(t, IsCollaborator(outer))
	assert.Equal(t, "", GetCode(errors.New("plain")))
}
