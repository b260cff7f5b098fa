// Package errors_test exercises the AppError type, factory functions, and
// error-chain helpers.
package errors_test

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clausehound/citex/pkg/errors"
)

func TestNew_FieldsAreSetCorrectly(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		code    errors.ErrorCode
		message string
	}{
		{"internal error", errors.CodeInternal, "unexpected failure"},
		{"external api", errors.CodeExternalAPI, "submission rejected"},
		{"job not found", errors.CodeJobNotFound, "citation job abc not found"},
		{"polling timeout", errors.CodePollingTimeout, "30 attempts exhausted"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ae := errors.New(tc.code, tc.message)

			require.NotNil(t, ae)
			assert.Equal(t, tc.code, ae.Code)
			assert.Equal(t, tc.message, ae.Message)
			assert.Empty(t, ae.Detail)
			assert.Nil(t, ae.Cause)
		})
	}
}

func TestErrorFormat(t *testing.T) {
	t.Parallel()

	ae := errors.New(errors.CodeExternalAPI, "submission rejected")
	assert.Equal(t, "[CIT_001] submission rejected", ae.Error())

	withDetail := ae.WithDetail("reference=US1234567B2")
	assert.Equal(t, "[CIT_001] submission rejected: reference=US1234567B2", withDetail.Error())
	// WithDetail clones; the original is untouched.
	assert.Empty(t, ae.Detail)
}

func TestWrap_NilErrReturnsNil(t *testing.T) {
	t.Parallel()

	assert.Nil(t, errors.Wrap(nil, errors.CodeInternal, "should not matter"))
}

func TestWrap_CauseChainIsPreserved(t *testing.T) {
	t.Parallel()

	root := stderrors.New("connection refused")
	mid := errors.Wrap(root, errors.CodeExternalAPI, "poll request failed")
	top := errors.Wrap(mid, errors.CodeAnalysisFailed, "deep analysis aborted")

	assert.True(t, stderrors.Is(top, root))

	var ae *errors.AppError
	require.True(t, stderrors.As(top, &ae))
	assert.Equal(t, errors.CodeAnalysisFailed, ae.Code)
}

func TestWrap_UnknownCodePreservesOriginal(t *testing.T) {
	t.Parallel()

	inner := errors.New(errors.CodeExternalJobNotFound, "gone")
	wrapped := errors.Wrap(inner, errors.CodeUnknown, "while polling")

	assert.Equal(t, errors.CodeExternalJobNotFound, wrapped.Code)
}

func TestIsCode_TraversesChain(t *testing.T) {
	t.Parallel()

	inner := errors.New(errors.CodePollingTimeout, "budget exhausted")
	outer := fmt.Errorf("extraction failed: %w", inner)

	assert.True(t, errors.IsCode(outer, errors.CodePollingTimeout))
	assert.False(t, errors.IsCode(outer, errors.CodeExternalAPI))
	assert.False(t, errors.IsCode(nil, errors.CodePollingTimeout))
}

func TestIsNotFound(t *testing.T) {
	t.Parallel()

	assert.True(t, errors.IsNotFound(errors.New(errors.CodeJobNotFound, "x")))
	assert.True(t, errors.IsNotFound(errors.New(errors.CodeExternalJobNotFound, "x")))
	assert.True(t, errors.IsNotFound(errors.NotFound("x")))
	assert.False(t, errors.IsNotFound(errors.New(errors.CodeExternalAPI, "x")))
	assert.False(t, errors.IsNotFound(stderrors.New("plain")))
	assert.False(t, errors.IsNotFound(nil))
}

func TestIsTimeout(t *testing.T) {
	t.Parallel()

	assert.True(t, errors.IsTimeout(errors.Timeout("deadline")))
	assert.True(t, errors.IsTimeout(errors.New(errors.CodePollingTimeout, "x")))
	assert.False(t, errors.IsTimeout(errors.New(errors.CodeExternalFailed, "x")))
}

func TestGetCode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, errors.CodeOK, errors.GetCode(nil))
	assert.Equal(t, errors.CodeUnknown, errors.GetCode(stderrors.New("plain")))
	assert.Equal(t, errors.CodeLLMTruncated,
		errors.GetCode(errors.New(errors.CodeLLMTruncated, "cut off")))

	wrapped := fmt.Errorf("outer: %w", errors.New(errors.CodeConfig, "missing key"))
	assert.Equal(t, errors.CodeConfig, errors.GetCode(wrapped))
}

func TestWithCause(t *testing.T) {
	t.Parallel()

	cause := stderrors.New("boom")
	ae := errors.Internal("analysis pass failed").WithCause(cause)

	assert.True(t, stderrors.Is(ae, cause))

	var nilErr *errors.AppError
	assert.Nil(t, nilErr.WithCause(cause))
	assert.Nil(t, nilErr.WithDetail("d"))
}
