package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapErrorCodeToHTTPStatus(t *testing.T) {
	cases := map[ErrorCode]int{
		ErrCodeInvalidTarget:       http.StatusBadRequest,
		ErrCodeUnauthorized:        http.StatusUnauthorized,
		ErrCodeForbidden:           http.StatusForbidden,
		ErrCodeTokenInvalid:        http.StatusForbidden,
		ErrCodePrincipalNotFound:   http.StatusNotFound,
		ErrCodeAlreadyImpersonated: http.StatusConflict,
		ErrCodeRateLimitExceeded:   http.StatusTooManyRequests,
		ErrorCode("SOMETHING_ELSE"): http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, MapErrorCodeToHTTPStatus(code), code)
	}
}

func TestWrapKeepsCodeThroughFmtWrapping(t *testing.T) {
	base := fmt.Errorf("boom")
	err := fmt.Errorf("outer: %w", Wrap(base, ErrCodeConflict, "conflict"))

	assert.True(t, IsCode(err, ErrCodeConflict))
	assert.Equal(t, ErrCodeConflict, GetCode(err))
	assert.True(t, stderrors.Is(err, base))
	assert.Nil(t, Wrap(nil, ErrCodeInternal, "nothing"))
}

func TestGetCodeDefaultsToInternal(t *testing.T) {
	assert.Equal(t, ErrCodeInternal, GetCode(fmt.Errorf("plain")))
}
