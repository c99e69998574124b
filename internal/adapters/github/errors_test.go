package github

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	perr "ghsnapshot/internal/platform/errors"
)

func TestClassifyStatusMapping(t *testing.T) {
	reset := time.Now().Add(30 * time.Second)

	cases := []struct {
		name      string
		status    int
		remaining int
		wantCode  perr.ErrorCode
		wantReset bool
	}{
		{"bad request", http.StatusBadRequest, 1, perr.ErrorCodeBadRequest, false},
		{"unauthorized", http.StatusUnauthorized, 1, perr.ErrorCodeUnauthorized, false},
		{"forbidden exhausted", http.StatusForbidden, 0, perr.ErrorCodeTooManyRequests, true},
		{"forbidden not exhausted", http.StatusForbidden, 10, perr.ErrorCodeForbidden, false},
		{"not found", http.StatusNotFound, 1, perr.ErrorCodeNotFound, false},
		{"conflict", http.StatusConflict, 1, perr.ErrorCodeConflict, false},
		{"validation", http.StatusUnprocessableEntity, 1, perr.ErrorCodeValidation, false},
		{"server error", http.StatusInternalServerError, 1, perr.ErrorCodeServerError, false},
		{"generic api", http.StatusTeapot, 1, perr.ErrorCodeGenericAPI, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			se := classifyStatus(tc.status, tc.remaining, reset, []byte(`{"message":"nope"}`))
			require.Equal(t, tc.wantCode, se.Code())
			require.Equal(t, tc.wantReset, se.HasReset())
			require.Equal(t, tc.status, se.Status)
		})
	}
}

func TestParseErrorMessageFallsBackOnBadJSON(t *testing.T) {
	require.Equal(t, "Failed to parse error response", parseErrorMessage([]byte("not json")))
	require.Equal(t, "Failed to parse error response", parseErrorMessage([]byte(`{}`)))
	require.Equal(t, "nope", parseErrorMessage([]byte(`{"message":"nope"}`)))
}

func TestIsRateLimitedAndIsServerError(t *testing.T) {
	rl := classifyStatus(http.StatusForbidden, 0, time.Now(), nil)
	require.True(t, IsRateLimited(rl))
	require.False(t, IsServerError(rl))

	se := classifyStatus(http.StatusServiceUnavailable, 1, time.Time{}, nil)
	require.True(t, IsServerError(se))
	require.False(t, IsRateLimited(se))

	require.False(t, IsRateLimited(errors.New("plain")))
}
