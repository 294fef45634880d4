package httpclient

import (
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/vibecommerce/storefront/pkg/errors"
)

func response(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestParseResponseError(t *testing.T) {
	err := ParseResponseError(response(http.StatusNotFound, "  not here\n"), "catalog")

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, "catalog", statusErr.Upstream)
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	assert.Equal(t, "not here", statusErr.Body)
	assert.EqualError(t, err, "catalog returned status 404: not here")
}

func TestParseResponseError_TruncatesBody(t *testing.T) {
	big := strings.Repeat("x", maxErrorBody*2)
	err := ParseResponseError(response(http.StatusBadGateway, big), "catalog")

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Len(t, statusErr.Body, maxErrorBody)
}

func TestStatusError_EmptyBody(t *testing.T) {
	err := &StatusError{Upstream: "catalog", StatusCode: http.StatusServiceUnavailable}
	assert.EqualError(t, err, "catalog returned status 503")
}

func TestStatusError_Unwrap(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusNotFound, apperrors.ErrNotFound},
		{http.StatusBadRequest, apperrors.ErrInvalidInput},
		{http.StatusConflict, apperrors.ErrConflict},
		{http.StatusTooManyRequests, apperrors.ErrTooManyRequest},
		{http.StatusInternalServerError, apperrors.ErrServiceUnavail},
		{http.StatusGatewayTimeout, apperrors.ErrServiceUnavail},
	}
	for _, tt := range tests {
		err := &StatusError{Upstream: "catalog", StatusCode: tt.status}
		assert.ErrorIs(t, err, tt.want, "status %d", tt.status)
	}

	assert.Nil(t, (&StatusError{StatusCode: http.StatusTeapot}).Unwrap())
}

func TestIsSuccess(t *testing.T) {
	assert.True(t, IsSuccess(http.StatusOK))
	assert.True(t, IsSuccess(http.StatusNoContent))
	assert.False(t, IsSuccess(http.StatusMovedPermanently))
	assert.False(t, IsSuccess(http.StatusInternalServerError))
}
