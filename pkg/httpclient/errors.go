package httpclient

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	apperrors "github.com/vibecommerce/storefront/pkg/errors"
)

const maxErrorBody = 4 << 10

// StatusError describes a non-2xx upstream response.
type StatusError struct {
	Upstream   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s returned status %d", e.Upstream, e.StatusCode)
	}
	return fmt.Sprintf("%s returned status %d: %s", e.Upstream, e.StatusCode, e.Body)
}

// Unwrap maps the status onto the matching sentinel so callers can use
// errors.Is with pkg/errors.
func (e *StatusError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusNotFound:
		return apperrors.ErrNotFound
	case e.StatusCode == http.StatusBadRequest:
		return apperrors.ErrInvalidInput
	case e.StatusCode == http.StatusConflict:
		return apperrors.ErrConflict
	case e.StatusCode == http.StatusTooManyRequests:
		return apperrors.ErrTooManyRequest
	case e.StatusCode >= 500:
		return apperrors.ErrServiceUnavail
	default:
		return nil
	}
}

// ParseResponseError consumes and closes the body of a non-2xx response and
// returns a *StatusError carrying a trimmed prefix of the body.
func ParseResponseError(resp *http.Response, upstream string) error {
	defer drain(resp.Body)

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return fmt.Errorf("%s returned status %d (read body: %w)", upstream, resp.StatusCode, err)
	}
	return &StatusError{
		Upstream:   upstream,
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(b)),
	}
}

// IsSuccess reports whether status is 2xx.
func IsSuccess(status int) bool {
	return status >= 200 && status < 300
}
