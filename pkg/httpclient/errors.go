package httpclient

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	apperrors "github.com/bouabca/hawiyat-site-sub000/pkg/errors"
)

// ParseResponseError consumes and closes a non-2xx response body and maps
// the status onto the application error taxonomy. upstream names the remote
// party in messages.
func ParseResponseError(resp *http.Response, upstream string) error {
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return apperrors.Internal("", fmt.Errorf("%s returned status %d (read body: %w)", upstream, resp.StatusCode, err))
	}
	cause := fmt.Errorf("%s returned status %d: %s", upstream, resp.StatusCode, strings.TrimSpace(string(body)))

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		e := apperrors.Authentication(fmt.Sprintf("%s rejected the credentials", upstream))
		e.Err = cause
		return e
	case resp.StatusCode == http.StatusNotFound:
		e := apperrors.NotFound(upstream + " resource")
		e.Err = cause
		return e
	case resp.StatusCode == http.StatusTooManyRequests:
		e := apperrors.RateLimited(fmt.Sprintf("%s is rate limiting requests", upstream))
		e.Err = cause
		return e
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		e := apperrors.InvalidInput(fmt.Sprintf("%s rejected the request", upstream))
		e.Err = cause
		return e
	default:
		return apperrors.Internal("", cause)
	}
}

// IsSuccess reports whether status is 2xx.
func IsSuccess(status int) bool {
	return status >= 200 && status < 300
}
