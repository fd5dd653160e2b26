package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"unicode/utf8"

	"liverelay/internal/core/domain"
)

// ReadBody reads the request body as UTF-8 text, failing with
// domain.ErrBodyTooLarge once more than maxBytes arrive. On overflow the
// server closes the connection after the response instead of draining it.
func ReadBody(w http.ResponseWriter, r *http.Request, maxBytes int64) (string, error) {
	if r.ContentLength > maxBytes {
		return "", domain.ErrBodyTooLarge
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return "", domain.ErrBodyTooLarge
		}
		return "", fmt.Errorf("failed to read body: %w", err)
	}

	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: body is not valid UTF-8", domain.ErrInvalidPayload)
	}
	return string(data), nil
}

// compactJSON validates body and strips insignificant whitespace so the
// payload fits on a single event-stream data line.
func compactJSON(body string) ([]byte, error) {
	trimmed := bytes.TrimSpace([]byte(body))
	if len(trimmed) == 0 {
		return nil, domain.ErrEmptyBody
	}

	var buf bytes.Buffer
	buf.Grow(len(trimmed))
	if err := json.Compact(&buf, trimmed); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}
	return buf.Bytes(), nil
}
