package controller

import (
	"errors"
	"net/http"
	"strconv"
)

const maxChunkSize = 100000

// parseChunkSize returns the chunk_size query parameter, or 0 meaning "use
// the configured default".
func parseChunkSize(r *http.Request) (int, error) {
	s := r.URL.Query().Get("chunk_size")
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.New("invalid 'chunk_size' (expected integer)")
	}
	if n <= 0 {
		return 0, errors.New("'chunk_size' must be > 0")
	}
	if n > maxChunkSize {
		return 0, errors.New("'chunk_size' must be <= 100000")
	}
	return n, nil
}
