package service

import (
	"bytes"
	"context"
	"encoding/json"

	"plantsense-server/internal/modules/plants/repository"
)

// ReadingStream yields the filtered readings as NDJSON-encoded chunks, one
// reading per line. Chunks are produced on demand so a slow consumer never
// forces the full result into memory; the stream is finite and not
// restartable (each StreamReadings call re-issues the query).
type ReadingStream struct {
	pages *repository.ReadingPages
	buf   bytes.Buffer
}

// StreamReadings opens a streaming query over all readings, or one plant's
// (case-insensitive). chunkSize <= 0 falls back to the configured default.
// Callers must Close the stream on every path.
func (s *Service) StreamReadings(ctx context.Context, plantName string, chunkSize int) (*ReadingStream, error) {
	if chunkSize <= 0 {
		chunkSize = s.opts.ChunkSize
	}
	pages, err := s.repo.QueryReadings(ctx, plantName, chunkSize)
	if err != nil {
		return nil, err
	}
	return &ReadingStream{pages: pages}, nil
}

// Next encodes the next chunk and returns it, or nil when the stream is
// exhausted. The returned bytes are only valid until the next call.
func (st *ReadingStream) Next() ([]byte, error) {
	if !st.pages.Next() {
		return nil, st.pages.Err()
	}
	st.buf.Reset()
	enc := json.NewEncoder(&st.buf)
	for _, reading := range st.pages.Page() {
		if err := enc.Encode(reading); err != nil {
			return nil, err
		}
	}
	return st.buf.Bytes(), nil
}

// Close releases the underlying cursor.
func (st *ReadingStream) Close() error {
	return st.pages.Close()
}
