package audithook

import (
	"context"
	"encoding/json"
	"io"
	"sync"
)

// WriterRecorder appends each event to w as one JSON line.
type WriterRecorder struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewWriterRecorder returns a recorder writing JSON lines to w.
func NewWriterRecorder(w io.Writer) *WriterRecorder {
	return &WriterRecorder{enc: json.NewEncoder(w)}
}

// Record implements Recorder.
func (r *WriterRecorder) Record(_ context.Context, evt *AuditEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enc.Encode(evt)
}
