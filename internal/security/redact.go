package security

import (
	"bytes"
	"io"
	"sync"
)

// Placeholder replaces secret values in redacted output.
const Placeholder = "<redacted>"

// Redactor is an io.Writer that replaces every occurrence of the configured
// secrets with Placeholder before forwarding to the wrapped writer.
//
// Output is forwarded line by line so a secret split across two Write calls
// is still caught. Call Flush once the producer is done to emit a trailing
// partial line.
type Redactor struct {
	mu      sync.Mutex
	w       io.Writer
	secrets [][]byte
	pending []byte
}

// NewRedactor wraps w. Empty secrets are ignored.
func NewRedactor(w io.Writer, secrets ...string) *Redactor {
	r := &Redactor{w: w}
	for _, s := range secrets {
		if s == "" {
			continue
		}
		r.secrets = append(r.secrets, []byte(s))
	}
	return r
}

func (r *Redactor) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = append(r.pending, p...)
	i := bytes.LastIndexByte(r.pending, '\n')
	if i < 0 {
		return len(p), nil
	}
	complete := r.pending[:i+1]
	if _, err := r.w.Write(r.redact(complete)); err != nil {
		return 0, err
	}
	r.pending = append([]byte(nil), r.pending[i+1:]...)
	return len(p), nil
}

// Flush writes any buffered partial line.
func (r *Redactor) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.pending) == 0 {
		return nil
	}
	_, err := r.w.Write(r.redact(r.pending))
	r.pending = nil
	return err
}

func (r *Redactor) redact(b []byte) []byte {
	out := b
	for _, s := range r.secrets {
		if bytes.Contains(out, s) {
			out = bytes.ReplaceAll(out, s, []byte(Placeholder))
		}
	}
	return out
}

// RedactString applies the same replacement to a single string.
func RedactString(s string, secrets ...string) string {
	r := NewRedactor(io.Discard, secrets...)
	return string(r.redact([]byte(s)))
}
