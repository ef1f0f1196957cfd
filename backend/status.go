// status.go - Erfassung der Engine-Ausgabe
// Der StatusWriter merkt sich die letzte Fehlerzeile fuer Startup-Fehler.
package backend

import (
	"bytes"
	"io"
	"strings"
	"sync"
)

var errorPrefixes = []string{
	"error:",
	"Error:",
	"level=ERROR",
	"panic:",
}

// StatusWriter forwards engine output and remembers the last error line.
type StatusWriter struct {
	mu         sync.Mutex
	lastErrMsg string
	out        io.Writer
}

func NewStatusWriter(out io.Writer) *StatusWriter {
	return &StatusWriter{out: out}
}

// LastErrMsg returns the last error line seen, if any.
func (w *StatusWriter) LastErrMsg() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastErrMsg
}

func (w *StatusWriter) Write(b []byte) (int, error) {
	for _, line := range bytes.Split(b, []byte("\n")) {
		s := string(bytes.TrimSpace(line))
		for _, prefix := range errorPrefixes {
			if i := strings.Index(s, prefix); i >= 0 {
				w.mu.Lock()
				w.lastErrMsg = strings.TrimSpace(s[i:])
				w.mu.Unlock()
				break
			}
		}
	}
	return w.out.Write(b)
}
