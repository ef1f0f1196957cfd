// Package backend - Ausfuehrungskanal zur Engine
//
// Implementierungen des Backend-Interfaces:
// - processServer: startet die Engine als Subprozess (runner-Subkommando)
// - remoteServer: verbindet sich mit einer laufenden Engine
// - Fake: Test-Double mit vorbereiteten Antworten
//
// Fehlerabbildung:
// - HTTP 422 -> *api.RuntimeError mit Statement-Index und Knoten
// - Alles andere -> api.ErrBackendFault
package backend

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/sysds/sysds/api"
	"github.com/sysds/sysds/history"
)

// Backend submits compiled programs to an engine.
type Backend interface {
	// Submit runs one program and returns one frame per requested output.
	Submit(ctx context.Context, req *api.ExecuteRequest) ([]api.Frame, error)
	Ping(ctx context.Context) error
	Close() error
}

// Recorder journals submissions. *history.Store implements it.
type Recorder interface {
	Record(ctx context.Context, e history.Entry) error
}

// Options configures process and remote backends.
type Options struct {
	// Executable of the engine, the current executable if empty.
	Executable string
	WorkDir    string
	// Memory budget passed to the engine in bytes, 0 for no limit.
	Memory  uint64
	Verbose bool

	StartupTimeout time.Duration
	NumParallel    int

	// Session tags journal entries.
	Session  string
	Recorder Recorder

	HTTPClient *http.Client
}

func (o Options) numParallel() int64 {
	if o.NumParallel < 1 {
		return 1
	}
	return int64(o.NumParallel)
}

func (o Options) startupTimeout() time.Duration {
	if o.StartupTimeout <= 0 {
		return 60 * time.Second
	}
	return o.StartupTimeout
}

func (o Options) httpClient() *http.Client {
	if o.HTTPClient != nil {
		return o.HTTPClient
	}
	return http.DefaultClient
}

// filteredEnv filtert Umgebungsvariablen fuer sicheres Logging
type filteredEnv []string

func (e filteredEnv) LogValue() slog.Value {
	var attrs []slog.Attr
	for _, env := range e {
		if key, value, ok := strings.Cut(env, "="); ok {
			switch {
			case strings.HasPrefix(key, "SYSDS_"),
				strings.HasPrefix(key, "GIN_"),
				slices.Contains([]string{
					"PATH",
					"LD_LIBRARY_PATH",
					"DYLD_LIBRARY_PATH",
				}, key):
				attrs = append(attrs, slog.String(key, value))
			}
		}
	}
	return slog.GroupValue(attrs...)
}
