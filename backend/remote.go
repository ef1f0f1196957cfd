// remote.go - Verbindung zu einer laufenden Engine
package backend

import (
	"context"
	"net/url"

	"github.com/sysds/sysds/api"
)

type remoteServer struct {
	*httpServer
}

// NewRemoteServer connects to an engine that is already running at base.
// Close only drops the connection.
func NewRemoteServer(ctx context.Context, base *url.URL, opts Options) (Backend, error) {
	s := &remoteServer{httpServer: newHTTPServer(api.NewClient(base, opts.httpClient()), opts)}
	if err := s.waitUntilRunning(ctx, opts.startupTimeout(), nil); err != nil {
		return nil, &api.StartupError{Err: err}
	}
	return s, nil
}

func (s *remoteServer) Close() error {
	s.closed.Store(true)
	return nil
}
