// fake.go - Test-Double fuer das Backend-Interface
package backend

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sysds/sysds/api"
)

// Fake is a Backend that answers submissions with Handler and records every
// request.
type Fake struct {
	Handler func(ctx context.Context, req *api.ExecuteRequest) ([]api.Frame, error)

	mu       sync.Mutex
	requests []*api.ExecuteRequest
	closed   bool
}

func (f *Fake) Submit(ctx context.Context, req *api.ExecuteRequest) ([]api.Frame, error) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil, fmt.Errorf("%w: %v", api.ErrBackendFault, errClosed)
	}
	f.requests = append(f.requests, req)
	handler := f.Handler
	f.mu.Unlock()

	if handler == nil {
		return nil, errors.New("fake backend has no handler")
	}
	return handler(ctx, req)
}

// Requests returns the submitted requests in order.
func (f *Fake) Requests() []*api.ExecuteRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*api.ExecuteRequest(nil), f.requests...)
}

// Submissions returns the number of submitted requests.
func (f *Fake) Submissions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *Fake) Ping(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return errClosed
	}
	return nil
}

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Closed reports whether Close was called.
func (f *Fake) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
