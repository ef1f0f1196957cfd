// Package api - API-Methoden des Clients.
// Dieses Modul enthaelt Health und Execute.

package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Health returns the engine status.
func (c *Client) Health(ctx context.Context) (*ServerStatusResponse, error) {
	var resp ServerStatusResponse
	if err := c.do(ctx, http.MethodGet, "/health", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Execute submits a program and returns one frame per requested output.
// Errors reported by the engine are returned as [StatusError]; a malformed
// result stream is returned as a plain error.
func (c *Client) Execute(ctx context.Context, req *ExecuteRequest) ([]Frame, error) {
	request, err := c.newRequest(ctx, http.MethodPost, "/execute", req)
	if err != nil {
		return nil, err
	}
	request.Header.Set("Accept", ContentTypeFrames)

	resp, err := c.http.Do(request)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		return nil, checkError(resp, body)
	}

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, ContentTypeFrames) {
		return nil, fmt.Errorf("unexpected content type %q", ct)
	}

	frames, err := NewFrameReader(resp.Body).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read result stream: %w", err)
	}

	for i := range frames {
		if err := Decompress(&frames[i]); err != nil {
			return nil, err
		}
	}
	return frames, nil
}
