// ABOUTME: Local binding: newline-delimited JSON-RPC over a reader/writer pair.
// ABOUTME: Messages are handled sequentially; there is no authentication.

package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/2389/weather-travel/internal/tools"
)

// maxStdioMessage bounds a single line on the stdio channel.
const maxStdioMessage = 4 << 20

// ServeStdio reads requests from r and writes responses to w until r is
// exhausted or ctx is cancelled. A clean EOF returns nil.
func (h *Handler) ServeStdio(ctx context.Context, r io.Reader, w io.Writer) error {
	ctx = tools.WithTransport(ctx, tools.TransportStdio)

	lines := make(chan []byte)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), maxStdioMessage)
		for scanner.Scan() {
			line := append([]byte(nil), scanner.Bytes()...)
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	enc := &lineWriter{w: w}
	h.logger.Info("serving MCP over stdio")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				var err error
				select {
				case err = <-scanErr:
				default:
				}
				if err != nil {
					return fmt.Errorf("reading stdio: %w", err)
				}
				h.logger.Info("stdio closed")
				return nil
			}
			if len(line) == 0 {
				continue
			}
			if err := h.serveLine(ctx, line, enc); err != nil {
				return err
			}
		}
	}
}

func (h *Handler) serveLine(ctx context.Context, line []byte, enc *lineWriter) error {
	req, errResp := parseRequest(line)
	if errResp != nil {
		return enc.write(errResp)
	}

	resp := h.Handle(ctx, req)
	if resp == nil {
		return nil
	}
	if ctx.Err() != nil {
		// Shutting down; the peer will not read this.
		return nil
	}
	return enc.write(resp)
}

// lineWriter writes one JSON document per line.
type lineWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (lw *lineWriter) write(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding response: %w", err)
	}
	data = append(data, '\n')

	lw.mu.Lock()
	defer lw.mu.Unlock()
	if _, err := lw.w.Write(data); err != nil {
		if errors.Is(err, io.ErrClosedPipe) {
			return nil
		}
		return fmt.Errorf("writing response: %w", err)
	}
	return nil
}
