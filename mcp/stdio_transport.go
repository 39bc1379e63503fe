package mcp

import (
	"bufio"
	"errors"
	"io"
	"sync"
)

// maxStdioLine bounds a single newline-delimited message. Tool results can
// carry large embedded resource blobs, so this is sized well above typical
// JSON-RPC chatter; grounded on dominicnunez-codex-sdk-go/stdio.go's 10MiB
// scanner buffer, trimmed to 4MiB since MCP tool traffic doesn't need the
// multi-megabyte diff/patch payloads that SDK's domain (a coding agent)
// produces.
const maxStdioLine = 4 * 1024 * 1024

// StdioTransport implements Transport over newline-delimited JSON on an
// io.Reader/io.Writer pair: standard I/O with one JSON-RPC message per
// line, the first required MCP transport.
//
// Grounded on dominicnunez-codex-sdk-go/stdio.go's readLoop/writeMessage
// split, adapted from that SDK's push-handler callback model to this
// engine's pull-based Receive() channel.
type StdioTransport struct {
	r io.Reader
	w io.Writer

	writeMu sync.Mutex

	out      chan []byte
	doneOnce sync.Once
	closed   chan struct{}

	scanErrMu sync.Mutex
	scanErr   error
}

// NewStdioTransport builds a transport over the given reader/writer,
// typically os.Stdin and os.Stdout for a CLI subprocess server, or a piped
// io.ReadWriter pair when hosting an in-process subprocess client.
func NewStdioTransport(r io.Reader, w io.Writer) *StdioTransport {
	return &StdioTransport{r: r, w: w, out: make(chan []byte, 64), closed: make(chan struct{})}
}

func (t *StdioTransport) Connect() error {
	go t.readLoop()
	return nil
}

func (t *StdioTransport) Disconnect() error {
	t.doneOnce.Do(func() { close(t.closed) })
	if c, ok := t.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (t *StdioTransport) Send(raw []byte) error {
	select {
	case <-t.closed:
		return errors.New("mcp: stdio transport closed")
	default:
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if _, err := t.w.Write(raw); err != nil {
		return err
	}
	_, err := t.w.Write([]byte{'\n'})
	return err
}

func (t *StdioTransport) Receive() <-chan []byte { return t.out }

// ReceiveErr reports the error (if any) that ended readLoop's scan, letting
// Peer's readLoop (via the ReceiveErrorer interface) distinguish an
// oversize or malformed inbound line from a clean EOF/Disconnect.
func (t *StdioTransport) ReceiveErr() error {
	t.scanErrMu.Lock()
	defer t.scanErrMu.Unlock()
	return t.scanErr
}

func (t *StdioTransport) readLoop() {
	defer close(t.out)
	scanner := bufio.NewScanner(t.r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxStdioLine)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		cp := make([]byte, len(line))
		copy(cp, line)
		select {
		case t.out <- cp:
		case <-t.closed:
			return
		}
	}
	if err := scanner.Err(); err != nil {
		t.scanErrMu.Lock()
		t.scanErr = err
		t.scanErrMu.Unlock()
	}
}
