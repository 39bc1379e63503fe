package mcp

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"time"
)

func TestStdioTransportRelaysLines(t *testing.T) {
	r, w := io.Pipe()
	var out bytes.Buffer
	transport := NewStdioTransport(r, &out)
	if err := transport.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer transport.Disconnect()

	go func() {
		_, _ = w.Write([]byte("{\"jsonrpc\":\"2.0\"}\n"))
	}()

	select {
	case line := <-transport.Receive():
		if string(line) != `{"jsonrpc":"2.0"}` {
			t.Errorf("got %q", line)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for relayed line")
	}
}

func TestStdioTransportOversizeLineSurfacesTransportError(t *testing.T) {
	// A single line longer than maxStdioLine with no newline forces
	// bufio.Scanner to fail with ErrTooLong instead of returning a line.
	oversize := strings.Repeat("a", maxStdioLine+1)
	r := strings.NewReader(oversize)
	var out bytes.Buffer
	transport := NewStdioTransport(r, &out)
	if err := transport.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	peer := NewPeer(false)
	if err := peer.Connect(transport); err != nil {
		t.Fatalf("peer.Connect: %v", err)
	}

	select {
	case <-peer.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for peer readLoop to exit on oversize line")
	}

	if err := transport.ReceiveErr(); err == nil {
		t.Fatal("expected ReceiveErr to report the scanner's ErrTooLong")
	}
}
