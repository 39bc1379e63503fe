// Package mcp implements the core runtime of the Model Context Protocol:
// a bidirectional JSON-RPC 2.0 engine with capability negotiation, typed
// method dispatch, progress/cancellation propagation, and transports for
// stdio, in-memory pairing, and session-scoped HTTP with SSE streaming.
//
// The engine is symmetric: a single Peer type drives both the client role
// and the server role. Client and Server are thin facades over Peer that
// install the appropriate handshake and handler set.
package mcp
