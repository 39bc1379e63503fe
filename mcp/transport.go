package mcp

// Transport is the duplex byte/message channel the peer engine drives: a
// connect/disconnect lifecycle, a send(bytes) call, and a receive() lazy
// sequence of inbound messages. Grounded on StreamableHTTPTransport/
// StdHTTPTransport Send/Close/SetMessageHandler split (generalized here to a
// pull-based channel instead of push callbacks, which composes more simply
// with the peer's single reader goroutine).
type Transport interface {
	// Connect performs any handshake-free setup (opening files, dialing a
	// socket, registering HTTP routes) needed before Send/Receive are used.
	Connect() error

	// Disconnect ends the inbound sequence returned by Receive and releases
	// any held resources. Calling Send after Disconnect returns an error,
	// which the Peer reports to its caller as transportError.
	Disconnect() error

	// Send writes one encoded JSON-RPC envelope. Implementations must
	// serialize concurrent Send calls so that writes complete atomically
	// and in submission order.
	Send(raw []byte) error

	// Receive returns a channel of raw inbound envelope bytes. The channel
	// is closed when the transport disconnects or the underlying stream
	// ends. Receive is called exactly once per Connect.
	Receive() <-chan []byte
}

// ReceiveErrorer is an optional extension a Transport can implement when
// its Receive channel can close because of a malformed or oversize inbound
// message rather than a clean disconnect. Peer's readLoop checks ReceiveErr
// after the channel closes and, if it returns non-nil, fails pending
// requests with transportError instead of connectionClosed.
type ReceiveErrorer interface {
	ReceiveErr() error
}
