package mcp

import (
	"bytes"
	"encoding/json"
	"fmt"
)

const jsonrpcVersion = "2.0"

// RequestId is the union string|integer used to correlate requests and
// responses. Its zero value is invalid: null ids are forbidden, which is
// what distinguishes a Request from a Notification.
//
// Grounded on dominicnunez-codex-sdk-go/jsonrpc.go's RequestID, generalized
// so construction can't accidentally produce a null id.
type RequestId struct {
	isString bool
	s        string
	i        int64
	valid    bool
}

func StringID(s string) RequestId { return RequestId{isString: true, s: s, valid: true} }
func IntID(i int64) RequestId     { return RequestId{i: i, valid: true} }

func (r RequestId) Valid() bool { return r.valid }

func (r RequestId) String() string {
	if !r.valid {
		return "<invalid-id>"
	}
	if r.isString {
		return r.s
	}
	return fmt.Sprintf("%d", r.i)
}

// Equal reports whether two ids denote the same request. An invalid id never
// equals another id, including another invalid one.
func (r RequestId) Equal(other RequestId) bool {
	if !r.valid || !other.valid {
		return false
	}
	if r.isString != other.isString {
		return false
	}
	if r.isString {
		return r.s == other.s
	}
	return r.i == other.i
}

func (r RequestId) MarshalJSON() ([]byte, error) {
	if !r.valid {
		return []byte("null"), nil
	}
	if r.isString {
		return json.Marshal(r.s)
	}
	return json.Marshal(r.i)
}

func (r *RequestId) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*r = RequestId{}
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*r = StringID(s)
		return nil
	}
	var i int64
	if err := json.Unmarshal(trimmed, &i); err != nil {
		return err
	}
	*r = IntID(i)
	return nil
}

// Request is an outbound or inbound JSON-RPC call that expects a Response.
type Request struct {
	ID     RequestId
	Method string
	Params json.RawMessage
	Meta   json.RawMessage
}

// Response is either a success or an error reply to a Request, matched by ID.
type Response struct {
	ID     RequestId
	Result json.RawMessage // nil when Error is set
	Error  *ProtocolError  // nil on success
	Meta   json.RawMessage
}

func (r Response) IsError() bool { return r.Error != nil }

// Notification is a fire-and-forget JSON-RPC call: it carries no ID and
// never receives a reply.
type Notification struct {
	Method string
	Params json.RawMessage
	Meta   json.RawMessage
}

// wireEnvelope is the on-the-wire shape shared by all three variants; which
// fields are present (id/method vs id/result-or-error) disambiguates them.
type wireEnvelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *wireError      `json:"error,omitempty"`
	Meta    json.RawMessage `json:"_meta,omitempty"`
}

type wireError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Envelope is the decoded result of Decode: exactly one of Request,
// Response, Notification is non-nil.
type Envelope struct {
	Request      *Request
	Response     *Response
	Notification *Notification
}

// DecodeError is returned by Decode when bytes are not valid JSON, or are
// valid JSON but not a valid JSON-RPC 2.0 envelope.
type DecodeError struct {
	Proto *ProtocolError
	// Partial carries a recovered id/method to reply against when one is
	// set. Decode and DecodeAny always leave it nil, so replies to
	// undecodable messages carry id null.
	Partial *Envelope
}

func (e *DecodeError) Error() string { return e.Proto.Error() }

// Decode parses a single JSON-RPC envelope (not a batch). Use DecodeAny to
// accept either a single envelope or a batch array: an HTTP POST body is
// either a single envelope or a batch array, and the server's response
// mirrors that shape.
func Decode(data []byte) (*Envelope, error) {
	var w wireEnvelope
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, &DecodeError{Proto: ErrParseError(err.Error())}
	}
	return decodeWire(w)
}

func decodeWire(w wireEnvelope) (*Envelope, error) {
	hasID := len(w.ID) > 0 && !bytes.Equal(bytes.TrimSpace(w.ID), []byte("null"))

	switch {
	case w.Method != "" && hasID:
		var id RequestId
		if err := id.UnmarshalJSON(w.ID); err != nil {
			return nil, &DecodeError{Proto: ErrInvalidRequest("invalid id")}
		}
		return &Envelope{Request: &Request{ID: id, Method: w.Method, Params: w.Params, Meta: w.Meta}}, nil
	case w.Method != "" && !hasID:
		return &Envelope{Notification: &Notification{Method: w.Method, Params: w.Params, Meta: w.Meta}}, nil
	case hasID && (w.Result != nil || w.Error != nil):
		var id RequestId
		if err := id.UnmarshalJSON(w.ID); err != nil {
			return nil, &DecodeError{Proto: ErrInvalidRequest("invalid id")}
		}
		resp := &Response{ID: id, Result: w.Result, Meta: w.Meta}
		if w.Error != nil {
			resp.Error = &ProtocolError{Code: w.Error.Code, Message: w.Error.Message, Data: w.Error.Data}
		}
		return &Envelope{Response: resp}, nil
	case w.Error != nil:
		// An error reply with id null answers a message whose id could not
		// be read; it matches no pending request.
		return &Envelope{Response: &Response{Error: &ProtocolError{Code: w.Error.Code, Message: w.Error.Message, Data: w.Error.Data}, Meta: w.Meta}}, nil
	default:
		return nil, &DecodeError{Proto: ErrInvalidRequest("not a request, response, or notification")}
	}
}

// Batch is a decoded batch POST body: one entry per array element, in
// arrival order. A malformed element decodes to a nil Envelope at that
// index paired with a non-nil error, so callers can still reply in order.
type Batch []BatchItem

type BatchItem struct {
	Envelope *Envelope
	Err      error
}

// DecodeAny decodes either a single envelope or a batch array: an HTTP
// POST body is either a single envelope or a batch array, and the server's
// response mirrors that shape.
func DecodeAny(data []byte) (single *Envelope, batch Batch, err error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil, &DecodeError{Proto: ErrParseError("empty body")}
	}
	if trimmed[0] == '[' {
		var raws []json.RawMessage
		if jsonErr := json.Unmarshal(trimmed, &raws); jsonErr != nil {
			return nil, nil, &DecodeError{Proto: ErrParseError(jsonErr.Error())}
		}
		b := make(Batch, 0, len(raws))
		for _, raw := range raws {
			env, decErr := Decode(raw)
			b = append(b, BatchItem{Envelope: env, Err: decErr})
		}
		return nil, b, nil
	}
	env, decErr := Decode(trimmed)
	if decErr != nil {
		return nil, nil, decErr
	}
	return env, nil, nil
}

// EncodeRequest renders a Request to wire bytes (UTF-8, no trailing
// newline; transports add their own framing on top).
func EncodeRequest(r *Request) ([]byte, error) {
	idBytes, err := r.ID.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireEnvelope{JSONRPC: jsonrpcVersion, ID: idBytes, Method: r.Method, Params: r.Params, Meta: r.Meta})
}

func EncodeNotification(n *Notification) ([]byte, error) {
	return json.Marshal(wireEnvelope{JSONRPC: jsonrpcVersion, Method: n.Method, Params: n.Params, Meta: n.Meta})
}

func EncodeResponse(r *Response) ([]byte, error) {
	idBytes, err := r.ID.MarshalJSON()
	if err != nil {
		return nil, err
	}
	w := wireEnvelope{JSONRPC: jsonrpcVersion, ID: idBytes, Meta: r.Meta}
	if r.Error != nil {
		w.Error = &wireError{Code: r.Error.Code, Message: r.Error.Message, Data: r.Error.Data}
	} else {
		w.Result = r.Result
		if w.Result == nil {
			w.Result = json.RawMessage("{}")
		}
	}
	return json.Marshal(w)
}

// Encode renders any single envelope variant to wire bytes.
func Encode(env *Envelope) ([]byte, error) {
	switch {
	case env.Request != nil:
		return EncodeRequest(env.Request)
	case env.Response != nil:
		return EncodeResponse(env.Response)
	case env.Notification != nil:
		return EncodeNotification(env.Notification)
	default:
		return nil, fmt.Errorf("mcp: empty envelope")
	}
}

// EncodeBatch renders a slice of responses as a JSON array, in the given
// order, mirroring the request batch's shape for a clean round trip.
func EncodeBatch(responses []*Response) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, r := range responses {
		if i > 0 {
			buf.WriteByte(',')
		}
		b, err := EncodeResponse(r)
		if err != nil {
			return nil, err
		}
		buf.Write(b)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}
