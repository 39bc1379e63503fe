package mcp

import (
	"context"
	"encoding/json"
	"time"
)

// NotRequired is implemented by parameter types that have a sensible zero
// value when params is omitted entirely: if params is absent and the
// method's parameter type implements the NotRequired marker, a default
// instance is used; otherwise decoding fails with invalidParams.
type NotRequired interface {
	// DefaultParams returns the value to use when params was omitted.
	DefaultParams() any
}

// Method is a method descriptor: a name plus its associated parameter and
// result Go types, carried as a type parameter pair (an associated-type-
// per-method pattern). It holds only the method name, used
// to key the handler registry and drive (de)serialization with compile-time
// type safety at the call site.
type Method[P any, R any] struct {
	Name string
}

// NewMethod declares a method descriptor for a request (expects a Response).
func NewMethod[P any, R any](name string) Method[P, R] { return Method[P, R]{Name: name} }

// NotificationMethod declares a method descriptor for a one-way
// notification (no Response, no R type needed).
type NotificationMethod[P any] struct {
	Name string
}

func NewNotificationMethod[P any](name string) NotificationMethod[P] {
	return NotificationMethod[P]{Name: name}
}

// decodeParams unmarshals raw params into a P, applying the NotRequired
// default when raw is empty and P implements NotRequired. Absent params for
// any other P is an invalidParams error, per method.go's NotRequired doc:
// a type must opt in to being usable with no params, not get it for free
// from its zero value.
//
// json.RawMessage is exempt: methods typed Method[json.RawMessage, ...]
// defer the "are params required" decision to their own handler (which
// unmarshals raw itself), so an absent params object is passed through
// as a nil RawMessage rather than rejected here.
func decodeParams[P any](raw json.RawMessage) (P, error) {
	var p P
	if len(raw) == 0 {
		if nr, ok := any(&p).(interface{ DefaultParams() any }); ok {
			if dv, ok2 := nr.DefaultParams().(P); ok2 {
				return dv, nil
			}
		}
		if _, ok := any(p).(json.RawMessage); ok {
			return p, nil
		}
		return p, ErrInvalidParams("params is required for this method")
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, err
	}
	return p, nil
}

// requestHandlerFunc is the type-erased form stored in the registry: it
// receives raw params and a HandlerContext, and returns raw result bytes or
// an error. Registration via RegisterRequestHandler wraps a typed handler
// into this shape.
type requestHandlerFunc func(ctx *HandlerContext, rawParams json.RawMessage) (json.RawMessage, error)

type notificationHandlerFunc func(rawParams json.RawMessage)

// RegisterRequestHandler installs a typed handler for an inbound request
// method on peer. Must be called before Connect/Start. Handlers receive
// (params, context) and return a typed result or a
// typed *ProtocolError.
func RegisterRequestHandler[P any, R any](peer *Peer, method Method[P, R], handler func(ctx *HandlerContext, params P) (R, error)) {
	peer.registerRequestHandler(method.Name, func(ctx *HandlerContext, raw json.RawMessage) (json.RawMessage, error) {
		params, err := decodeParams[P](raw)
		if err != nil {
			return nil, ErrInvalidParams(err.Error())
		}
		result, err := handler(ctx, params)
		if err != nil {
			return nil, err
		}
		return json.Marshal(result)
	})
}

// RegisterNotificationHandler installs a typed handler for an inbound
// notification method. Multiple handlers per method are permitted and run
// concurrently; registration order only governs the
// order subscriptions are set up, not delivery order across handlers.
func RegisterNotificationHandler[P any](peer *Peer, method NotificationMethod[P], handler func(params P)) {
	peer.registerNotificationHandler(method.Name, func(raw json.RawMessage) {
		params, err := decodeParams[P](raw)
		if err != nil {
			peer.logf("mcp: dropping malformed %s notification: %v", method.Name, err)
			return
		}
		handler(params)
	})
}

// SendRequest issues a typed outbound request and decodes the typed result.
// A zero timeout means "no deadline"; ctx cancellation still applies.
func SendRequest[P any, R any](ctx context.Context, peer *Peer, method Method[P, R], params P, timeout time.Duration) (R, error) {
	var zero R
	rawParams, err := json.Marshal(params)
	if err != nil {
		return zero, err
	}
	raw, err := peer.sendRequestRaw(ctx, method.Name, rawParams, timeout)
	if err != nil {
		return zero, err
	}
	var result R
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &result); err != nil {
			return zero, ErrInternalError("invalid result shape: " + err.Error())
		}
	}
	return result, nil
}

// SendNotification issues a typed outbound notification.
func SendNotification[P any](peer *Peer, method NotificationMethod[P], params P) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return err
	}
	return peer.sendNotificationRaw(method.Name, raw)
}
