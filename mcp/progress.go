package mcp

import (
	"encoding/json"
	"fmt"
	"sync"
)

// progressToken is the decoded form of a _meta.progressToken value
// (string|integer), extracted from an inbound request's Meta bag.
type progressToken struct {
	raw Value
}

func extractProgressToken(meta json.RawMessage) *progressToken {
	if len(meta) == 0 {
		return nil
	}
	var m struct {
		ProgressToken *Value `json:"progressToken"`
	}
	if err := json.Unmarshal(meta, &m); err != nil || m.ProgressToken == nil {
		return nil
	}
	return &progressToken{raw: *m.ProgressToken}
}

// ProgressParams is the params shape of notifications/progress.
type ProgressParams struct {
	ProgressToken Value   `json:"progressToken"`
	Progress      float64 `json:"progress"`
	Total         float64 `json:"total,omitempty"`
	Message       string  `json:"message,omitempty"`
}

// CancelledParams is the params shape of notifications/cancelled.
type CancelledParams struct {
	RequestID Value  `json:"requestId"`
	Reason    string `json:"reason,omitempty"`
}

const (
	methodNotificationsCancelled = "notifications/cancelled"
	methodNotificationsProgress  = "notifications/progress"
)

// MethodNotificationsProgress is the typed descriptor for
// notifications/progress, usable with SendNotification by callers that want
// to emit progress manually (HandlerContext.SendProgress wraps this for the
// common case).
var MethodNotificationsProgress = NewNotificationMethod[ProgressParams](methodNotificationsProgress)

func idToValue(id RequestId) Value {
	if id.isString {
		return StringValue(id.s)
	}
	return IntValue(id.i)
}

func idFromValue(v Value) (RequestId, error) {
	if s, ok := v.String(); ok {
		return StringID(s), nil
	}
	if i, ok := v.Int(); ok {
		return IntID(i), nil
	}
	if f, ok := v.Float(); ok {
		return IntID(int64(f)), nil
	}
	return RequestId{}, fmt.Errorf("mcp: invalid request id value")
}

// progressTokenKey renders a Value progress token to a stable map key.
func progressTokenKey(v Value) string {
	if s, ok := v.String(); ok {
		return "s:" + s
	}
	if i, ok := v.Int(); ok {
		return fmt.Sprintf("i:%d", i)
	}
	return "?"
}

// progressRegistry lets the sender of a request filter inbound
// notifications/progress by token membership: the sender of the original
// request owns it and filters inbound progress notifications by
// membership.
type progressRegistry struct {
	mu   sync.Mutex
	subs map[string]func(ProgressParams)
}

func newProgressRegistry() *progressRegistry {
	return &progressRegistry{subs: make(map[string]func(ProgressParams))}
}

func (r *progressRegistry) subscribe(token Value, fn func(ProgressParams)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs[progressTokenKey(token)] = fn
}

func (r *progressRegistry) unsubscribe(token Value) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.subs, progressTokenKey(token))
}

func (r *progressRegistry) dispatch(params ProgressParams) {
	r.mu.Lock()
	fn := r.subs[progressTokenKey(params.ProgressToken)]
	r.mu.Unlock()
	if fn != nil {
		fn(params)
	}
}
