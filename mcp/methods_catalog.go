package mcp

import "encoding/json"

// json.RawMessage-typed method descriptors for the methods whose
// concrete schema is owned by an external registry (tool/prompt/resource
// declarations live outside core scope: tool/prompt registries are
// external, and merely install request handlers on the core). The core
// only needs the method NAME to route
// dispatch; the shape of params/result is whatever the external registry's
// handler decodes for itself from the raw bytes.
//
// json.RawMessage satisfies both json.Marshaler and json.Unmarshaler, so it
// works directly as a Method type parameter without extra plumbing.
var (
	MethodToolsList               = NewMethod[json.RawMessage, json.RawMessage]("tools/list")
	MethodToolsCall               = NewMethod[json.RawMessage, json.RawMessage]("tools/call")
	MethodResourcesList           = NewMethod[json.RawMessage, json.RawMessage]("resources/list")
	MethodResourcesRead           = NewMethod[json.RawMessage, json.RawMessage]("resources/read")
	MethodResourcesSubscribe      = NewMethod[json.RawMessage, json.RawMessage]("resources/subscribe")
	MethodResourcesUnsubscribe    = NewMethod[json.RawMessage, json.RawMessage]("resources/unsubscribe")
	MethodResourcesTemplatesList  = NewMethod[json.RawMessage, json.RawMessage]("resources/templates/list")
	MethodPromptsList             = NewMethod[json.RawMessage, json.RawMessage]("prompts/list")
	MethodPromptsGet              = NewMethod[json.RawMessage, json.RawMessage]("prompts/get")
	MethodCompletionComplete      = NewMethod[json.RawMessage, json.RawMessage]("completion/complete")
	MethodSamplingCreateMessage   = NewMethod[json.RawMessage, json.RawMessage]("sampling/createMessage")
	MethodElicitationCreate       = NewMethod[json.RawMessage, json.RawMessage]("elicitation/create")
	MethodRootsList               = NewMethod[json.RawMessage, json.RawMessage]("roots/list")
)

// Fixed notification method names, for callers that want to fan out
// list-changed/updated events without the core knowing
// their payload shape.
var (
	NotificationToolsListChanged       = NewNotificationMethod[json.RawMessage]("notifications/tools/list_changed")
	NotificationResourcesUpdated       = NewNotificationMethod[json.RawMessage]("notifications/resources/updated")
	NotificationResourcesListChanged   = NewNotificationMethod[json.RawMessage]("notifications/resources/list_changed")
	NotificationPromptsListChanged     = NewNotificationMethod[json.RawMessage]("notifications/prompts/list_changed")
	NotificationRootsListChanged       = NewNotificationMethod[json.RawMessage]("notifications/roots/list_changed")
	NotificationMessage                = NewNotificationMethod[LogMessageParams]("notifications/message")
)

// LogMessageParams is the params shape of notifications/message: a
// logging-level tagged payload a server pushes to the client over the
// peer's notification channel, gated by the logging capability.
type LogMessageParams struct {
	Level  string `json:"level"`
	Logger string `json:"logger,omitempty"`
	Data   Value  `json:"data"`
}

// SetLevelParams is the params of logging/setLevel.
type SetLevelParams struct {
	Level string `json:"level"`
}

// SetLevelResult is the (empty) result of logging/setLevel.
type SetLevelResult struct{}

var MethodLoggingSetLevel = NewMethod[SetLevelParams, SetLevelResult]("logging/setLevel")
