package mcp

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

type requiredParams struct {
	Level string `json:"level"`
}

type defaultableParams struct {
	Level string `json:"level"`
}

func (defaultableParams) DefaultParams() any { return defaultableParams{Level: "info"} }

func TestDecodeParamsMissingWithoutNotRequiredIsInvalidParams(t *testing.T) {
	_, err := decodeParams[requiredParams](nil)
	if err == nil {
		t.Fatal("expected an error for absent params on a type without DefaultParams")
	}
	protoErr := AsProtocolError(err)
	if protoErr == nil || protoErr.Code != CodeInvalidParams {
		t.Fatalf("expected CodeInvalidParams, got %v", err)
	}
}

func TestDecodeParamsMissingUsesNotRequiredDefault(t *testing.T) {
	got, err := decodeParams[defaultableParams](nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Level != "info" {
		t.Errorf("expected default level %q, got %q", "info", got.Level)
	}
}

func TestDecodeParamsMissingRawMessageIsExempt(t *testing.T) {
	got, err := decodeParams[json.RawMessage](nil)
	if err != nil {
		t.Fatalf("unexpected error for absent json.RawMessage params: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil RawMessage, got %q", got)
	}
}

func TestDecodeParamsPresentUnmarshals(t *testing.T) {
	got, err := decodeParams[requiredParams](json.RawMessage(`{"level":"debug"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Level != "debug" {
		t.Errorf("expected level %q, got %q", "debug", got.Level)
	}
}

func TestDecodeParamsMalformedJSONIsError(t *testing.T) {
	if _, err := decodeParams[requiredParams](json.RawMessage(`{not json`)); err == nil {
		t.Fatal("expected an error for malformed params JSON")
	}
}

func TestSetLevelMissingParamsIsInvalidParams(t *testing.T) {
	client, server := connectedPeers(t, false, false)

	RegisterRequestHandler(server, MethodLoggingSetLevel, func(_ *HandlerContext, p SetLevelParams) (SetLevelResult, error) {
		return SetLevelResult{}, nil
	})

	_, err := client.sendRequestRaw(context.Background(), MethodLoggingSetLevel.Name, nil, time.Second)
	if err == nil {
		t.Fatal("expected invalidParams for a logging/setLevel call with no params")
	}
	protoErr := AsProtocolError(err)
	if protoErr == nil || protoErr.Code != CodeInvalidParams {
		t.Fatalf("expected CodeInvalidParams, got %v", err)
	}
}
