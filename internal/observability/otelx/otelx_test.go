package otelx

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/bakkerme/adhunter/internal/config"
)

func TestInitDisabledReturnsNoopShutdown(t *testing.T) {
	shutdown, err := Init(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil)), config.OTelEnvConfig{})
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if shutdown == nil {
		t.Fatalf("Init() returned nil shutdown")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown() error = %v", err)
	}
}

func TestInitRejectsUnknownProtocol(t *testing.T) {
	_, err := Init(context.Background(), nil, config.OTelEnvConfig{Enabled: true, Protocol: "thrift"})
	if err == nil {
		t.Fatalf("Init() error = nil, want protocol error")
	}
}

func TestProtocolAndEndpointDefaults(t *testing.T) {
	cases := []struct {
		cfg          config.OTelEnvConfig
		wantProtocol string
		wantEndpoint string
	}{
		{cfg: config.OTelEnvConfig{}, wantProtocol: "grpc", wantEndpoint: "localhost:4317"},
		{cfg: config.OTelEnvConfig{Protocol: "HTTP"}, wantProtocol: "http/protobuf", wantEndpoint: "localhost:4318"},
		{cfg: config.OTelEnvConfig{Endpoint: "collector:4317"}, wantProtocol: "grpc", wantEndpoint: "collector:4317"},
	}
	for _, tc := range cases {
		got := resolveTarget(tc.cfg)
		if got.protocol != tc.wantProtocol || got.endpoint != tc.wantEndpoint {
			t.Errorf("resolveTarget(%+v) = %+v, want %s %s", tc.cfg, got, tc.wantProtocol, tc.wantEndpoint)
		}
	}
}

func TestSpansWithoutProviderAreSafe(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "test")
	if ctx == nil {
		t.Fatalf("StartSpan returned nil context")
	}
	EndSpan(span, errors.New("boom"))
	_, span = StartSpan(context.Background(), "test")
	EndSpan(span, nil)
}
