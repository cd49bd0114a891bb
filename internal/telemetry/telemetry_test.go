package telemetry

import (
	"context"
	"errors"
	"testing"
)

// TestSetup_NoOpWithoutEndpoint checks that an empty OTLP endpoint yields a
// usable Provider backed by the SDK's no-op implementations, never an error.
func TestSetup_NoOpWithoutEndpoint(t *testing.T) {
	p, err := Setup(context.Background(), "storyflowd-test", "")
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if p.Meter == nil || p.Logger == nil {
		t.Fatal("Setup returned a Provider with a nil Meter or Logger")
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}

// TestRecordNextNode_PropagatesError checks the timing wrapper still
// surfaces the wrapped call's error.
func TestRecordNextNode_PropagatesError(t *testing.T) {
	p, err := Setup(context.Background(), "storyflowd-test", "")
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	wantErr := errors.New("boom")
	gotErr := p.RecordNextNode(context.Background(), "flow1", func() error {
		return wantErr
	})
	if !errors.Is(gotErr, wantErr) {
		t.Errorf("RecordNextNode error = %v, want %v", gotErr, wantErr)
	}
}

// TestRecordNextNode_NilProviderIsSafe checks a nil *Provider (e.g. telemetry
// disabled entirely) still runs fn and returns its result.
func TestRecordNextNode_NilProviderIsSafe(t *testing.T) {
	var p *Provider
	called := false
	err := p.RecordNextNode(context.Background(), "flow1", func() error {
		called = true
		return nil
	})
	if err != nil {
		t.Errorf("RecordNextNode: %v", err)
	}
	if !called {
		t.Error("RecordNextNode did not call fn on a nil Provider")
	}
}
