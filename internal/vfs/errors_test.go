package vfs

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Class
	}{
		{"nil", nil, ClassNone},
		{"not found", ErrNotFound, ClassFatal},
		{"permission", ErrPermissionDenied, ClassFatal},
		{"collision", ErrNameCollision, ClassFatal},
		{"connectivity", ErrConnectivity, ClassConnectivity},
		{"deadline", context.DeadlineExceeded, ClassConnectivity},
		{"auth", ErrAuthentication, ClassAuth},
		{"cancelled sentinel", ErrCancelled, ClassCancelled},
		{"context cancelled", context.Canceled, ClassCancelled},
		{"wrapped connectivity", fmt.Errorf("stat /x: %w", ErrConnectivity), ClassConnectivity},
		{"unclassified", errors.New("boom"), ClassFatal},
	}
	for _, tt := range tests {
		if got := Classify(tt.err); got != tt.want {
			t.Errorf("%s: Classify = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(ErrConnectivity) {
		t.Error("Connectivity errors must be retryable")
	}
	for _, err := range []error{ErrAuthentication, ErrNotFound, ErrCancelled, nil} {
		if IsRetryable(err) {
			t.Errorf("%v must not be retryable", err)
		}
	}
}

func TestIsTransportError(t *testing.T) {
	transport := []error{
		errors.New("read tcp 10.0.0.1:22: connection reset by peer"),
		errors.New("dial tcp: i/o timeout"),
		errors.New("ssh: handshake failed: EOF"),
		errors.New("write: broken pipe"),
	}
	for _, err := range transport {
		if !IsTransportError(err) {
			t.Errorf("Expected transport error for %v", err)
		}
	}

	if IsTransportError(nil) {
		t.Error("nil is not a transport error")
	}
	if IsTransportError(errors.New("file exists")) {
		t.Error("'file exists' is not a transport error")
	}
}

func TestWrapUnknown(t *testing.T) {
	if WrapUnknown("stat", "/x", nil) != nil {
		t.Error("nil must pass through")
	}

	// Taxonomy errors pass through unchanged.
	for _, sentinel := range []error{ErrNotFound, ErrConnectivity, ErrAuthentication, ErrCancelled} {
		wrapped := fmt.Errorf("stat /x: %w", sentinel)
		if got := WrapUnknown("stat", "/x", wrapped); got != wrapped {
			t.Errorf("Expected %v unchanged, got %v", wrapped, got)
		}
	}

	// Unknown errors are wrapped but keep their cause.
	cause := errors.New("weird backend failure")
	got := WrapUnknown("open", "/y", cause)
	if !errors.Is(got, cause) {
		t.Errorf("Wrapped error lost its cause: %v", got)
	}
	if got == cause {
		t.Error("Expected unknown error to be annotated")
	}
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()

	if _, err := reg.Get("nope"); err == nil {
		t.Fatal("Expected error for unknown handle")
	}

	p := &fakeProvider{handle: "fake-1"}
	if h := reg.Register(p); h != "fake-1" {
		t.Errorf("Register returned %q", h)
	}

	got, err := reg.Get("fake-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != p {
		t.Error("Get returned a different provider")
	}

	handles := reg.Handles()
	if len(handles) != 1 || handles[0] != "fake-1" {
		t.Errorf("Handles = %v", handles)
	}

	reg.Unregister("fake-1")
	if !p.closed {
		t.Error("Unregister must close a closable provider")
	}
	if _, err := reg.Get("fake-1"); err == nil {
		t.Error("Expected error after Unregister")
	}
}
