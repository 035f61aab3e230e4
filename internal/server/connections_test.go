package server

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRegistryRejectsDuplicate(t *testing.T) {
	r := NewRegistry(testLogger(), false)
	userID := uuid.New()

	if err := r.Register(userID, nil); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := r.Register(userID, nil); err != ErrAlreadyConnected {
		t.Fatalf("second register: got %v, want ErrAlreadyConnected", err)
	}
}

func TestRegistryAllowsDuplicatesWhenConfigured(t *testing.T) {
	r := NewRegistry(testLogger(), true)
	userID := uuid.New()

	if err := r.Register(userID, nil); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := r.Register(userID, nil); err != nil {
		t.Fatalf("second register: %v", err)
	}
	if r.CountOnline() != 1 {
		t.Fatalf("CountOnline = %d, want 1", r.CountOnline())
	}
}

func TestRegistryCountsDistinctUsers(t *testing.T) {
	r := NewRegistry(testLogger(), false)
	a, b := uuid.New(), uuid.New()

	r.Register(a, nil)
	r.Register(b, nil)
	if r.CountOnline() != 2 {
		t.Fatalf("CountOnline = %d, want 2", r.CountOnline())
	}

	r.Unregister(a, nil)
	if r.CountOnline() != 1 {
		t.Fatalf("CountOnline after unregister = %d, want 1", r.CountOnline())
	}
	if r.Connected(a) {
		t.Fatal("user a still reported connected")
	}
	if !r.Connected(b) {
		t.Fatal("user b no longer reported connected")
	}
}

func TestRegistrySendToUnknownUserIsNoOp(t *testing.T) {
	r := NewRegistry(testLogger(), false)
	if err := r.SendTo(context.Background(), uuid.New(), PongNotice{Action: actionPong}); err != nil {
		t.Fatalf("SendTo: %v", err)
	}
}
