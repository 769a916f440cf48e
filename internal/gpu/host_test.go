//go:build !nogpu

package gpu

import "testing"

func TestNewHost(t *testing.T) {
	h, err := NewHost()
	if err != nil {
		t.Fatalf("NewHost: %v", err)
	}
	defer h.Close()

	if h.Device() == nil {
		t.Error("Device() returned nil after successful NewHost")
	}
	if h.Queue() == nil {
		t.Error("Queue() returned nil after successful NewHost")
	}
}

func TestHostCloseIdempotent(t *testing.T) {
	h, err := NewHost()
	if err != nil {
		t.Fatalf("NewHost: %v", err)
	}
	h.Close()
	h.Close()
}
