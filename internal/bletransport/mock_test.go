package bletransport

import (
	"sync"
	"testing"
	"time"

	"wristlink/go-fleet/internal/fleet"
	"wristlink/go-fleet/pkg/models"
)

type captureSink struct {
	mu     sync.Mutex
	events []fleet.Event
}

func (s *captureSink) HandleEvent(ev fleet.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *captureSink) snapshot() []fleet.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]fleet.Event(nil), s.events...)
}

func waitForEvents(t *testing.T, sink *captureSink, n int) []fleet.Event {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if evs := sink.snapshot(); len(evs) >= n {
			return evs
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d events, got %d", n, len(sink.snapshot()))
	return nil
}

func TestMockConnectPresentsPassword(t *testing.T) {
	sink := &captureSink{}
	dev := &models.Device{Address: "AA:BB", Name: "watch", BLEPassword: "pw-123"}
	tx := MockFactory(nil)(dev, sink, dev.BLEPassword)

	if !tx.Connect() {
		t.Fatal("connect should be accepted")
	}
	evs := waitForEvents(t, sink, 3)

	if _, ok := evs[0].(fleet.Connected); !ok {
		t.Fatalf("first event = %T, want Connected", evs[0])
	}
	auth, ok := evs[1].(fleet.AuthenticationResult)
	if !ok {
		t.Fatalf("second event = %T, want AuthenticationResult", evs[1])
	}
	if !auth.Success || auth.Device != dev {
		t.Fatalf("unexpected auth result: %+v", auth)
	}
	if _, ok := evs[2].(fleet.ReadyToReceive); !ok {
		t.Fatalf("third event = %T, want ReadyToReceive", evs[2])
	}
}

func TestMockConnectWithoutPasswordSkipsHandshake(t *testing.T) {
	sink := &captureSink{}
	dev := &models.Device{Address: "AA:BB", Name: "watch"}
	tx := MockFactory(nil)(dev, sink, "")

	if !tx.Connect() {
		t.Fatal("connect should be accepted")
	}
	evs := waitForEvents(t, sink, 2)
	for _, ev := range evs {
		if _, ok := ev.(fleet.AuthenticationResult); ok {
			t.Fatal("no handshake expected without a password")
		}
	}
	if _, ok := evs[1].(fleet.ReadyToReceive); !ok {
		t.Fatalf("second event = %T, want ReadyToReceive", evs[1])
	}
}
