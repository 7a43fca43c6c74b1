package notify

import "testing"

func TestPublishReachesSubscriber(t *testing.T) {
	h := NewHub(8)
	_, ch, cancel := h.Subscribe(0)
	defer cancel()

	h.Publish(KindPasswordMissing, "AA:BB")

	n := <-ch
	if n.Kind != KindPasswordMissing {
		t.Fatalf("kind = %q, want %q", n.Kind, KindPasswordMissing)
	}
	if n.Seq != 1 {
		t.Fatalf("seq = %d, want 1", n.Seq)
	}
}

func TestSubscribeReplaysHistoryFromSeq(t *testing.T) {
	h := NewHub(8)
	h.Publish(KindDeviceOnboarded, "one")
	h.Publish(KindResetRequired, "two")
	h.Publish(KindAuthResult, "three")

	backlog, _, cancel := h.Subscribe(1)
	defer cancel()

	if len(backlog) != 2 {
		t.Fatalf("backlog length = %d, want 2", len(backlog))
	}
	if backlog[0].Kind != KindResetRequired || backlog[1].Kind != KindAuthResult {
		t.Fatalf("unexpected backlog order: %v", backlog)
	}
}

func TestHistoryIsBounded(t *testing.T) {
	h := NewHub(2)
	for i := 0; i < 5; i++ {
		h.Publish(KindTransmitterErr, i)
	}
	backlog, _, cancel := h.Subscribe(0)
	defer cancel()
	if len(backlog) != 2 {
		t.Fatalf("backlog length = %d, want 2", len(backlog))
	}
	if backlog[0].Seq != 4 || backlog[1].Seq != 5 {
		t.Fatalf("expected last two events, got seqs %d and %d", backlog[0].Seq, backlog[1].Seq)
	}
}

func TestSlowSubscriberIsDropped(t *testing.T) {
	h := NewHub(4)
	_, ch, cancel := h.Subscribe(0)
	defer cancel()

	// Fill the subscriber buffer and one more to force the drop.
	for i := 0; i < 65; i++ {
		h.Publish(KindAuthResult, i)
	}

	seen := 0
	for range ch {
		seen++
	}
	if seen != 64 {
		t.Fatalf("expected channel closed after 64 buffered events, got %d", seen)
	}
}

func TestNilHubDiscardsPublishes(t *testing.T) {
	var h *Hub
	h.Publish(KindDeviceOnboarded, "ignored")
}
