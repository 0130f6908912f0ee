package app

import (
	"testing"

	"github.com/jaehyeon2650/bootcamp-buddy-up/internal/domain"
)

func TestHubSequencePerRoom(t *testing.T) {
	h := NewHub(8, nil)
	a := h.Subscribe("r1", "u")
	b := h.Subscribe("r2", "u")

	h.Publish(domain.NewScreenShareEvent("r1", ""))
	h.Publish(domain.NewScreenShareEvent("r2", ""))
	h.Publish(domain.NewScreenShareEvent("r1", ""))

	evsA := drain(a)
	if len(evsA) != 2 || evsA[0].Seq != 1 || evsA[1].Seq != 2 {
		t.Errorf("r1 events = %+v, want seq 1,2", evsA)
	}
	evsB := drain(b)
	if len(evsB) != 1 || evsB[0].Seq != 1 {
		t.Errorf("r2 events = %+v, want seq 1", evsB)
	}
}

func TestHubKindFilter(t *testing.T) {
	h := NewHub(8, nil)
	sub := h.Subscribe("r", "u", domain.EventRoomStateChanged)
	h.Publish(domain.NewMessageEvent("r", domain.Message{ID: 1}))
	h.Publish(domain.NewRoomEvent(domain.Room{ID: "r"}))
	got := drain(sub)
	if len(got) != 1 || got[0].Kind != domain.EventRoomStateChanged {
		t.Errorf("got %v, want only the room event", kinds(got))
	}
	// Filtered events still consume sequence numbers.
	if got[0].Seq != 2 {
		t.Errorf("Seq = %d, want 2", got[0].Seq)
	}
}

func TestHubPublishToTargetsOneUser(t *testing.T) {
	h := NewHub(8, nil)
	a := h.Subscribe("r", "a")
	b := h.Subscribe("r", "b")
	h.PublishTo(domain.NewSignalEvent("r", domain.SignalPayload{To: "a"}), "a")
	if n := len(drain(a)); n != 1 {
		t.Errorf("a got %d events, want 1", n)
	}
	if n := len(drain(b)); n != 0 {
		t.Errorf("b got %d events, want 0", n)
	}
}

func TestHubKicksSlowSubscriber(t *testing.T) {
	h := NewHub(2, SimplePolicy{})
	slow := h.Subscribe("r", "slow")
	fast := h.Subscribe("r", "fast")

	for range 3 {
		h.Publish(domain.NewScreenShareEvent("r", ""))
		drain(fast)
	}
	if !slow.Kicked() || !slow.Lagged() {
		t.Fatalf("slow subscriber Kicked=%v Lagged=%v, want both", slow.Kicked(), slow.Lagged())
	}
	// Buffered events are still delivered before the channel reports closed.
	if n := len(drain(slow)); n != 2 {
		t.Errorf("slow drained %d events, want 2", n)
	}
	if _, ok := <-slow.C(); ok {
		t.Errorf("slow channel still open")
	}
	if fast.Kicked() {
		t.Errorf("fast subscriber kicked")
	}
	stats := h.Stats()
	if stats.Kicked != 1 || stats.Dropped != 1 || stats.Subscribers != 1 {
		t.Errorf("Stats() = %+v", stats)
	}
}

type markSlowPolicy struct{}

func (markSlowPolicy) OnBackPressure(*Subscription) BackpressureAction { return MarkSlow }

func TestHubMarkSlowKeepsSubscriber(t *testing.T) {
	h := NewHub(1, markSlowPolicy{})
	sub := h.Subscribe("r", "u")
	h.Publish(domain.NewScreenShareEvent("r", ""))
	h.Publish(domain.NewScreenShareEvent("r", ""))
	if sub.Kicked() || !sub.Lagged() {
		t.Errorf("Kicked=%v Lagged=%v, want lagged only", sub.Kicked(), sub.Lagged())
	}
	if h.SubscriberCount("r") != 1 {
		t.Errorf("SubscriberCount() = %d, want 1", h.SubscriberCount("r"))
	}
}

func TestHubUnsubscribeAndForget(t *testing.T) {
	h := NewHub(4, nil)
	a := h.Subscribe("r", "a")
	b := h.Subscribe("r", "b")
	h.Unsubscribe(a)
	h.Unsubscribe(a)
	if _, ok := <-a.C(); ok {
		t.Errorf("unsubscribed channel still open")
	}
	h.Publish(domain.NewScreenShareEvent("r", ""))
	h.Forget("r")
	if n := len(drain(b)); n != 1 {
		t.Errorf("b drained %d events after Forget, want 1", n)
	}
	if h.SubscriberCount("r") != 0 {
		t.Errorf("SubscriberCount() = %d after Forget", h.SubscriberCount("r"))
	}
	// Sequence restarts once the room is forgotten.
	c := h.Subscribe("r", "c")
	h.Publish(domain.NewScreenShareEvent("r", ""))
	if evs := drain(c); len(evs) != 1 || evs[0].Seq != 1 {
		t.Errorf("events after Forget = %+v, want seq 1", evs)
	}
}
