package events

import "testing"

func TestSanitizeStripsMarkup(t *testing.T) {
	e := Event{Type: TypeStatus, Text: "<script>alert(1)</script>hello"}
	got := e.Sanitize()
	if got.Text != "hello" {
		t.Errorf("Sanitize().Text = %q, want %q", got.Text, "hello")
	}
}

func TestBroadcasterFansOut(t *testing.T) {
	b := NewBroadcaster()
	var a, c int
	idA := b.Subscribe(SinkFunc(func(Event) { a++ }))
	idC := b.Subscribe(SinkFunc(func(Event) { c++ }))

	b.Emit(Event{Type: TypeHeartbeat, Count: 1})
	if a != 1 || c != 1 {
		t.Fatalf("a=%d c=%d, want both 1", a, c)
	}

	b.Unsubscribe(idA)
	b.Emit(Event{Type: TypeHeartbeat, Count: 2})
	if a != 1 || c != 2 {
		t.Errorf("after unsubscribe a=%d c=%d, want a=1 c=2", a, c)
	}
	_ = idC
}
