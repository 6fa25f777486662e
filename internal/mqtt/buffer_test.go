package mqtt

import (
	"testing"
)

func TestOutboxEmptyFlush(t *testing.T) {
	o := newOutbox(10)
	if got := o.flush(); got != nil {
		t.Errorf("expected nil from empty flush, got %d items", len(got))
	}
}

func TestOutboxAddAndFlush(t *testing.T) {
	o := newOutbox(10)
	for i := 0; i < 5; i++ {
		o.add(pendingMsg{topic: "t", payload: []byte{byte(i)}})
	}

	got := o.flush()
	if len(got) != 5 {
		t.Fatalf("expected 5 items, got %d", len(got))
	}
	for i := 0; i < 5; i++ {
		if got[i].payload[0] != byte(i) {
			t.Errorf("item %d: expected payload %d, got %d", i, i, got[i].payload[0])
		}
	}

	if got := o.flush(); got != nil {
		t.Errorf("expected nil from second flush, got %d items", len(got))
	}
}

func TestOutboxDropsOldestWhenFull(t *testing.T) {
	o := newOutbox(5)

	// 0..7 in, the most recent 5 (3..7) survive.
	for i := 0; i < 8; i++ {
		o.add(pendingMsg{topic: "t", payload: []byte{byte(i)}})
	}
	if o.dropped != 3 {
		t.Errorf("expected 3 dropped, got %d", o.dropped)
	}

	got := o.flush()
	if len(got) != 5 {
		t.Fatalf("expected 5 items, got %d", len(got))
	}
	for i := 0; i < 5; i++ {
		want := byte(i + 3)
		if got[i].payload[0] != want {
			t.Errorf("item %d: expected payload %d, got %d", i, want, got[i].payload[0])
		}
	}
	if o.dropped != 0 {
		t.Errorf("expected dropped reset by flush, got %d", o.dropped)
	}
}

func TestOutboxWrapsAcrossCycles(t *testing.T) {
	o := newOutbox(5)
	for i := 0; i < 3; i++ {
		o.add(pendingMsg{payload: []byte{byte(i)}})
	}
	o.flush()

	for i := 10; i < 14; i++ {
		o.add(pendingMsg{payload: []byte{byte(i)}})
	}
	got := o.flush()
	if len(got) != 4 {
		t.Fatalf("expected 4 items, got %d", len(got))
	}
	for i, msg := range got {
		if msg.payload[0] != byte(10+i) {
			t.Errorf("item %d: expected %d, got %d", i, 10+i, msg.payload[0])
		}
	}
}

func TestOutboxMinimumCapacity(t *testing.T) {
	o := newOutbox(0)
	o.add(pendingMsg{payload: []byte{1}})
	o.add(pendingMsg{payload: []byte{2}})

	got := o.flush()
	if len(got) != 1 || got[0].payload[0] != 2 {
		t.Errorf("expected only the newest message, got %v", got)
	}
}

func TestOutboxPreservesFields(t *testing.T) {
	o := newOutbox(10)
	o.add(pendingMsg{
		topic:    "habit/test",
		payload:  []byte(`{"test":true}`),
		qos:      1,
		retained: true,
	})
	if o.len() != 1 {
		t.Errorf("expected len 1, got %d", o.len())
	}

	got := o.flush()
	if len(got) != 1 {
		t.Fatalf("expected 1 item, got %d", len(got))
	}
	if got[0].topic != "habit/test" {
		t.Errorf("topic: got %s, want habit/test", got[0].topic)
	}
	if string(got[0].payload) != `{"test":true}` {
		t.Errorf("payload: got %s", got[0].payload)
	}
	if got[0].qos != 1 {
		t.Errorf("qos: got %d, want 1", got[0].qos)
	}
	if !got[0].retained {
		t.Error("retained: got false, want true")
	}
}
