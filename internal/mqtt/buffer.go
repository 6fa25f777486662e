package mqtt

import "log"

// pendingMsg is a serialized message held while the broker is unreachable.
type pendingMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// outbox is a fixed-capacity FIFO of pending messages. When full, the oldest
// message is dropped. Not safe for concurrent use; RealPublisher guards it.
type outbox struct {
	msgs    []pendingMsg
	next    int // next write slot
	size    int
	dropped int // messages lost since the last flush
}

func newOutbox(capacity int) *outbox {
	if capacity < 1 {
		capacity = 1
	}
	return &outbox{msgs: make([]pendingMsg, capacity)}
}

func (o *outbox) add(msg pendingMsg) {
	capacity := len(o.msgs)
	if o.size == capacity {
		if o.dropped == 0 {
			log.Printf("mqtt: outbox full (%d messages), dropping oldest", capacity)
		}
		o.dropped++
	} else {
		o.size++
	}
	o.msgs[o.next] = msg
	o.next = (o.next + 1) % capacity
}

// flush returns the pending messages oldest first and empties the outbox.
func (o *outbox) flush() []pendingMsg {
	if o.size == 0 {
		return nil
	}
	capacity := len(o.msgs)
	out := make([]pendingMsg, 0, o.size)
	first := (o.next - o.size + capacity) % capacity
	for i := 0; i < o.size; i++ {
		out = append(out, o.msgs[(first+i)%capacity])
	}
	if o.dropped > 0 {
		log.Printf("mqtt: %d messages were dropped while offline", o.dropped)
	}
	o.next, o.size, o.dropped = 0, 0, 0
	return out
}

func (o *outbox) len() int {
	return o.size
}
