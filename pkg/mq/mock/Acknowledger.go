package mock

import "sync"

// Outcome is what a consumer did with a delivery.
type Outcome string

const (
	Acked    Outcome = "ack"
	Nacked   Outcome = "nack"
	Requeued Outcome = "requeue"
	Rejected Outcome = "reject"
)

// Acknowledger implements amqp.Acknowledger and records the outcome of each delivery tag.
type Acknowledger struct {
	mu       sync.Mutex
	tag      uint64
	outcomes map[uint64]Outcome
}

// NewAcknowledger creates an empty Acknowledger.
func NewAcknowledger() *Acknowledger {
	return &Acknowledger{outcomes: make(map[uint64]Outcome)}
}

func (a *Acknowledger) nextTag() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tag++
	return a.tag
}

func (a *Acknowledger) record(tag uint64, o Outcome) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.outcomes[tag] = o
	return nil
}

// Ack implements amqp.Acknowledger.
func (a *Acknowledger) Ack(tag uint64, _ bool) error {
	return a.record(tag, Acked)
}

// Nack implements amqp.Acknowledger.
func (a *Acknowledger) Nack(tag uint64, _ bool, requeue bool) error {
	if requeue {
		return a.record(tag, Requeued)
	}
	return a.record(tag, Nacked)
}

// Reject implements amqp.Acknowledger.
func (a *Acknowledger) Reject(tag uint64, _ bool) error {
	return a.record(tag, Rejected)
}

// Outcome returns what happened to the delivery with tag, or "" if nothing yet.
func (a *Acknowledger) Outcome(tag uint64) Outcome {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.outcomes[tag]
}

// Outcomes returns the outcomes recorded so far, ordered by delivery tag.
func (a *Acknowledger) Outcomes() []Outcome {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]Outcome, 0, len(a.outcomes))
	for tag := uint64(1); tag <= a.tag; tag++ {
		if o, ok := a.outcomes[tag]; ok {
			out = append(out, o)
		}
	}
	return out
}
