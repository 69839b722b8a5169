package broker

import "time"

type queueTicket struct {
	connId        string
	sessionLength time.Duration
	enqueuedAt    time.Time
}

// matchQueue is the strict-FIFO waiting line for surprise pairing. No
// preference-based reordering: the two oldest tickets always pair first.
// Owned by the dispatcher goroutine.
type matchQueue struct {
	tickets []*queueTicket
}

func newMatchQueue() *matchQueue {
	return &matchQueue{}
}

func (q *matchQueue) push(t *queueTicket) {
	q.tickets = append(q.tickets, t)
}

// popPair removes and returns the two oldest tickets. first is the
// earlier-enqueued of the two.
func (q *matchQueue) popPair() (first, second *queueTicket, ok bool) {
	if len(q.tickets) < 2 {
		return nil, nil, false
	}

	first, second = q.tickets[0], q.tickets[1]
	q.tickets = q.tickets[2:]
	return first, second, true
}

// remove drops a still-waiting ticket. Returns false if the connection has
// no ticket, e.g. because it was already paired.
func (q *matchQueue) remove(connId string) bool {
	for i, t := range q.tickets {
		if t.connId == connId {
			q.tickets = append(q.tickets[:i], q.tickets[i+1:]...)
			return true
		}
	}

	return false
}

func (q *matchQueue) len() int {
	return len(q.tickets)
}
