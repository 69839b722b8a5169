package broker

import "github.com/pairpoint/server/internal/stats"

// handleSignal forwards an opaque negotiation payload to a peer that
// shares a session or room with the sender. At-most-once, fire-and-forget:
// the payload is never inspected, buffered or replayed. A vanished or
// unrelated target degrades to a PartnerUnavailable notice to the sender.
func (b *Broker) handleSignal(msg *ClientMessage) {
	c := msg.client
	sig := msg.Signal
	if sig.ToId == "" || len(sig.Payload) == 0 {
		c.queueMessage(ErrInvalidMessage(msg.Id))
		return
	}

	target, ok := b.reg.client(sig.ToId)
	if !ok || !b.sharesContext(c.id, sig.ToId) {
		c.queueMessage(ErrPartnerUnavailable(msg.Id))
		return
	}

	target.queueMessage(&ServerMessage{
		BaseMessage: BaseMessage{Timestamp: Now()},
		Signal: &Signal{
			FromId:  c.id,
			Payload: sig.Payload,
		},
	})
	b.stats.Incr(stats.RelayedSignals)

	if m := b.reg.membership(c.id); m.kind == memberSession {
		if s, ok := b.sessions[m.id]; ok {
			b.noteSignal(s, c.id)
		}
	}
}

// sharesContext reports whether two connections are in the same session or
// the same room. Relaying is only ever allowed within a shared context.
func (b *Broker) sharesContext(a, peer string) bool {
	ma := b.reg.membership(a)
	mb := b.reg.membership(peer)

	switch {
	case ma.kind == memberSession && mb.kind == memberSession:
		return ma.id == mb.id
	case ma.kind == memberRoom && mb.kind == memberRoom:
		return ma.id == mb.id
	default:
		return false
	}
}
