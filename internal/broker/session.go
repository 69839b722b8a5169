package broker

import (
	"time"

	"github.com/pairpoint/server/internal/stats"
	"github.com/pairpoint/server/internal/types"
	"github.com/teris-io/shortid"
)

type sessionState int

const (
	sessionNegotiating sessionState = iota
	sessionActive
	sessionDecisionPending
	sessionClosed
)

func (s sessionState) String() string {
	switch s {
	case sessionNegotiating:
		return "negotiating"
	case sessionActive:
		return "active"
	case sessionDecisionPending:
		return "decision-pending"
	default:
		return "closed"
	}
}

type decision string

const (
	decisionLike    decision = "like"
	decisionDislike decision = "dislike"
	decisionSkip    decision = "skip"
)

func parseDecision(s string) (decision, bool) {
	switch decision(s) {
	case decisionLike, decisionDislike, decisionSkip:
		return decision(s), true
	default:
		return "", false
	}
}

// pairSession is a timed one-on-one encounter between two connections.
// firstId is the earlier-enqueued side; its length preference won the
// tie-break. The later-enqueued side is the initiator, so the two peers
// never offer simultaneously.
type pairSession struct {
	id          string
	firstId     string
	secondId    string
	initiatorId string
	state       sessionState
	length      time.Duration
	startedAt   time.Time
	// skipOpensAfter is the elapsed time after which an early skip is
	// accepted. Zero means skip is available from the start.
	skipOpensAfter time.Duration
	// prefs keeps each side's original length preference for re-admission
	// to the queue after a skip.
	prefs      map[string]time.Duration
	users      map[string]types.User
	signalSeen map[string]bool
	decisions  map[string]decision
	// departedId marks a side that left or vanished mid-protocol; that
	// side is never re-admitted to the queue.
	departedId string
	gen        uint64
}

func (s *pairSession) has(connId string) bool {
	return connId == s.firstId || connId == s.secondId
}

func (s *pairSession) partnerOf(connId string) string {
	if connId == s.firstId {
		return s.secondId
	}
	return s.firstId
}

func (s *pairSession) skipAllowed(now time.Time) bool {
	return now.Sub(s.startedAt) >= s.skipOpensAfter
}

func (s *pairSession) bothDecided() bool {
	return len(s.decisions) == 2
}

// skipOffset computes when the skip window opens. The window is the
// smaller of the cap and a quarter of the session; for sessions shorter
// than the window the offset clamps to zero, i.e. skip is available
// immediately.
func skipOffset(length, windowCap time.Duration) time.Duration {
	window := length / 4
	if windowCap < window {
		window = windowCap
	}

	offset := length - window
	if offset < 0 {
		offset = 0
	}
	return offset
}

// startSession atomically turns two popped tickets into a live session.
// Both connections are re-homed from the queue to the session before any
// notification goes out.
func (b *Broker) startSession(first, second *queueTicket) {
	fc, fok := b.reg.client(first.connId)
	sc, sok := b.reg.client(second.connId)
	if !fok || !sok {
		// Should not happen: tickets are removed on disconnect. Put the
		// survivor back at the head of the line.
		b.log.Printf("pairing with missing connection (%s, %s)", first.connId, second.connId)
		if fok {
			b.queue.tickets = append([]*queueTicket{first}, b.queue.tickets...)
		}
		if sok {
			b.queue.tickets = append([]*queueTicket{second}, b.queue.tickets...)
		}
		return
	}

	s := &pairSession{
		id:          shortid.MustGenerate(),
		firstId:     first.connId,
		secondId:    second.connId,
		initiatorId: second.connId,
		state:       sessionNegotiating,
		length:      first.sessionLength,
		startedAt:   time.Now(),
		prefs: map[string]time.Duration{
			first.connId:  first.sessionLength,
			second.connId: second.sessionLength,
		},
		users: map[string]types.User{
			first.connId:  fc.user,
			second.connId: sc.user,
		},
		signalSeen: make(map[string]bool),
		decisions:  make(map[string]decision),
		gen:        1,
	}
	s.skipOpensAfter = skipOffset(s.length, b.cfg.SkipWindowCap)

	b.sessions[s.id] = s
	b.reg.setMembership(first.connId, membership{kind: memberSession, id: s.id})
	b.reg.setMembership(second.connId, membership{kind: memberSession, id: s.id})
	b.stats.Incr(stats.ActiveSessions)

	b.sched.schedule(s.length, timerSessionEnd, s.id, s.gen)

	lengthSecs := int(s.length / time.Second)
	fc.queueMessage(&ServerMessage{
		BaseMessage: BaseMessage{Timestamp: Now()},
		PartnerFound: &PartnerFound{
			SessionId:            s.id,
			PartnerId:            second.connId,
			PartnerDisplayName:   sc.user.DisplayName,
			Initiator:            false,
			SessionLengthSeconds: lengthSecs,
		},
	})
	sc.queueMessage(&ServerMessage{
		BaseMessage: BaseMessage{Timestamp: Now()},
		PartnerFound: &PartnerFound{
			SessionId:            s.id,
			PartnerId:            first.connId,
			PartnerDisplayName:   fc.user.DisplayName,
			Initiator:            true,
			SessionLengthSeconds: lengthSecs,
		},
	})

	b.log.Printf("session %s paired %s with %s (length %s)", s.id, first.connId, second.connId, s.length)
}

// noteSignal promotes a negotiating session to active once both sides have
// relayed at least one payload. The countdown is already running; the
// promotion only matters for the state machine.
func (b *Broker) noteSignal(s *pairSession, fromId string) {
	if s.state != sessionNegotiating {
		return
	}

	s.signalSeen[fromId] = true
	if s.signalSeen[s.firstId] && s.signalSeen[s.secondId] {
		s.state = sessionActive
	}
}

func (b *Broker) handleDecision(msg *ClientMessage) {
	c := msg.client
	m := b.reg.membership(c.id)
	if m.kind != memberSession {
		c.queueMessage(ErrSessionNotFound(msg.Id))
		return
	}

	s, ok := b.sessions[m.id]
	if !ok {
		c.queueMessage(ErrSessionNotFound(msg.Id))
		return
	}

	choice, ok := parseDecision(msg.Decision.Choice)
	if !ok {
		c.queueMessage(ErrInvalidMessage(msg.Id))
		return
	}

	switch s.state {
	case sessionNegotiating, sessionActive:
		if choice != decisionSkip {
			c.queueMessage(ErrDecisionNotOpen(msg.Id))
			return
		}
		if !s.skipAllowed(time.Now()) {
			c.queueMessage(ErrDecisionNotOpen(msg.Id))
			return
		}

		// Early skip ends the encounter for both sides immediately; the
		// silent partner is treated as a skip and both go back to the pool.
		s.decisions[c.id] = decisionSkip
		partner := s.partnerOf(c.id)
		if _, decided := s.decisions[partner]; !decided {
			s.decisions[partner] = decisionSkip
		}
		c.queueMessage(NoErrAccepted(msg.Id))
		b.resolveSession(s)
	case sessionDecisionPending:
		if _, decided := s.decisions[c.id]; decided {
			c.queueMessage(ErrDecisionNotOpen(msg.Id))
			return
		}

		s.decisions[c.id] = choice
		c.queueMessage(NoErrAccepted(msg.Id))
		if s.bothDecided() {
			b.resolveSession(s)
		}
	default:
		c.queueMessage(ErrSessionNotFound(msg.Id))
	}
}

func (b *Broker) handleSessionTimer(f timerFire) {
	s, ok := b.sessions[f.id]
	if !ok || s.gen != f.gen {
		return
	}

	switch f.kind {
	case timerSessionEnd:
		s.state = sessionDecisionPending
		s.gen++
		b.sched.schedule(b.cfg.DecisionWindow, timerDecisionEnd, s.id, s.gen)
	case timerDecisionEnd:
		// Silent sides are recorded as skips.
		for _, id := range []string{s.firstId, s.secondId} {
			if _, decided := s.decisions[id]; !decided {
				s.decisions[id] = decisionSkip
			}
		}
		b.resolveSession(s)
	}
}

// resolveSession closes the session with both decisions recorded, settles
// the outcome against the social ledger and re-admits skippers to the
// queue.
func (b *Broker) resolveSession(s *pairSession) {
	b.retireSession(s)

	matched := b.settleLedger(s)

	for _, connId := range []string{s.firstId, s.secondId} {
		c, ok := b.reg.client(connId)
		if !ok {
			continue
		}

		outcome := &DecisionOutcome{Matched: matched[connId]}
		if matched[connId] {
			outcome.PartnerId = s.partnerOf(connId)
		}
		c.queueMessage(&ServerMessage{
			BaseMessage:     BaseMessage{Timestamp: Now()},
			DecisionOutcome: outcome,
		})

		if s.decisions[connId] == decisionSkip && connId != s.departedId {
			b.admitTicket(c, s.prefs[connId])
		}
	}
}

// settleLedger records this session's likes and settles mutuality against
// the ledger. The ledger, not the session, is authoritative: a like whose
// reciprocal was recorded in an earlier encounter still completes the
// match, even when the partner skipped or disliked this time. Returns the
// per-connection match outcome; a ledger failure degrades to "no match
// recorded", nothing in session state is corrupted.
func (b *Broker) settleLedger(s *pairSession) map[string]bool {
	matched := make(map[string]bool)

	var likers []string
	for _, connId := range []string{s.firstId, s.secondId} {
		if s.decisions[connId] != decisionLike {
			continue
		}

		partner := s.users[s.partnerOf(connId)]
		if err := b.ledger.CreateLike(s.users[connId].Id, partner.Id); err != nil {
			b.log.Printf("ledger unavailable, like %d -> %d dropped: %v", s.users[connId].Id, partner.Id, err)
			return matched
		}
		likers = append(likers, connId)
	}

	// Both likes are on the books before any mutuality read, so an
	// in-session mutual pair settles the same way a cross-encounter one
	// does.
	for _, connId := range likers {
		partner := s.users[s.partnerOf(connId)]
		if b.ledger.LikeExists(partner.Id, s.users[connId].Id) {
			matched[connId] = true
		}
	}

	if len(matched) == 0 {
		return matched
	}

	if _, err := b.ledger.CreateMatch(s.users[s.firstId].Id, s.users[s.secondId].Id); err != nil {
		b.log.Printf("ledger unavailable, match %d/%d dropped: %v", s.users[s.firstId].Id, s.users[s.secondId].Id, err)
		return make(map[string]bool)
	}

	b.stats.Incr(stats.MatchesCreated)
	return matched
}

// retireSession moves a session to its terminal state and releases both
// memberships. Bumping the generation orphans any timer still in flight.
func (b *Broker) retireSession(s *pairSession) {
	s.state = sessionClosed
	s.gen++
	delete(b.sessions, s.id)
	b.stats.Decr(stats.ActiveSessions)
	b.reg.clearMembership(s.firstId)
	b.reg.clearMembership(s.secondId)
}

// sessionDisconnect tears a session down because one side vanished. A
// disconnect during the decision window closes the window early: the
// vanished side is recorded as a skip and the decisions on file settle,
// so a like the survivor already submitted still reaches the ledger. In
// any earlier state nothing is resolved; the survivor is notified and
// left unengaged.
func (b *Broker) sessionDisconnect(sessionId, connId string) {
	s, ok := b.sessions[sessionId]
	if !ok {
		return
	}

	partnerId := s.partnerOf(connId)

	if s.state == sessionDecisionPending {
		s.departedId = connId
		for _, id := range []string{s.firstId, s.secondId} {
			if _, decided := s.decisions[id]; !decided {
				s.decisions[id] = decisionSkip
			}
		}
		if pc, ok := b.reg.client(partnerId); ok {
			pc.queueMessage(&ServerMessage{
				BaseMessage:         BaseMessage{Timestamp: Now()},
				PartnerDisconnected: &PartnerDisconnected{},
			})
		}
		b.resolveSession(s)
		return
	}

	b.retireSession(s)

	if pc, ok := b.reg.client(partnerId); ok {
		pc.queueMessage(&ServerMessage{
			BaseMessage:         BaseMessage{Timestamp: Now()},
			PartnerDisconnected: &PartnerDisconnected{},
		})
	}
}
