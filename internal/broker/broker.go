package broker

import (
	"context"
	"log"
	"time"

	"github.com/pairpoint/server/internal/config"
	"github.com/pairpoint/server/internal/database"
	"github.com/pairpoint/server/internal/stats"
)

// Broker is the realtime pairing and signaling hub. A single dispatcher
// goroutine owns every map below and handles each inbound event to
// completion before the next one, which is what makes pop-two-and-pair
// and promote-and-renegotiate atomic without locks. Nothing in the
// dispatch path blocks on I/O except the social-ledger calls, which are
// idempotent.
type Broker struct {
	log    *log.Logger
	ledger database.LedgerRepository
	stats  stats.StatsProvider
	cfg    config.BrokerConfig

	reg      *registry
	queue    *matchQueue
	sessions map[string]*pairSession
	rooms    map[string]*liveRoom
	sched    *scheduler

	messages       chan *ClientMessage
	RegisterChan   chan *Client
	deregisterChan chan *Client
	stop           chan struct{}
	done           chan struct{}
}

func NewBroker(logger *log.Logger, ledger database.LedgerRepository, sp stats.StatsProvider, cfg config.BrokerConfig) (*Broker, error) {
	b := &Broker{
		log:            logger,
		ledger:         ledger,
		stats:          sp,
		cfg:            cfg,
		reg:            newRegistry(),
		queue:          newMatchQueue(),
		sessions:       make(map[string]*pairSession),
		rooms:          make(map[string]*liveRoom),
		sched:          newScheduler(),
		messages:       make(chan *ClientMessage, 256),
		RegisterChan:   make(chan *Client),
		deregisterChan: make(chan *Client),
		stop:           make(chan struct{}),
		done:           make(chan struct{}),
	}

	for _, name := range []string{
		stats.ActiveConnections,
		stats.QueueDepth,
		stats.ActiveSessions,
		stats.ActiveRooms,
		stats.MatchesCreated,
		stats.RelayedSignals,
	} {
		sp.RegisterMetric(name)
	}

	return b, nil
}

func (b *Broker) Run() {
	for {
		select {
		case c := <-b.RegisterChan:
			b.addClient(c)
		case c := <-b.deregisterChan:
			b.removeClient(c)
		case msg := <-b.messages:
			b.dispatch(msg)
		case f := <-b.sched.C():
			b.handleSessionTimer(f)
		case <-b.stop:
			b.shutdownClients()
			close(b.done)
			return
		}
	}
}

func (b *Broker) RegisterClient(c *Client) {
	b.RegisterChan <- c
}

func (b *Broker) Shutdown(ctx context.Context) error {
	close(b.stop)

	select {
	case <-b.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// dispatch is the single table from message kind to handler. Every
// transition the broker makes starts here or in a timer fire.
func (b *Broker) dispatch(msg *ClientMessage) {
	switch {
	case msg.JoinQueue != nil:
		b.handleJoinQueue(msg)
	case msg.Signal != nil:
		b.handleSignal(msg)
	case msg.Decision != nil:
		b.handleDecision(msg)
	case msg.CreateRoom != nil:
		b.handleCreateRoom(msg)
	case msg.JoinRoom != nil:
		b.handleJoinRoom(msg)
	case msg.RequestJoin != nil:
		b.handleRequestJoin(msg)
	case msg.ResolveJoin != nil:
		b.handleResolveJoin(msg)
	case msg.Chat != nil:
		b.handleChat(msg)
	case msg.Leave != nil:
		b.handleLeave(msg)
	default:
		msg.client.queueMessage(ErrInvalidMessage(msg.Id))
	}
}

func (b *Broker) addClient(c *Client) {
	b.log.Printf("connection %s admitted for %q", c.id, c.user.DisplayName)
	b.reg.register(c)
	b.stats.Incr(stats.ActiveConnections)
}

// removeClient is the universal cancellation path: it runs identically for
// transport errors and explicit closes, and removes the connection from
// whichever structure holds it before returning. Idempotent.
func (b *Broker) removeClient(c *Client) {
	m, ok := b.reg.unregister(c.id)
	if !ok {
		return
	}

	b.log.Printf("connection %s removed (%s)", c.id, m.kind)
	b.stats.Decr(stats.ActiveConnections)

	switch m.kind {
	case memberQueued:
		if b.queue.remove(c.id) {
			b.stats.Decr(stats.QueueDepth)
		}
	case memberSession:
		b.sessionDisconnect(m.id, c.id)
	case memberRoom:
		b.leaveRoom(m.id, c.id, true)
	}
}

func (b *Broker) handleJoinQueue(msg *ClientMessage) {
	c := msg.client
	if b.reg.engaged(c.id) {
		c.queueMessage(ErrAlreadyEngaged(msg.Id))
		return
	}

	c.queueMessage(NoErrAccepted(msg.Id))
	b.admitTicket(c, time.Duration(msg.JoinQueue.SessionLengthSeconds)*time.Second)
}

// admitTicket appends a ticket and immediately pairs the two oldest ones
// when the queue can support it. Also the re-admission path after a skip.
func (b *Broker) admitTicket(c *Client, pref time.Duration) {
	t := &queueTicket{
		connId:        c.id,
		sessionLength: b.clampSessionLength(pref),
		enqueuedAt:    time.Now(),
	}

	b.queue.push(t)
	b.reg.setMembership(c.id, membership{kind: memberQueued})
	b.stats.Incr(stats.QueueDepth)

	if first, second, ok := b.queue.popPair(); ok {
		b.stats.Decr(stats.QueueDepth)
		b.stats.Decr(stats.QueueDepth)
		b.startSession(first, second)
	}
}

func (b *Broker) clampSessionLength(pref time.Duration) time.Duration {
	switch {
	case pref <= 0:
		return b.cfg.DefaultSessionLength
	case pref < b.cfg.MinSessionLength:
		return b.cfg.MinSessionLength
	case pref > b.cfg.MaxSessionLength:
		return b.cfg.MaxSessionLength
	default:
		return pref
	}
}

// handleLeave is an explicit departure from the current engagement. Unlike
// a disconnect the connection stays registered, free to re-engage.
func (b *Broker) handleLeave(msg *ClientMessage) {
	c := msg.client
	m := b.reg.membership(c.id)

	switch m.kind {
	case memberQueued:
		if b.queue.remove(c.id) {
			b.stats.Decr(stats.QueueDepth)
		}
		b.reg.clearMembership(c.id)
	case memberSession:
		b.sessionDisconnect(m.id, c.id)
	case memberRoom:
		b.leaveRoom(m.id, c.id, true)
	}

	c.queueMessage(NoErrOK(msg.Id, nil))
}

func (b *Broker) shutdownClients() {
	b.log.Println("shutting down broker, closing connections")
	for _, r := range b.rooms {
		b.closeRoom(r)
	}
	for id, c := range b.reg.conns {
		c.stopClient()
		delete(b.reg.conns, id)
		delete(b.reg.memberships, id)
	}
}
