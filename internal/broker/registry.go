package broker

type membershipKind int

const (
	memberNone membershipKind = iota
	memberQueued
	memberSession
	memberRoom
)

func (k membershipKind) String() string {
	switch k {
	case memberQueued:
		return "queued"
	case memberSession:
		return "session"
	case memberRoom:
		return "room"
	default:
		return "none"
	}
}

// membership records where a connection is currently engaged. A connection
// holds at most one membership at a time; id is the session or room id and
// empty for the queue.
type membership struct {
	kind membershipKind
	id   string
}

// registry is the single source of truth for live connections and their
// current engagement. It is owned by the dispatcher goroutine and is not
// safe for concurrent use.
type registry struct {
	conns       map[string]*Client
	memberships map[string]membership
}

func newRegistry() *registry {
	return &registry{
		conns:       make(map[string]*Client),
		memberships: make(map[string]membership),
	}
}

func (r *registry) register(c *Client) {
	r.conns[c.id] = c
	r.memberships[c.id] = membership{kind: memberNone}
}

// unregister removes the connection and returns the membership it held so
// the owning subsystem can clean up. Unregistering an unknown connection
// is a no-op.
func (r *registry) unregister(connId string) (membership, bool) {
	if _, ok := r.conns[connId]; !ok {
		return membership{}, false
	}

	m := r.memberships[connId]
	delete(r.conns, connId)
	delete(r.memberships, connId)
	return m, true
}

func (r *registry) client(connId string) (*Client, bool) {
	c, ok := r.conns[connId]
	return c, ok
}

func (r *registry) membership(connId string) membership {
	return r.memberships[connId]
}

func (r *registry) setMembership(connId string, m membership) {
	if _, ok := r.conns[connId]; ok {
		r.memberships[connId] = m
	}
}

func (r *registry) clearMembership(connId string) {
	if _, ok := r.conns[connId]; ok {
		r.memberships[connId] = membership{kind: memberNone}
	}
}

func (r *registry) engaged(connId string) bool {
	return r.memberships[connId].kind != memberNone
}

func (r *registry) count() int {
	return len(r.conns)
}
