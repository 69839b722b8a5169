package broker

import (
	"github.com/google/uuid"
	"github.com/pairpoint/server/internal/stats"
	"github.com/teris-io/shortid"
)

type roomState int

const (
	roomOpen roomState = iota
	roomClosed
)

type joinRequest struct {
	id          string
	roomId      string
	requesterId string
}

// liveRoom is a one-to-many broadcast with a promotable audience. viewers
// holds every attached connection including the owner and all promoted
// participants; participants is the subset with bidirectional media, and
// always contains the owner.
type liveRoom struct {
	id           string
	ownerId      string
	viewers      map[string]struct{}
	participants map[string]struct{}
	pendingOrder []string
	pending      map[string]*joinRequest
	state        roomState
	gen          uint64
}

func (r *liveRoom) isViewer(connId string) bool {
	_, ok := r.viewers[connId]
	return ok
}

func (r *liveRoom) isParticipant(connId string) bool {
	_, ok := r.participants[connId]
	return ok
}

// viewerCount counts the passive audience: attached connections that are
// not the owner and not promoted participants.
func (r *liveRoom) viewerCount() int {
	return len(r.viewers) - len(r.participants)
}

func (r *liveRoom) addRequest(req *joinRequest) {
	r.pending[req.id] = req
	r.pendingOrder = append(r.pendingOrder, req.id)
}

func (r *liveRoom) removeRequest(requestId string) {
	delete(r.pending, requestId)
	for i, id := range r.pendingOrder {
		if id == requestId {
			r.pendingOrder = append(r.pendingOrder[:i], r.pendingOrder[i+1:]...)
			return
		}
	}
}

func (r *liveRoom) requestByConn(connId string) *joinRequest {
	for _, id := range r.pendingOrder {
		if r.pending[id].requesterId == connId {
			return r.pending[id]
		}
	}
	return nil
}

func (b *Broker) handleCreateRoom(msg *ClientMessage) {
	c := msg.client
	if b.reg.engaged(c.id) {
		c.queueMessage(ErrAlreadyEngaged(msg.Id))
		return
	}

	r := &liveRoom{
		id:           shortid.MustGenerate(),
		ownerId:      c.id,
		viewers:      map[string]struct{}{c.id: {}},
		participants: map[string]struct{}{c.id: {}},
		pending:      make(map[string]*joinRequest),
		state:        roomOpen,
		gen:          1,
	}

	b.rooms[r.id] = r
	b.reg.setMembership(c.id, membership{kind: memberRoom, id: r.id})
	b.stats.Incr(stats.ActiveRooms)

	c.queueMessage(NoErrOK(msg.Id, map[string]any{"room_id": r.id}))
	b.log.Printf("room %s opened by %s", r.id, c.id)
}

func (b *Broker) handleJoinRoom(msg *ClientMessage) {
	c := msg.client
	if b.reg.engaged(c.id) {
		c.queueMessage(ErrAlreadyEngaged(msg.Id))
		return
	}

	r, ok := b.rooms[msg.JoinRoom.RoomId]
	if !ok || r.state != roomOpen {
		c.queueMessage(ErrRoomNotFound(msg.Id))
		return
	}

	r.viewers[c.id] = struct{}{}
	b.reg.setMembership(c.id, membership{kind: memberRoom, id: r.id})

	c.queueMessage(NoErrOK(msg.Id, map[string]any{
		"room_id":      r.id,
		"viewer_count": r.viewerCount(),
	}))

	// The owner opens a send-only negotiation toward the new viewer; the
	// viewer only answers through the relay.
	if owner, ok := b.reg.client(r.ownerId); ok {
		owner.queueMessage(&ServerMessage{
			BaseMessage: BaseMessage{Timestamp: Now()},
			Negotiate: &Negotiate{
				RoomId:      r.id,
				PeerId:      c.id,
				ReceiveOnly: true,
			},
		})
	}
}

func (b *Broker) handleRequestJoin(msg *ClientMessage) {
	c := msg.client
	r, ok := b.rooms[msg.RequestJoin.RoomId]
	if !ok || r.state != roomOpen {
		c.queueMessage(ErrRoomNotFound(msg.Id))
		return
	}

	if !r.isViewer(c.id) || r.isParticipant(c.id) {
		c.queueMessage(ErrInvalidMessage(msg.Id))
		return
	}

	// At most one pending request per viewer; re-requesting returns the
	// original id.
	if existing := r.requestByConn(c.id); existing != nil {
		c.queueMessage(NoErrOK(msg.Id, map[string]any{"request_id": existing.id}))
		return
	}

	req := &joinRequest{
		id:          uuid.NewString(),
		roomId:      r.id,
		requesterId: c.id,
	}
	r.addRequest(req)

	c.queueMessage(NoErrOK(msg.Id, map[string]any{"request_id": req.id}))

	if owner, ok := b.reg.client(r.ownerId); ok {
		owner.queueMessage(&ServerMessage{
			BaseMessage: BaseMessage{Timestamp: Now()},
			JoinRequested: &JoinRequested{
				RequestId:            req.id,
				RoomId:               r.id,
				RequesterId:          c.id,
				RequesterDisplayName: c.user.DisplayName,
			},
		})
	}
}

func (b *Broker) handleResolveJoin(msg *ClientMessage) {
	c := msg.client
	m := b.reg.membership(c.id)
	if m.kind != memberRoom {
		c.queueMessage(ErrRoomNotFound(msg.Id))
		return
	}

	r, ok := b.rooms[m.id]
	if !ok {
		c.queueMessage(ErrRoomNotFound(msg.Id))
		return
	}

	if r.ownerId != c.id {
		c.queueMessage(ErrNotAuthorized(msg.Id))
		return
	}

	req, ok := r.pending[msg.ResolveJoin.RequestId]
	if !ok {
		c.queueMessage(ErrRequestNotFound(msg.Id))
		return
	}

	r.removeRequest(req.id)

	requester, present := b.reg.client(req.requesterId)

	if !msg.ResolveJoin.Accept {
		c.queueMessage(NoErrOK(msg.Id, nil))
		if present {
			requester.queueMessage(&ServerMessage{
				BaseMessage: BaseMessage{Timestamp: Now()},
				JoinResolved: &JoinResolved{
					RequestId: req.id,
					RoomId:    r.id,
					Accepted:  false,
				},
			})
		}
		return
	}

	if !present || !r.isViewer(req.requesterId) {
		// Requester left between requesting and resolution.
		c.queueMessage(ErrRequestNotFound(msg.Id))
		return
	}

	if len(r.participants) >= b.cfg.MaxRoomParticipants {
		c.queueMessage(ErrRoomFull(msg.Id))
		requester.queueMessage(&ServerMessage{
			BaseMessage: BaseMessage{Timestamp: Now()},
			JoinResolved: &JoinResolved{
				RequestId: req.id,
				RoomId:    r.id,
				Accepted:  false,
			},
		})
		return
	}

	others := make([]string, 0, len(r.participants))
	for id := range r.participants {
		others = append(others, id)
	}

	r.participants[req.requesterId] = struct{}{}
	c.queueMessage(NoErrOK(msg.Id, nil))

	// The promoted participant initiates a mesh negotiation toward every
	// existing participant; answers come back through the relay.
	requester.queueMessage(&ServerMessage{
		BaseMessage: BaseMessage{Timestamp: Now()},
		JoinResolved: &JoinResolved{
			RequestId:           req.id,
			RoomId:              r.id,
			Accepted:            true,
			OtherParticipantIds: others,
		},
	})

	// Prior participants, owner included, get the counterpart trigger so
	// both ends of each new mesh edge know a negotiation is due.
	for _, id := range others {
		if p, ok := b.reg.client(id); ok {
			p.queueMessage(&ServerMessage{
				BaseMessage: BaseMessage{Timestamp: Now()},
				Negotiate: &Negotiate{
					RoomId: r.id,
					PeerId: req.requesterId,
				},
			})
		}
	}
}

func (b *Broker) handleChat(msg *ClientMessage) {
	c := msg.client
	m := b.reg.membership(c.id)

	switch m.kind {
	case memberRoom:
		r, ok := b.rooms[m.id]
		if !ok {
			c.queueMessage(ErrRoomNotFound(msg.Id))
			return
		}

		out := &ServerMessage{
			BaseMessage: BaseMessage{Timestamp: Now()},
			Chat: &Chat{
				RoomId:      r.id,
				Text:        msg.Chat.Text,
				LanguageTag: msg.Chat.LanguageTag,
				SenderId:    c.id,
			},
		}
		// Fan out to the whole audience except the sender. Never persisted.
		for id := range r.viewers {
			if id == c.id {
				continue
			}
			if viewer, ok := b.reg.client(id); ok {
				viewer.queueMessage(out)
			}
		}
	case memberSession:
		s, ok := b.sessions[m.id]
		if !ok {
			c.queueMessage(ErrSessionNotFound(msg.Id))
			return
		}

		if partner, ok := b.reg.client(s.partnerOf(c.id)); ok {
			partner.queueMessage(&ServerMessage{
				BaseMessage: BaseMessage{Timestamp: Now()},
				Chat: &Chat{
					Text:        msg.Chat.Text,
					LanguageTag: msg.Chat.LanguageTag,
					SenderId:    c.id,
				},
			})
		}
	default:
		c.queueMessage(ErrInvalidMessage(msg.Id))
	}
}

// leaveRoom removes a connection from a room. An owner leaving closes the
// whole room. notify controls whether remaining viewers hear about a
// departing participant; it is false only during shutdown.
func (b *Broker) leaveRoom(roomId, connId string, notify bool) {
	r, ok := b.rooms[roomId]
	if !ok {
		return
	}

	if connId == r.ownerId {
		b.closeRoom(r)
		return
	}

	wasParticipant := r.isParticipant(connId)
	delete(r.viewers, connId)
	delete(r.participants, connId)
	if req := r.requestByConn(connId); req != nil {
		r.removeRequest(req.id)
	}
	b.reg.clearMembership(connId)

	if notify && wasParticipant {
		out := &ServerMessage{
			BaseMessage: BaseMessage{Timestamp: Now()},
			ParticipantLeft: &ParticipantLeft{
				RoomId:       r.id,
				ConnectionId: connId,
			},
		}
		for id := range r.viewers {
			if viewer, ok := b.reg.client(id); ok {
				viewer.queueMessage(out)
			}
		}
	}
}

// closeRoom tears the room down: every remaining viewer is told, released
// and the relay routing disappears with the room itself.
func (b *Broker) closeRoom(r *liveRoom) {
	r.state = roomClosed
	r.gen++
	delete(b.rooms, r.id)
	b.stats.Decr(stats.ActiveRooms)

	out := &ServerMessage{
		BaseMessage: BaseMessage{Timestamp: Now()},
		RoomClosed:  &RoomClosed{RoomId: r.id},
	}
	for id := range r.viewers {
		b.reg.clearMembership(id)
		if id == r.ownerId {
			continue
		}
		if viewer, ok := b.reg.client(id); ok {
			viewer.queueMessage(out)
		}
	}

	b.log.Printf("room %s closed", r.id)
}
