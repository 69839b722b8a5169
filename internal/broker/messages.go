package broker

import (
	"encoding/json"
	"net/http"
	"time"
)

type BaseMessage struct {
	Id        int       `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ClientMessage is the tagged union of everything a connection may send.
// Exactly one member is expected to be non-nil.
type ClientMessage struct {
	BaseMessage
	JoinQueue   *JoinQueue   `json:"join_queue,omitempty"`
	Signal      *Signal      `json:"signal,omitempty"`
	Decision    *Decision    `json:"decision,omitempty"`
	CreateRoom  *CreateRoom  `json:"create_room,omitempty"`
	JoinRoom    *JoinRoom    `json:"join_room,omitempty"`
	RequestJoin *RequestJoin `json:"request_join,omitempty"`
	ResolveJoin *ResolveJoin `json:"resolve_join,omitempty"`
	Chat        *Chat        `json:"chat,omitempty"`
	Leave       *Leave       `json:"leave,omitempty"`
	client      *Client
}

type JoinQueue struct {
	// SessionLengthSeconds is a preference, not a guarantee: the broker
	// clamps it to the configured bounds and the first-enqueued side of a
	// pair wins the tie-break.
	SessionLengthSeconds int `json:"session_length_seconds,omitempty"`
}

// Signal carries an opaque negotiation payload. The broker never parses
// Payload; it is forwarded as-is or dropped.
type Signal struct {
	ToId    string          `json:"to_id,omitempty"`
	FromId  string          `json:"from_id,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

type Decision struct {
	Choice string `json:"choice"`
}

type CreateRoom struct{}

type JoinRoom struct {
	RoomId string `json:"room_id"`
}

type RequestJoin struct {
	RoomId string `json:"room_id"`
}

type ResolveJoin struct {
	RequestId string `json:"request_id"`
	Accept    bool   `json:"accept"`
}

type Chat struct {
	// RoomId is empty for pair-session chat.
	RoomId      string `json:"room_id,omitempty"`
	Text        string `json:"text"`
	LanguageTag string `json:"language_tag,omitempty"`
	SenderId    string `json:"sender_id,omitempty"`
}

type Leave struct{}

type ServerMessage struct {
	BaseMessage
	Response            *Response            `json:"response,omitempty"`
	PartnerFound        *PartnerFound        `json:"partner_found,omitempty"`
	Signal              *Signal              `json:"signal,omitempty"`
	DecisionOutcome     *DecisionOutcome     `json:"decision_outcome,omitempty"`
	PartnerDisconnected *PartnerDisconnected `json:"partner_disconnected,omitempty"`
	JoinRequested       *JoinRequested       `json:"join_requested,omitempty"`
	JoinResolved        *JoinResolved        `json:"join_resolved,omitempty"`
	Negotiate           *Negotiate           `json:"negotiate,omitempty"`
	Chat                *Chat                `json:"chat,omitempty"`
	RoomClosed          *RoomClosed          `json:"room_closed,omitempty"`
	ParticipantLeft     *ParticipantLeft     `json:"participant_left,omitempty"`
}

type Response struct {
	ResponseCode int            `json:"response_code"`
	Error        string         `json:"error,omitempty"`
	Data         map[string]any `json:"data,omitempty"`
}

type PartnerFound struct {
	SessionId            string `json:"session_id"`
	PartnerId            string `json:"partner_id"`
	PartnerDisplayName   string `json:"partner_display_name"`
	Initiator            bool   `json:"initiator"`
	SessionLengthSeconds int    `json:"session_length_seconds"`
}

type DecisionOutcome struct {
	Matched   bool   `json:"matched"`
	PartnerId string `json:"partner_id,omitempty"`
}

type PartnerDisconnected struct{}

type JoinRequested struct {
	RequestId            string `json:"request_id"`
	RoomId               string `json:"room_id"`
	RequesterId          string `json:"requester_id"`
	RequesterDisplayName string `json:"requester_display_name"`
}

type JoinResolved struct {
	RequestId string `json:"request_id"`
	RoomId    string `json:"room_id"`
	Accepted  bool   `json:"accepted"`
	// OtherParticipantIds lists the peers the promoted participant should
	// open a negotiation toward. Empty on rejection.
	OtherParticipantIds []string `json:"other_participant_ids,omitempty"`
}

// Negotiate tells a connection a peer negotiation is due with PeerId.
// The room owner gets one when a new viewer attaches and opens a
// send-only offer toward it; prior participants get one when a viewer is
// promoted and answer the offer the promoted side initiates.
type Negotiate struct {
	RoomId      string `json:"room_id"`
	PeerId      string `json:"peer_id"`
	ReceiveOnly bool   `json:"receive_only,omitempty"`
}

type RoomClosed struct {
	RoomId string `json:"room_id"`
}

type ParticipantLeft struct {
	RoomId       string `json:"room_id"`
	ConnectionId string `json:"connection_id"`
}

func NoErrOK(id int, data map[string]any) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusOK,
			Data:         data,
		},
	}
}

func NoErrAccepted(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusAccepted,
		},
	}
}

func errResponse(id, code int, text string) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: code,
			Error:        text,
		},
	}
}

func ErrAlreadyEngaged(id int) *ServerMessage {
	return errResponse(id, http.StatusConflict, "already engaged")
}

func ErrRoomNotFound(id int) *ServerMessage {
	return errResponse(id, http.StatusNotFound, "room not found")
}

func ErrSessionNotFound(id int) *ServerMessage {
	return errResponse(id, http.StatusNotFound, "no active session")
}

func ErrNotAuthorized(id int) *ServerMessage {
	return errResponse(id, http.StatusForbidden, "not authorized")
}

// ErrPartnerUnavailable is a notice, not a failure: the relay target is
// gone and the sender should stop negotiating toward it.
func ErrPartnerUnavailable(id int) *ServerMessage {
	return errResponse(id, http.StatusGone, "partner unavailable")
}

func ErrRequestNotFound(id int) *ServerMessage {
	return errResponse(id, http.StatusNotFound, "join request not found")
}

func ErrRoomFull(id int) *ServerMessage {
	return errResponse(id, http.StatusConflict, "room participant limit reached")
}

func ErrDecisionNotOpen(id int) *ServerMessage {
	return errResponse(id, http.StatusConflict, "decision not accepted yet")
}

func ErrServiceUnavailable(id int) *ServerMessage {
	return errResponse(id, http.StatusServiceUnavailable, "service unavailable")
}

func ErrInvalidMessage(id int) *ServerMessage {
	msg := errResponse(0, http.StatusBadRequest, "invalid message format")
	if id > 0 {
		msg.Id = id
	}
	return msg
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
