// Package dto holds the JSON shapes exchanged with websocket and HTTP clients.
package dto

import "time"

// Входящие типы запросов
const (
	TypeJoinQueue  = "join_queue"
	TypeLeaveQueue = "leave_queue"
	TypeStatus     = "status"
	TypeMessage    = "message"
	TypeRead       = "read"
)

// Исходящие события
const (
	EventWaiting  = "waiting"
	EventMatched  = "matched"
	EventLeft     = "left"
	EventStatus   = "status"
	EventMessage  = "message"
	EventRead     = "read"
	EventPresence = "presence"
	EventError    = "error"
)

// Коды ошибок
const (
	CodeInvalidPayload   = "invalid_payload"
	CodeMissingUserID    = "missing_user_id"
	CodePartySizeInvalid = "party_size_invalid"
	CodeInvalidUser      = "invalid_user"
	CodeUnknownType      = "unknown_type"
	CodeForbidden        = "forbidden"
	CodeInternal         = "internal"
)

// Request is the union of every inbound frame. Numeric fields are raw so
// that "3" and 3 are both accepted and garbage can be told apart from absent.
type Request struct {
	Type          string      `json:"type"`
	UserID        interface{} `json:"user_id,omitempty"`
	PartySize     interface{} `json:"party_size,omitempty"`
	Text          string      `json:"text,omitempty"`
	AttachmentIDs []uint      `json:"attachment_ids,omitempty"`
	MsgID         interface{} `json:"msg_id,omitempty"`
}

type ErrorEvent struct {
	Event string `json:"event"`
	Code  string `json:"code"`
}

func NewError(code string) ErrorEvent {
	return ErrorEvent{Event: EventError, Code: code}
}

type WaitingEvent struct {
	Event     string `json:"event"`
	TicketID  uint   `json:"ticket_id"`
	PartySize int    `json:"party_size"`
}

type MatchedEvent struct {
	Event      string `json:"event"`
	ChatRoomID uint   `json:"chat_room_id"`
	TicketID   uint   `json:"ticket_id"`
}

type LeftEvent struct {
	Event string `json:"event"`
}

type StatusEvent struct {
	Event      string `json:"event"`
	HasTicket  bool   `json:"has_ticket"`
	TicketID   *uint  `json:"ticket_id,omitempty"`
	Status     string `json:"status,omitempty"`
	PartySize  *int   `json:"party_size,omitempty"`
	ChatRoomID *uint  `json:"chat_room_id,omitempty"`
}

type MessageEvent struct {
	Event          string    `json:"event"`
	ID             uint      `json:"id"`
	RoomID         uint      `json:"room_id"`
	SenderID       uint      `json:"sender_id"`
	SenderNickname string    `json:"sender_nickname"`
	Text           string    `json:"text"`
	Type           string    `json:"type"`
	ReadBy         []uint    `json:"read_by"`
	ReadCount      int       `json:"read_count"`
	CreatedAt      time.Time `json:"created_at"`
	AttachmentURLs []string  `json:"attachment_urls"`
}

type ReadEvent struct {
	Event     string `json:"event"`
	MsgID     uint   `json:"msg_id"`
	UserID    uint   `json:"user_id"`
	ReadCount int64  `json:"read_count"`
}

type PresenceEvent struct {
	Event  string `json:"event"`
	UserID uint   `json:"user_id"`
	Online []uint `json:"online"`
}
