package event

import (
	"roomchat/domain"
	"time"

	"github.com/google/uuid"
)

// Event is an immutable value sent from the server to a client.
type Event interface {
	Type() Type
}

type Type string

const (
	LoginAcceptedType     Type = "login_accepted"
	RoomJoinedType        Type = "room_joined"
	RoomLeftType          Type = "room_left"
	RoomMessageType       Type = "user_message"
	RoomParticipationType Type = "room_participation"
	LaggedType            Type = "lagged"
	ErrorType             Type = "error"
)

// RoomEvent is broadcast through a room channel.
type RoomEvent interface {
	Event
	RoomID() domain.RoomID
}

type LoginAccepted struct {
	SessionID uuid.UUID
	Username  string
}

func (LoginAccepted) Type() Type { return LoginAcceptedType }

type RoomJoined struct {
	Room       domain.RoomID
	Descriptor domain.RoomDescriptor
}

func (RoomJoined) Type() Type { return RoomJoinedType }

type RoomLeft struct {
	Room domain.RoomID
}

func (RoomLeft) Type() Type { return RoomLeftType }

type RoomMessage struct {
	ID            uuid.UUID
	Room          domain.RoomID
	SenderSession uuid.UUID
	Sender        string
	Content       string
	At            time.Time
}

func (RoomMessage) Type() Type { return RoomMessageType }
func (m RoomMessage) RoomID() domain.RoomID { return m.Room }

type ParticipationStatus string

const (
	Joined ParticipationStatus = "joined"
	Left   ParticipationStatus = "left"
)

type RoomParticipation struct {
	Room     domain.RoomID
	Username string
	Status   ParticipationStatus
}

func (RoomParticipation) Type() Type { return RoomParticipationType }
func (p RoomParticipation) RoomID() domain.RoomID { return p.Room }

// Lagged tells a client it missed Missed events of Room because it read too slowly.
type Lagged struct {
	Room   domain.RoomID
	Missed uint64
}

func (Lagged) Type() Type { return LaggedType }
func (l Lagged) RoomID() domain.RoomID { return l.Room }

type ErrorCode string

const (
	CodeUnknownRoom    ErrorCode = "unknown_room"
	CodeNotMember      ErrorCode = "not_member"
	CodeAlreadyJoined  ErrorCode = "already_joined"
	CodeInvalidCommand ErrorCode = "invalid_command"
	CodeMalformedFrame ErrorCode = "malformed_frame"
	CodeInternal       ErrorCode = "internal"
)

type Error struct {
	Code   ErrorCode
	Reason string
}

func (Error) Type() Type { return ErrorType }
