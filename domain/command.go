package domain

// Command is anything a client can ask the server to do.
type Command interface {
	Name() string
}

// RoomCommand is a Command addressed to a single room.
type RoomCommand interface {
	Command
	RoomID() RoomID
}

type LoginCommand struct {
	Username string `validate:"required,max=32"`
}

func (LoginCommand) Name() string { return "login" }

type JoinRoomCommand struct {
	Room RoomID `validate:"required,max=64"`
}

func (JoinRoomCommand) Name() string { return "join_room" }
func (c JoinRoomCommand) RoomID() RoomID { return c.Room }

type LeaveRoomCommand struct {
	Room RoomID `validate:"required,max=64"`
}

func (LeaveRoomCommand) Name() string { return "leave_room" }
func (c LeaveRoomCommand) RoomID() RoomID { return c.Room }

type SendMessageCommand struct {
	Room    RoomID `validate:"required,max=64"`
	Content string `validate:"required"`
}

func (SendMessageCommand) Name() string { return "send_message" }
func (c SendMessageCommand) RoomID() RoomID { return c.Room }

// QuitCommand asks the server to close the session cleanly.
type QuitCommand struct{}

func (QuitCommand) Name() string { return "quit" }
