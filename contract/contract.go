//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"
	"roomchat/broadcast"
	"roomchat/domain"
	"roomchat/domain/event"

	"github.com/google/uuid"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// RoomSource provides the rooms known at bootstrap.
type RoomSource interface {
	LoadRooms(ctx context.Context) ([]domain.RoomDescriptor, error)
}

// RoomHandle is the proof of one room membership.
// Only the room manager creates one and it can be given back once.
type RoomHandle interface {
	SessionID() uuid.UUID
	Room() domain.RoomID
}

type IRoomManager interface {
	Join(sessionID uuid.UUID, roomID domain.RoomID) (RoomHandle, *broadcast.Receiver[event.Event], error)
	Leave(handle RoomHandle)
	Publish(roomID domain.RoomID, e event.Event) error
	Descriptor(roomID domain.RoomID) (domain.RoomDescriptor, error)
}

// IModerator masks forbidden words and returns the ones it found.
type IModerator interface {
	Censor(content string) (string, []string)
}

type IMetrics interface {
	RoomMembersDelta(roomID domain.RoomID, delta int64)
	MessagePublished(roomID domain.RoomID)
	Lagged(roomID domain.RoomID, missed uint64)
	SessionOpened()
	SessionClosed()
	SessionError(kind string)
}
