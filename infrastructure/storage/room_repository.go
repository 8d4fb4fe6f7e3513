// Package storage keeps the room catalog in BadgerDB.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"roomchat/domain"
	"roomchat/errors"

	"github.com/dgraph-io/badger/v4"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

const RoomPrefix = "room:"

// RoomRepository stores room descriptors under keys ordered by bootstrap position,
// so a prefix scan returns them in the order they were seeded.
type RoomRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewRoomRepository(db *badger.DB, log *slog.Logger) *RoomRepository {
	return &RoomRepository{db: db, log: log}
}

func roomKey(position int, id domain.RoomID) []byte {
	return []byte(fmt.Sprintf("%s%06d:%s", RoomPrefix, position, id))
}

// ReplaceAll swaps the whole catalog for rooms in one transaction.
func (r *RoomRepository) ReplaceAll(rooms []domain.RoomDescriptor) error {
	values := make([][]byte, len(rooms))
	for i, room := range rooms {
		data, err := proto.Marshal(toPbRoom(i, room))
		if err != nil {
			return fmt.Errorf("failed to marshal room %q: %w", room.ID, err)
		}
		values[i] = data
	}

	return r.db.Update(func(txn *badger.Txn) error {
		existing, err := keys(txn)
		if err != nil {
			return err
		}
		for _, key := range existing {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		for i, room := range rooms {
			if err := txn.Set(roomKey(i, room.ID), values[i]); err != nil {
				return err
			}
		}
		r.log.Debug("Room catalog replaced", "removed", len(existing), "stored", len(rooms))
		return nil
	})
}

func keys(txn *badger.Txn) ([][]byte, error) {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	var out [][]byte
	prefix := []byte(RoomPrefix)
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		out = append(out, it.Item().KeyCopy(nil))
	}
	return out, nil
}

// LoadRooms returns the catalog in bootstrap order. An empty catalog is an error.
func (r *RoomRepository) LoadRooms(_ context.Context) ([]domain.RoomDescriptor, error) {
	var rooms []domain.RoomDescriptor
	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(RoomPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			err := item.Value(func(v []byte) error {
				var pbRoom structpb.Struct
				if err := proto.Unmarshal(v, &pbRoom); err != nil {
					return fmt.Errorf("failed to unmarshal room %s: %w", item.Key(), err)
				}
				rooms = append(rooms, fromPbRoom(&pbRoom))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error during room catalog scan: %w", err)
	}
	if len(rooms) == 0 {
		return nil, errors.ErrEmptyRooms
	}
	return rooms, nil
}

func toPbRoom(position int, room domain.RoomDescriptor) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"id":       structpb.NewStringValue(room.ID.String()),
		"name":     structpb.NewStringValue(room.Name),
		"position": structpb.NewNumberValue(float64(position)),
	}}
}

func fromPbRoom(p *structpb.Struct) domain.RoomDescriptor {
	return domain.RoomDescriptor{
		ID:   domain.RoomID(p.GetFields()["id"].GetStringValue()),
		Name: p.GetFields()["name"].GetStringValue(),
	}
}
