package runtime

import (
	"fmt"
	"roomchat/domain"
	"roomchat/errors"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

// Registry is the catalog of rooms known by the server.
// It is built once at bootstrap and never mutated afterwards,
// so concurrent reads need no locking.
type Registry struct {
	rooms []domain.RoomDescriptor
	index map[domain.RoomID]domain.RoomDescriptor
}

// NewRegistry validates the bootstrap descriptors and keeps their order.
func NewRegistry(descriptors []domain.RoomDescriptor) (*Registry, error) {
	if len(descriptors) == 0 {
		return nil, errors.ErrEmptyRooms
	}
	validate := validator.New()
	index := make(map[domain.RoomID]domain.RoomDescriptor, len(descriptors))
	for i, d := range descriptors {
		if err := validate.Struct(d); err != nil {
			return nil, fmt.Errorf("%w at position %d: %v", errors.ErrInvalidRoom, i, err)
		}
		if _, ok := index[d.ID]; ok {
			return nil, fmt.Errorf("%w: %q", errors.ErrDuplicateRoom, d.ID)
		}
		index[d.ID] = d
	}
	return &Registry{
		rooms: append([]domain.RoomDescriptor(nil), descriptors...),
		index: index,
	}, nil
}

// List returns the rooms in bootstrap order.
func (r *Registry) List() []domain.RoomDescriptor {
	return append([]domain.RoomDescriptor(nil), r.rooms...)
}

func (r *Registry) Resolve(id domain.RoomID) (domain.RoomDescriptor, error) {
	d, ok := r.index[id]
	if !ok {
		return domain.RoomDescriptor{}, fmt.Errorf("%w: %q", errors.ErrUnknownRoom, id)
	}
	return d, nil
}

func (r *Registry) IDs() []domain.RoomID {
	return lo.Map(r.rooms, func(d domain.RoomDescriptor, _ int) domain.RoomID {
		return d.ID
	})
}

func (r *Registry) Len() int {
	return len(r.rooms)
}
