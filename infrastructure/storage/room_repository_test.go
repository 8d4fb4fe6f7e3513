package storage

import (
	"context"
	"fmt"
	"log/slog"
	"roomchat/domain"
	"roomchat/errors"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

// SetupTestDB initializes a temporary Badger instance for testing
func SetupTestDB(t *testing.T) *badger.DB {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestRoomRepository_Keeps_Seed_Order(t *testing.T) {
	req := require.New(t)
	repo := NewRoomRepository(SetupTestDB(t), logs.GetLoggerFromLevel(slog.LevelError))

	// Given rooms whose ids are not alphabetically sorted
	rooms := []domain.RoomDescriptor{
		{ID: "zeta", Name: "Zeta"},
		{ID: "alpha", Name: "Alpha"},
		{ID: "mid", Name: "Middle"},
	}
	req.NoError(repo.ReplaceAll(rooms))

	// Then they come back in seed order
	loaded, err := repo.LoadRooms(context.Background())
	req.NoError(err)
	req.Equal(rooms, loaded)
}

func TestRoomRepository_ReplaceAll_Drops_Previous_Catalog(t *testing.T) {
	req := require.New(t)
	repo := NewRoomRepository(SetupTestDB(t), logs.GetLoggerFromLevel(slog.LevelError))

	var many []domain.RoomDescriptor
	for i := 0; i < 12; i++ {
		many = append(many, domain.RoomDescriptor{ID: domain.RoomID(fmt.Sprintf("room-%d", i)), Name: "R"})
	}
	req.NoError(repo.ReplaceAll(many))
	req.NoError(repo.ReplaceAll([]domain.RoomDescriptor{{ID: "general", Name: "General"}}))

	loaded, err := repo.LoadRooms(context.Background())
	req.NoError(err)
	req.Equal([]domain.RoomDescriptor{{ID: "general", Name: "General"}}, loaded)
}

func TestRoomRepository_Empty_Catalog(t *testing.T) {
	req := require.New(t)
	repo := NewRoomRepository(SetupTestDB(t), logs.GetLoggerFromLevel(slog.LevelError))

	_, err := repo.LoadRooms(context.Background())
	req.ErrorIs(err, errors.ErrEmptyRooms)
}
