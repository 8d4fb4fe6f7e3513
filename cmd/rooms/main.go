// Command rooms manages the Badger room catalog and queries a running server.
//
//	rooms seed    -db ./data/rooms -file rooms.json
//	rooms list    -db ./data/rooms
//	rooms stats   -addr localhost:7002
//	rooms inspect -db ./data/rooms -port 8081
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"roomchat/domain"
	"roomchat/infrastructure/grpc/client"
	"roomchat/infrastructure/storage"
	"roomchat/runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/database"
	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

const usage = "usage: rooms seed|list|stats|inspect [flags]"

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if err := run(os.Args[1], os.Args[2:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "rooms %s: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

func run(command string, args []string, out io.Writer) error {
	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	dbPath := fs.String("db", database.DefaultPath, "Path to the badger room catalog")
	file := fs.String("file", "rooms.json", "JSON room list to seed from")
	addr := fs.String("addr", "localhost:7002", "gRPC admin address of a running server")
	port := fs.Int("port", 8081, "Port of the badger inspector")
	if err := fs.Parse(args); err != nil {
		return err
	}

	switch command {
	case "seed":
		return seed(*dbPath, *file, out)
	case "list":
		return list(*dbPath, out)
	case "stats":
		return stats(*addr, out)
	case "inspect":
		return inspect(*dbPath, *port)
	default:
		return fmt.Errorf("unknown command %q, %s", command, usage)
	}
}

func openDB(path string, readOnly bool) (*badger.DB, error) {
	return badger.Open(badger.DefaultOptions(path).
		WithReadOnly(readOnly).
		WithLogger(nil))
}

func seed(dbPath, file string, out io.Writer) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	rooms, err := runtime.DecodeRooms(data)
	if err != nil {
		return err
	}
	if _, err := runtime.NewRegistry(rooms); err != nil {
		return err
	}

	db, err := openDB(dbPath, false)
	if err != nil {
		return err
	}
	defer db.Close()

	repository := storage.NewRoomRepository(db, logs.GetLoggerFromString("WARN"))
	if err := repository.ReplaceAll(rooms); err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "%d rooms written to %s\n", len(rooms), dbPath)
	return err
}

func list(dbPath string, out io.Writer) error {
	db, err := openDB(dbPath, true)
	if err != nil {
		return err
	}
	defer db.Close()

	rooms, err := storage.NewRoomRepository(db, logs.GetLoggerFromString("WARN")).LoadRooms(context.Background())
	if err != nil {
		return err
	}

	table := newTable(out, "Position", "ID", "Name")
	for i, room := range rooms {
		table.Append([]string{strconv.Itoa(i), room.ID.String(), room.Name})
	}
	table.Render()
	return nil
}

func stats(addr string, out io.Writer) error {
	c, err := client.NewAdminClient(addr)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	rooms, err := c.ListRooms(ctx)
	if err != nil {
		return err
	}
	renderStats(out, rooms)
	return nil
}

func renderStats(out io.Writer, rooms []domain.RoomStats) {
	table := newTable(out, "ID", "Name", "Members", "Published", "Subscribers")
	for _, s := range rooms {
		table.Append([]string{
			s.Room.ID.String(),
			s.Room.Name,
			strconv.FormatInt(s.Members, 10),
			strconv.FormatUint(s.Published, 10),
			strconv.Itoa(s.Subscribers),
		})
	}
	table.Render()
}

// inspect serves the catalog in the badger inspector until interrupted.
func inspect(dbPath string, port int) error {
	db, err := openDB(dbPath, true)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	endpoint := "/inspect"
	fmt.Printf("Badger inspector available at http://localhost:%d%s?prefix=%s\n", port, endpoint, storage.RoomPrefix)
	database.StartDebugServer(db, port, endpoint, roomMapper)
	<-ctx.Done()
	return nil
}

func roomMapper(key string, val []byte) database.InspectRow {
	row := database.DefaultMapper(key, val)
	var p structpb.Struct
	if err := proto.Unmarshal(val, &p); err != nil {
		row.Detail = "Error: unmarshal failed"
		return row
	}
	fields := p.GetFields()
	row.Type = "ROOM"
	row.Detail = fmt.Sprintf("%s (%s)", fields["id"].GetStringValue(), fields["name"].GetStringValue())
	return row
}

func newTable(out io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(out)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	return table
}
