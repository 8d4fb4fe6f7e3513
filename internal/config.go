package internal

import (
	"fmt"
	"roomchat/errors"
	"time"
)

type Config struct {
	Host      string `env:"HOST,required=true"`
	Port      int    `env:"PORT,required=true"`
	WSPort    int    `env:"WS_PORT,default=0"`
	AdminPort int    `env:"ADMIN_PORT,default=0"`
	GRPCPort  int    `env:"GRPC_PORT,default=0"`
	LogLevel  string `env:"LOG_LEVEL,required=true"`

	RoomsFile       string `env:"ROOMS_FILE"`
	RoomsBadgerPath string `env:"ROOMS_BADGER_PATH"`

	BroadcastCapacity int `env:"BROADCAST_CAPACITY,default=256"`
	FanInBufferSize   int `env:"FANIN_BUFFER_SIZE,default=64"`
	MaxFrameSize      int `env:"MAX_FRAME_SIZE,default=65536"`
	MaxContentLength  int `env:"MAX_CONTENT_LENGTH,required=true"`

	IdleTimeout     time.Duration `env:"IDLE_TIMEOUT,default=0s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT,default=5s"`
	RestartInterval time.Duration `env:"RESTART_INTERVAL,required=true"`
	MetricInterval  time.Duration `env:"METRIC_INTERVAL,required=true"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`

	CharReplacement  string `env:"CHARACTER_REPLACEMENT,default=*"`
	EnableModeration bool   `env:"ENABLE_MODERATION,default=false"`
}

// Validate checks the constraints the env tags cannot express.
func (c Config) Validate() error {
	if (c.RoomsFile == "") == (c.RoomsBadgerPath == "") {
		return fmt.Errorf("ROOMS_FILE=%q ROOMS_BADGER_PATH=%q: %w", c.RoomsFile, c.RoomsBadgerPath, errors.ErrNoRoomSource)
	}
	if c.EnableModeration {
		if _, err := CharacterRune(c.CharReplacement); err != nil {
			return err
		}
	}
	return nil
}

func (c Config) Address(port int) string {
	return fmt.Sprintf("%s:%d", c.Host, port)
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q: %w",
			str, errors.ErrInvalidReplacement,
		)
	}
	return r[0], nil
}
