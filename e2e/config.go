package e2e

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// E2E_SERVER_ADDR targets a running server. Empty starts one in-process.
	ServerAddr string `envconfig:"E2E_SERVER_ADDR"`
	RoomsFile  string `envconfig:"E2E_ROOMS_FILE" default:"../testdata/rooms.json"`
	// E2E_DEBUG_FRAMES logs every event read by the test clients
	DebugFrames bool `envconfig:"E2E_DEBUG_FRAMES" default:"false"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours     bool          `envconfig:"E2E_COLOURS" default:"true"`
	ReadTimeout time.Duration `envconfig:"E2E_READ_TIMEOUT" default:"5s"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
