package session

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/vkngwrapper/hellovk/internal/gpu"
)

type Config struct {
	Title         string
	Width, Height int

	// FramesInFlight bounds how far the CPU may run ahead of the GPU.
	FramesInFlight int
	// MaxFrames stops the loop after that many presented frames. Zero runs
	// until the window closes.
	MaxFrames int

	// MinAPIVersion filters out older devices.
	MinAPIVersion gpu.Version
	Validation    bool

	// PipelineCachePath is where the pipeline cache is loaded from and
	// saved to. Empty disables the cache file.
	PipelineCachePath string

	// StatsInterval is how often frame statistics are logged. Zero logs
	// only at shutdown.
	StatsInterval time.Duration

	FlipY      bool
	ClearColor mgl32.Vec4
}

func DefaultConfig() Config {
	return Config{
		Title:          "Hello, World!",
		Width:          800,
		Height:         600,
		FramesInFlight: 2,
		MinAPIVersion:  gpu.MakeVersion(1, 1, 0),
		StatsInterval:  5 * time.Second,
		FlipY:          true,
		ClearColor:     mgl32.Vec4{0.2, 0.4, 0.1, 1},
	}
}

func (c Config) Validate() error {
	if c.Title == "" {
		return errors.New("title must not be empty")
	}
	if c.Width <= 0 || c.Height <= 0 {
		return errors.Newf("window size %dx%d must be positive", c.Width, c.Height)
	}
	if c.FramesInFlight < 1 {
		return errors.Newf("frames in flight must be at least 1, got %d", c.FramesInFlight)
	}
	if c.MaxFrames < 0 {
		return errors.Newf("max frames must not be negative, got %d", c.MaxFrames)
	}
	if c.StatsInterval < 0 {
		return errors.Newf("stats interval must not be negative, got %v", c.StatsInterval)
	}
	if c.MinAPIVersion > maxAPIVersion {
		return errors.Newf("minimum API version %s is newer than the supported %s", c.MinAPIVersion, maxAPIVersion)
	}
	return nil
}
