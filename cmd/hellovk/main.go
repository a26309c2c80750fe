// Command hellovk opens a window and presents a triangle until it is closed.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"runtime"

	"github.com/vkngwrapper/hellovk/internal/session"
)

func main() {
	runtime.LockOSThread()
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg := session.DefaultConfig()

	flags := flag.NewFlagSet("hellovk", flag.ContinueOnError)
	flags.StringVar(&cfg.Title, "title", cfg.Title, "window title")
	flags.IntVar(&cfg.Width, "width", cfg.Width, "initial window width")
	flags.IntVar(&cfg.Height, "height", cfg.Height, "initial window height")
	flags.IntVar(&cfg.FramesInFlight, "frames", cfg.FramesInFlight, "frames in flight")
	flags.IntVar(&cfg.MaxFrames, "max-frames", cfg.MaxFrames, "exit after this many presented frames, 0 for no limit")
	flags.BoolVar(&cfg.Validation, "validation", cfg.Validation, "enable the Khronos validation layer")
	flags.StringVar(&cfg.PipelineCachePath, "pipeline-cache", cfg.PipelineCachePath, "pipeline cache file, empty to disable")
	flags.DurationVar(&cfg.StatsInterval, "stats", cfg.StatsInterval, "frame statistics interval, 0 to log only at exit")
	flags.BoolVar(&cfg.FlipY, "flip-y", cfg.FlipY, "flip the viewport so +y points up")
	if err := flags.Parse(args); err != nil {
		return 2
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(flags.Output(), "hellovk: %v\n", err)
		flags.Usage()
		return 2
	}

	s, err := session.Open(cfg, log.Default())
	if err != nil {
		log.Printf("%+v", err)
		return 1
	}
	defer s.Close()

	if err := s.Run(); err != nil {
		log.Printf("%+v", err)
		return 1
	}
	return 0
}
