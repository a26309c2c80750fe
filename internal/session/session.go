// Package session wires the window, the Vulkan backend and the presentation
// core into one running renderer.
package session

import (
	"log"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/hellovk/internal/frame"
	"github.com/vkngwrapper/hellovk/internal/gpu"
	"github.com/vkngwrapper/hellovk/internal/mesh"
	"github.com/vkngwrapper/hellovk/internal/pipecache"
	"github.com/vkngwrapper/hellovk/internal/pipeline"
	"github.com/vkngwrapper/hellovk/internal/scope"
	"github.com/vkngwrapper/hellovk/internal/swapchain"
	"github.com/vkngwrapper/hellovk/internal/vkdriver"
	"github.com/vkngwrapper/hellovk/internal/window"
	"golang.org/x/sync/errgroup"
)

// maxAPIVersion is the version the instance is created with.
var maxAPIVersion = gpu.MakeVersion(1, 2, 0)

const minimizedPoll = 100 * time.Millisecond

type assets struct {
	shaders   pipeline.Shaders
	cacheData []byte
}

// loadAssets decodes the shaders and reads the pipeline cache file side by
// side. Neither touches the device.
func loadAssets(cfg Config) (assets, error) {
	var a assets
	var g errgroup.Group

	g.Go(func() error {
		shaders, err := pipeline.Load()
		if err != nil {
			return err
		}
		a.shaders = shaders
		return nil
	})
	if cfg.PipelineCachePath != "" {
		g.Go(func() error {
			data, err := pipecache.Read(cfg.PipelineCachePath)
			if err != nil {
				return err
			}
			a.cacheData = data
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return assets{}, errors.Wrap(err, "load assets")
	}
	return a, nil
}

// Session owns everything created for one run. Open and Run must be called
// on the thread that will keep running the window.
type Session struct {
	cfg    Config
	logger *log.Logger

	window *window.Window
	inst   *vkdriver.Instance
	device *vkdriver.Device
	chain  *swapchain.Chain
	sched  *frame.Scheduler
	stats  *frame.Stats

	teardown *scope.Stack
}

// Open creates the window and every Vulkan object the renderer needs. On
// error everything created so far has been released.
func Open(cfg Config, logger *log.Logger) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	if logger == nil {
		logger = log.Default()
	}

	a, err := loadAssets(cfg)
	if err != nil {
		return nil, err
	}

	s := &Session{
		cfg:      cfg,
		logger:   logger,
		teardown: scope.New(logger),
	}
	if err := s.open(a); err != nil {
		s.teardown.Release()
		return nil, err
	}
	return s, nil
}

func (s *Session) open(a assets) error {
	var err error
	cfg := s.cfg

	s.window, err = window.Create(cfg.Title, cfg.Width, cfg.Height)
	if err != nil {
		return err
	}
	s.teardown.Push("window", s.window.Destroy)

	s.inst, err = vkdriver.NewInstance(s.window.ProcAddr(), vkdriver.InstanceConfig{
		AppName:    cfg.Title,
		Extensions: s.window.RequiredInstanceExtensions(),
		Validation: cfg.Validation,
		APIVersion: common.Vulkan1_2,
		Logger:     s.logger,
	})
	if err != nil {
		return err
	}
	s.teardown.Push("instance", s.inst.Close)

	if err := s.inst.CreateSurface(s.window); err != nil {
		return err
	}
	s.teardown.Push("surface", s.inst.DestroySurface)

	candidate, plan, err := s.pickDevice()
	if err != nil {
		return err
	}

	s.device, err = vkdriver.NewDevice(s.inst, candidate, plan, s.logger)
	if err != nil {
		return err
	}
	s.teardown.Push("device", s.device.Close)

	s.chain = swapchain.New(s.device, s.window, swapchain.Config{
		ConcurrentFamilies: plan.ConcurrentFamilies(),
		Logger:             s.logger,
	})
	if err := s.chain.Create(); err != nil {
		return err
	}
	s.teardown.Push("swapchain", s.destroyChain)

	pass, err := s.device.CreateRenderPass(s.chain.SurfaceFormat().Format)
	if err != nil {
		return err
	}
	s.teardown.Push("render pass", func() { s.device.DestroyRenderPass(pass) })

	if err := s.chain.CreateFramebuffers(pass); err != nil {
		return err
	}
	s.teardown.Push("framebuffers", s.destroyChain)

	seed := a.cacheData
	if cfg.PipelineCachePath != "" {
		seed = pipecache.Seed(cfg.PipelineCachePath, a.cacheData, s.device.CacheIdentity(), s.logger)
	}
	if err := s.device.BuildPipeline(pass, a.shaders, seed); err != nil {
		return err
	}
	s.teardown.Push("pipeline cache", s.savePipelineCache)

	if err := s.device.UploadMesh(mesh.Triangle()); err != nil {
		return err
	}

	s.stats = frame.NewStats(cfg.StatsInterval, s.logger)
	s.sched, err = frame.NewScheduler(s.device, s.chain, frame.Config{
		FramesInFlight: cfg.FramesInFlight,
		FlipY:          cfg.FlipY,
		ClearColor:     cfg.ClearColor,
		Logger:         s.logger,
		Stats:          s.stats,
	})
	if err != nil {
		return err
	}
	s.teardown.Push("frame slots", s.closeScheduler)

	s.logger.Printf("session: presenting %s at %s, %d images, %s",
		candidate.Name, s.chain.Extent(), s.chain.ImageCount(), s.chain.PresentMode())
	return nil
}

func (s *Session) pickDevice() (gpu.Candidate, *gpu.QueuePlan, error) {
	candidates, err := s.inst.Candidates()
	if err != nil {
		return gpu.Candidate{}, nil, err
	}
	for _, c := range candidates {
		s.logger.Printf("session: device %d %s (%s, API %s) scores %d", c.Index, c.Name, c.Class, c.APIVersion, gpu.Score(c))
	}

	candidate, err := gpu.Select(candidates, s.cfg.MinAPIVersion)
	if err != nil {
		return gpu.Candidate{}, nil, err
	}

	families, err := s.inst.QueueFamilies(candidate)
	if err != nil {
		return gpu.Candidate{}, nil, err
	}
	plan, err := gpu.PlanQueues(families)
	if err != nil {
		return gpu.Candidate{}, nil, errors.Wrapf(err, "plan queues on %s", candidate.Name)
	}
	return candidate, plan, nil
}

func (s *Session) destroyChain() {
	if err := s.chain.Destroy(); err != nil {
		s.logger.Printf("session: destroying swapchain: %v", err)
	}
}

func (s *Session) closeScheduler() {
	if err := s.sched.Close(); err != nil {
		s.logger.Printf("session: closing frame slots: %v", err)
	}
}

// savePipelineCache writes the pipeline cache back so the next run starts
// warm. A failed save only costs startup time, so it is logged.
func (s *Session) savePipelineCache() {
	if s.cfg.PipelineCachePath == "" {
		return
	}
	if err := s.device.WaitIdle(); err != nil {
		s.logger.Printf("session: pipeline cache not saved: %v", err)
		return
	}
	data, err := s.device.PipelineCacheData()
	if err != nil {
		s.logger.Printf("session: pipeline cache not saved: %v", err)
		return
	}
	if len(data) == 0 {
		return
	}
	if err := pipecache.Save(s.cfg.PipelineCachePath, data); err != nil {
		s.logger.Printf("session: pipeline cache not saved: %v", err)
		return
	}
	s.logger.Printf("session: saved %d bytes of pipeline cache to %s", len(data), s.cfg.PipelineCachePath)
}

// Run draws frames until the window closes, MaxFrames frames have been
// presented, or a frame fails.
func (s *Session) Run() error {
	defer s.stats.Flush()

	presented := 0
	for s.cfg.MaxFrames == 0 || presented < s.cfg.MaxFrames {
		if !s.window.PollEvents() {
			return nil
		}
		if s.window.Resized() {
			s.sched.RequestRebuild()
		}
		if s.window.Minimized() {
			if !s.window.WaitEvent(minimizedPoll) {
				return nil
			}
			continue
		}

		result, err := s.sched.DrawFrame()
		if err != nil {
			return err
		}
		if result == frame.ResultPresented {
			presented++
		}
	}
	return nil
}

// Close waits for the device and releases everything in reverse creation
// order. It is safe to call more than once.
func (s *Session) Close() {
	s.teardown.Release()
}
