package frame

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/hellovk/internal/swapchain"
)

func newScheduler(t *testing.T, dev *fakeDevice, chain *fakeChain, n int) *Scheduler {
	t.Helper()
	s, err := NewScheduler(dev, chain, quietConfig(n))
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	return s
}

func TestNewSchedulerValidatesFramesInFlight(t *testing.T) {
	for _, n := range []int{0, -1} {
		if _, err := NewScheduler(newFakeDevice(), newFakeChain(), quietConfig(n)); err == nil {
			t.Errorf("NewScheduler(%d frames) succeeded", n)
		}
	}
}

func TestNewSchedulerRollsBackSlots(t *testing.T) {
	dev := newFakeDevice()
	dev.failSlotAt = 3

	_, err := NewScheduler(dev, newFakeChain(), quietConfig(3))
	if !errors.Is(err, errInjected) {
		t.Fatalf("err = %v, want injected failure", err)
	}
	if len(dev.destroyed) != 2 {
		t.Fatalf("destroyed %d slots, want 2", len(dev.destroyed))
	}
	if dev.destroyed[0].InFlight < dev.destroyed[1].InFlight {
		t.Error("slots destroyed oldest first, want newest first")
	}
}

func TestIndexWrapsAfterNFrames(t *testing.T) {
	for _, n := range []int{1, 2, 3} {
		t.Run(fmt.Sprintf("%d in flight", n), func(t *testing.T) {
			s := newScheduler(t, newFakeDevice(), newFakeChain(), n)

			for i := 0; i < n; i++ {
				if s.Index() != i {
					t.Fatalf("Index() = %d before frame %d", s.Index(), i)
				}
				result, err := s.DrawFrame()
				if err != nil {
					t.Fatal(err)
				}
				if result != ResultPresented {
					t.Fatalf("frame %d: %s, want presented", i, result)
				}
			}
			if s.Index() != 0 {
				t.Errorf("Index() = %d after %d frames, want 0", s.Index(), n)
			}
		})
	}
}

func TestFenceWaitedBeforeCommandBufferReuse(t *testing.T) {
	dev := newFakeDevice()
	s := newScheduler(t, dev, newFakeChain(), 2)
	slot0 := s.Slots()[0]

	for i := 0; i < 3; i++ {
		if _, err := s.DrawFrame(); err != nil {
			t.Fatal(err)
		}
	}

	wait := fmt.Sprintf("wait %d", slot0.InFlight)
	reset := fmt.Sprintf("reset-cmd %d", slot0.CommandBuffer)

	var waits, resets []int
	for i, c := range dev.calls {
		switch c {
		case wait:
			waits = append(waits, i)
		case reset:
			resets = append(resets, i)
		}
	}
	if len(resets) != 2 || len(waits) != 2 {
		t.Fatalf("slot 0 waited %d times and reset %d times, want 2 each", len(waits), len(resets))
	}
	for i := range resets {
		if waits[i] > resets[i] {
			t.Errorf("use %d: command buffer reset at call %d before fence wait at %d", i, resets[i], waits[i])
		}
	}
}

func TestFrameCallOrder(t *testing.T) {
	dev := newFakeDevice()
	s := newScheduler(t, dev, newFakeChain(), 1)
	slot := s.Slots()[0]
	dev.acquires = []acquireStep{{image: 2}}

	if _, err := s.DrawFrame(); err != nil {
		t.Fatal(err)
	}

	want := []string{
		fmt.Sprintf("wait %d", slot.InFlight),
		"acquire",
		fmt.Sprintf("reset-fence %d", slot.InFlight),
		fmt.Sprintf("reset-cmd %d", slot.CommandBuffer),
		fmt.Sprintf("record %d", slot.CommandBuffer),
		"submit",
		"present 2",
	}
	if !reflect.DeepEqual(dev.calls, want) {
		t.Errorf("calls = %v\nwant    %v", dev.calls, want)
	}

	sub := dev.submits[0]
	if sub.Wait != slot.ImageAvailable || sub.Signal != slot.RenderFinished || sub.Fence != slot.InFlight {
		t.Errorf("submit = %+v, want slot's semaphores and fence", sub)
	}
	rec := dev.records[0]
	if rec.Framebuffer != 102 {
		t.Errorf("recorded into framebuffer %d, want the acquired image's", rec.Framebuffer)
	}
	if rec.Scissor != (swapchain.Extent{Width: 800, Height: 600}) {
		t.Errorf("scissor = %s", rec.Scissor)
	}
}

func TestStaleAcquireSkipsSubmission(t *testing.T) {
	dev := newFakeDevice()
	chain := newFakeChain()
	s := newScheduler(t, dev, chain, 2)
	dev.acquires = []acquireStep{{outcome: OutcomeStale}}

	result, err := s.DrawFrame()
	if err != nil {
		t.Fatal(err)
	}
	if result != ResultRebuilt {
		t.Errorf("result = %s, want rebuilt", result)
	}
	if chain.rebuilds != 1 {
		t.Errorf("rebuilt %d times, want 1", chain.rebuilds)
	}
	for _, prefix := range []string{"submit", "reset-fence", "reset-cmd", "record", "present"} {
		if n := dev.count(prefix); n != 0 {
			t.Errorf("%q issued %d times on a stale acquire", prefix, n)
		}
	}
	if s.Index() != 1 {
		t.Errorf("Index() = %d, want 1", s.Index())
	}

	// Slot 0 must still be usable: its fence was never reset.
	for i := 0; i < 2; i++ {
		if _, err := s.DrawFrame(); err != nil {
			t.Fatalf("frame after stale acquire: %v", err)
		}
	}
}

func TestStaleAcquireOnDegenerateSurfaceSkips(t *testing.T) {
	dev := newFakeDevice()
	chain := newFakeChain()
	chain.statuses = []swapchain.Status{swapchain.StatusDegenerate}
	s := newScheduler(t, dev, chain, 2)
	dev.acquires = []acquireStep{{outcome: OutcomeStale}}

	result, err := s.DrawFrame()
	if err != nil {
		t.Fatal(err)
	}
	if result != ResultSkipped {
		t.Errorf("result = %s, want skipped", result)
	}
}

func TestDegradedAcquireRebuildsAfterPresent(t *testing.T) {
	dev := newFakeDevice()
	chain := newFakeChain()
	chain.extentAfterRebuild = swapchain.Extent{Width: 1024, Height: 768}
	s := newScheduler(t, dev, chain, 2)
	dev.acquires = []acquireStep{{outcome: OutcomeDegraded}}

	result, err := s.DrawFrame()
	if err != nil {
		t.Fatal(err)
	}
	if result != ResultRebuilt {
		t.Errorf("result = %s, want rebuilt", result)
	}
	if dev.count("present") != 1 {
		t.Error("degraded image was not presented")
	}
	if chain.rebuilds != 1 {
		t.Errorf("rebuilt %d times, want 1", chain.rebuilds)
	}

	if _, err := s.DrawFrame(); err != nil {
		t.Fatal(err)
	}
	last := dev.records[len(dev.records)-1]
	if last.RenderArea != chain.extentAfterRebuild {
		t.Errorf("render area after rebuild = %s, want %s", last.RenderArea, chain.extentAfterRebuild)
	}
	if last.Viewport.Height != -768 {
		t.Errorf("viewport height = %v, want -768", last.Viewport.Height)
	}
}

func TestRequestRebuildAppliesOnce(t *testing.T) {
	dev := newFakeDevice()
	chain := newFakeChain()
	s := newScheduler(t, dev, chain, 2)

	s.RequestRebuild()
	result, err := s.DrawFrame()
	if err != nil {
		t.Fatal(err)
	}
	if result != ResultRebuilt {
		t.Errorf("result = %s, want rebuilt", result)
	}
	if dev.count("present") != 1 {
		t.Error("frame was not presented before the rebuild")
	}

	result, err = s.DrawFrame()
	if err != nil {
		t.Fatal(err)
	}
	if result != ResultPresented || chain.rebuilds != 1 {
		t.Errorf("second frame: %s after %d rebuilds, want presented after 1", result, chain.rebuilds)
	}
}

func TestPresentOutcomes(t *testing.T) {
	tests := []struct {
		outcome  Outcome
		want     Result
		rebuilds int
	}{
		{OutcomeOK, ResultPresented, 0},
		{OutcomeDegraded, ResultRebuilt, 1},
		{OutcomeStale, ResultRebuilt, 1},
	}

	for _, tt := range tests {
		t.Run(tt.outcome.String(), func(t *testing.T) {
			dev := newFakeDevice()
			chain := newFakeChain()
			s := newScheduler(t, dev, chain, 2)
			dev.presents = []Outcome{tt.outcome}

			result, err := s.DrawFrame()
			if err != nil {
				t.Fatal(err)
			}
			if result != tt.want {
				t.Errorf("result = %s, want %s", result, tt.want)
			}
			if chain.rebuilds != tt.rebuilds {
				t.Errorf("rebuilt %d times, want %d", chain.rebuilds, tt.rebuilds)
			}
		})
	}
}

func TestFatalPaths(t *testing.T) {
	tests := []struct {
		name  string
		setup func(dev *fakeDevice, chain *fakeChain)
	}{
		{"acquire fatal", func(dev *fakeDevice, _ *fakeChain) {
			dev.acquires = []acquireStep{{outcome: OutcomeFatal, err: errInjected}}
		}},
		{"acquire fatal without cause", func(dev *fakeDevice, _ *fakeChain) {
			dev.acquires = []acquireStep{{outcome: OutcomeFatal}}
		}},
		{"record", func(dev *fakeDevice, _ *fakeChain) { dev.failRecord = true }},
		{"submit", func(dev *fakeDevice, _ *fakeChain) { dev.failSubmit = true }},
		{"present fatal", func(dev *fakeDevice, _ *fakeChain) { dev.presents = []Outcome{OutcomeFatal} }},
		{"rebuild failed", func(dev *fakeDevice, chain *fakeChain) {
			dev.acquires = []acquireStep{{outcome: OutcomeStale}}
			chain.statuses = []swapchain.Status{swapchain.StatusFailed}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := newFakeDevice()
			chain := newFakeChain()
			s := newScheduler(t, dev, chain, 2)
			tt.setup(dev, chain)

			_, err := s.DrawFrame()
			if !errors.Is(err, ErrFatal) {
				t.Fatalf("err = %v, want ErrFatal", err)
			}
			if s.Index() != 0 {
				t.Errorf("Index() = %d after a fatal frame, want 0", s.Index())
			}
		})
	}
}

func TestClose(t *testing.T) {
	dev := newFakeDevice()
	s := newScheduler(t, dev, newFakeChain(), 3)
	slots := s.Slots()

	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if dev.calls[0] != "wait-idle" {
		t.Errorf("first call = %q, want wait-idle", dev.calls[0])
	}
	if len(dev.destroyed) != 3 || dev.destroyed[0] != slots[2] {
		t.Errorf("destroyed %v, want all slots newest first", dev.destroyed)
	}

	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if len(dev.destroyed) != 3 {
		t.Error("second Close destroyed slots again")
	}
	if _, err := s.DrawFrame(); !errors.Is(err, ErrFatal) {
		t.Errorf("DrawFrame after Close: %v, want ErrFatal", err)
	}
}

func TestViewportFor(t *testing.T) {
	extent := swapchain.Extent{Width: 800, Height: 600}

	flipped := ViewportFor(extent, true)
	if flipped.Y != 600 || flipped.Height != -600 || flipped.Width != 800 {
		t.Errorf("flipped viewport = %+v", flipped)
	}

	plain := ViewportFor(extent, false)
	if plain.Y != 0 || plain.Height != 600 {
		t.Errorf("plain viewport = %+v", plain)
	}
	if plain.MinDepth != 0 || plain.MaxDepth != 1 {
		t.Errorf("depth range = [%v, %v], want [0, 1]", plain.MinDepth, plain.MaxDepth)
	}
}
