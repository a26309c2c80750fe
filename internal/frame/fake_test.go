package frame

import (
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/hellovk/internal/swapchain"
)

var errInjected = errors.New("injected failure")

type acquireStep struct {
	image   int
	outcome Outcome
	err     error
}

// fakeDevice scripts acquire and present outcomes and records every call in
// order. Fences track their signaled state so tests can catch waits that
// would never return.
type fakeDevice struct {
	nextID uint64
	calls  []string

	acquires []acquireStep
	presents []Outcome

	failSlotAt int // 1-based; 0 disables
	slotCalls  int
	failSubmit bool
	failRecord bool

	signaled  map[Fence]bool
	destroyed []Slot
	records   []RecordInfo
	submits   []SubmitInfo
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{signaled: map[Fence]bool{}}
}

func (d *fakeDevice) id() uint64 {
	d.nextID++
	return d.nextID
}

func (d *fakeDevice) record(format string, args ...any) {
	d.calls = append(d.calls, fmt.Sprintf(format, args...))
}

func (d *fakeDevice) CreateSlot() (Slot, error) {
	d.slotCalls++
	if d.failSlotAt != 0 && d.slotCalls == d.failSlotAt {
		return Slot{}, errInjected
	}
	slot := Slot{
		CommandBuffer:  CommandBuffer(d.id()),
		ImageAvailable: Semaphore(d.id()),
		RenderFinished: Semaphore(d.id()),
		InFlight:       Fence(d.id()),
	}
	d.signaled[slot.InFlight] = true
	return slot, nil
}

func (d *fakeDevice) DestroySlot(slot Slot) {
	d.record("destroy-slot %d", slot.InFlight)
	d.destroyed = append(d.destroyed, slot)
}

func (d *fakeDevice) WaitForFence(fence Fence) error {
	d.record("wait %d", fence)
	if !d.signaled[fence] {
		return errors.Newf("fence %d would block forever", fence)
	}
	return nil
}

func (d *fakeDevice) ResetFence(fence Fence) error {
	d.record("reset-fence %d", fence)
	d.signaled[fence] = false
	return nil
}

func (d *fakeDevice) AcquireNextImage(chain swapchain.Handle, signal Semaphore) (int, Outcome, error) {
	d.record("acquire")
	if len(d.acquires) == 0 {
		return 0, OutcomeOK, nil
	}
	step := d.acquires[0]
	d.acquires = d.acquires[1:]
	return step.image, step.outcome, step.err
}

func (d *fakeDevice) ResetCommandBuffer(buffer CommandBuffer) error {
	d.record("reset-cmd %d", buffer)
	return nil
}

func (d *fakeDevice) Record(info RecordInfo) error {
	d.record("record %d", info.CommandBuffer)
	if d.failRecord {
		return errInjected
	}
	d.records = append(d.records, info)
	return nil
}

func (d *fakeDevice) Submit(info SubmitInfo) error {
	d.record("submit")
	if d.failSubmit {
		return errInjected
	}
	d.submits = append(d.submits, info)
	// The GPU finishes instantly.
	d.signaled[info.Fence] = true
	return nil
}

func (d *fakeDevice) Present(chain swapchain.Handle, image int, wait Semaphore) (Outcome, error) {
	d.record("present %d", image)
	if len(d.presents) == 0 {
		return OutcomeOK, nil
	}
	outcome := d.presents[0]
	d.presents = d.presents[1:]
	return outcome, nil
}

func (d *fakeDevice) WaitIdle() error {
	d.record("wait-idle")
	return nil
}

func (d *fakeDevice) count(prefix string) int {
	n := 0
	for _, c := range d.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

type fakeChain struct {
	handle   swapchain.Handle
	extent   swapchain.Extent
	statuses []swapchain.Status
	rebuilds int
	// extentAfterRebuild replaces extent on a successful rebuild when set.
	extentAfterRebuild swapchain.Extent
}

func newFakeChain() *fakeChain {
	return &fakeChain{handle: 1, extent: swapchain.Extent{Width: 800, Height: 600}}
}

func (c *fakeChain) Handle() swapchain.Handle { return c.handle }
func (c *fakeChain) Extent() swapchain.Extent { return c.extent }

func (c *fakeChain) Framebuffer(index int) swapchain.Framebuffer {
	return swapchain.Framebuffer(100 + index)
}

func (c *fakeChain) Recreate() (swapchain.Status, error) {
	c.rebuilds++
	status := swapchain.StatusOK
	if len(c.statuses) > 0 {
		status = c.statuses[0]
		c.statuses = c.statuses[1:]
	}
	switch status {
	case swapchain.StatusOK:
		c.handle++
		if !c.extentAfterRebuild.Empty() {
			c.extent = c.extentAfterRebuild
		}
		return status, nil
	case swapchain.StatusFailed:
		return status, errInjected
	}
	return status, nil
}

func quietConfig(n int) Config {
	return Config{FramesInFlight: n, FlipY: true, Logger: log.New(io.Discard, "", 0)}
}
