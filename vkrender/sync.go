package vkrender

import (
	"github.com/vkngwrapper/core/v3/core1_0"
)

// acquireSlotCount is the number of in-flight acquire operations. Two slots
// let the CPU prepare one frame while the previous acquire is still pending.
const acquireSlotCount = 2

// acquireSlot pairs a binary acquire semaphore with the timeline value of the
// last submission that waited on it. Re-waiting that value before reuse
// guarantees the semaphore is unsignaled and not referenced by any pending
// operation.
type acquireSlot struct {
	semaphore core1_0.Semaphore
	// lastValue is the timeline value signaled by the last submission that
	// consumed this slot's semaphore. Zero means the slot was never used
	// since the last swapchain build.
	lastValue uint64
}

// timelineWaiter blocks until the render timeline reaches a value. The
// renderer backs it with a timeline semaphore wait; tests substitute a fake.
type timelineWaiter interface {
	waitTimeline(value uint64) error
}

// frameRing tracks the acquire slots and the monotonically increasing render
// timeline. It owns no Vulkan handles; the renderer populates the slot
// semaphores when the swapchain is (re)built.
type frameRing struct {
	slots [acquireSlotCount]acquireSlot
	index int
	// value is the highest timeline value a successful submission signaled.
	value uint64
}

// current returns the slot the next acquire should use.
func (r *frameRing) current() *acquireSlot {
	return &r.slots[r.index]
}

// waitReusable blocks until the current slot's previous submission retired,
// making its acquire semaphore safe to reuse. Slots that were never consumed
// need no wait.
func (r *frameRing) waitReusable(w timelineWaiter) error {
	slot := r.current()
	if slot.lastValue == 0 {
		return nil
	}
	return w.waitTimeline(slot.lastValue)
}

// nextValue is the timeline value the upcoming submission must signal.
func (r *frameRing) nextValue() uint64 {
	return r.value + 1
}

// commit records a successful submission: the timeline advances to v and the
// current slot is stamped so a later reuse waits for this submission. Must be
// called with the value obtained from nextValue before the submit.
func (r *frameRing) commit(v uint64) {
	r.value = v
	r.current().lastValue = v
}

// advance rotates to the next acquire slot. Called once per frame after
// presentation, regardless of present outcome.
func (r *frameRing) advance() {
	r.index = (r.index + 1) % acquireSlotCount
}

// rebind installs freshly created acquire semaphores and rewinds the ring to
// slot zero. The timeline value is preserved: the timeline semaphore itself
// survives swapchain rebuilds. Slot stamps reset because the new semaphores
// carry no pending waits.
func (r *frameRing) rebind(semaphores [acquireSlotCount]core1_0.Semaphore) {
	for i := range r.slots {
		r.slots[i] = acquireSlot{semaphore: semaphores[i]}
	}
	r.index = 0
}
