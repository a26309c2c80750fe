package gpu

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// ErrNoUsableQueueFamily is returned by PlanQueues when the device cannot
// both draw and present.
var ErrNoUsableQueueFamily = errors.New("no usable queue family")

type QueueFlags uint32

const (
	QueueGraphics QueueFlags = 1 << iota
	QueueCompute
	QueueTransfer
)

type QueueFamily struct {
	Index   int
	Flags   QueueFlags
	Present bool
	Count   int
}

type Role int

const (
	RoleGraphics Role = iota
	RoleCompute
	RoleTransfer
	RolePresent

	roleCount
)

// Roles lists every queue role in planning order.
var Roles = [roleCount]Role{RoleGraphics, RoleCompute, RoleTransfer, RolePresent}

func (r Role) String() string {
	switch r {
	case RoleGraphics:
		return "graphics"
	case RoleCompute:
		return "compute"
	case RoleTransfer:
		return "transfer"
	case RolePresent:
		return "present"
	}
	return fmt.Sprintf("Role(%d)", int(r))
}

// QueuePlan maps each role to the queue family serving it.
type QueuePlan struct {
	families   [roleCount]int
	unique     []int
	concurrent []int
}

func (p *QueuePlan) Family(role Role) int {
	return p.families[role]
}

// QueueFamilies lists the families a device must request one queue from,
// graphics first and without duplicates.
func (p *QueuePlan) QueueFamilies() []int {
	return append([]int(nil), p.unique...)
}

// ConcurrentFamilies lists the families that must share presentable images
// concurrently, or nil when exclusive ownership is enough.
func (p *QueuePlan) ConcurrentFamilies() []int {
	if len(p.concurrent) == 0 {
		return nil
	}
	return append([]int(nil), p.concurrent...)
}

// SharesFamily reports whether role is served by a family already claimed
// by one of the roles planned before it, and if so which one.
func (p *QueuePlan) SharesFamily(role Role) (Role, bool) {
	for _, earlier := range Roles[:role] {
		if p.families[earlier] == p.families[role] {
			return earlier, true
		}
	}
	return role, false
}

func (p *QueuePlan) String() string {
	return fmt.Sprintf("graphics=%d compute=%d transfer=%d present=%d",
		p.families[RoleGraphics], p.families[RoleCompute], p.families[RoleTransfer], p.families[RolePresent])
}

func roleScores(f QueueFamily) [roleCount]int {
	var s [roleCount]int

	if f.Flags&QueueGraphics != 0 {
		s[RoleGraphics]++
		s[RoleCompute]--
		s[RoleTransfer]--
		s[RolePresent]--
	}
	if f.Flags&QueueCompute != 0 {
		s[RoleGraphics]--
		s[RoleCompute]++
		s[RoleTransfer]--
		s[RolePresent]--
	}
	if f.Flags&QueueTransfer != 0 {
		s[RoleGraphics]--
		s[RoleCompute]--
		s[RoleTransfer]++
		s[RolePresent]--
	}
	if f.Present {
		s[RolePresent] += 3
	}

	return s
}

// serves reports whether f is able to take role at all. Families that only
// expose capabilities outside QueueFlags (video, sparse binding) would
// otherwise win on a zero score against generalist families.
func serves(f QueueFamily, role Role) bool {
	switch role {
	case RoleGraphics:
		return f.Flags&QueueGraphics != 0
	case RoleCompute:
		return f.Flags&QueueCompute != 0
	case RoleTransfer:
		return f.Flags&QueueTransfer != 0
	case RolePresent:
		return f.Present
	}
	return false
}

// PlanQueues assigns a family to every role. Each family is scored per
// role so that a family doing only one thing beats a generalist; present
// support weighs heavier than any capability penalty.
func PlanQueues(families []QueueFamily) (*QueuePlan, error) {
	if len(families) == 0 {
		return nil, errors.Wrap(ErrNoUsableQueueFamily, "device reports no queue families")
	}

	var canDraw, canPresent bool
	for _, f := range families {
		canDraw = canDraw || f.Flags&QueueGraphics != 0
		canPresent = canPresent || f.Present
	}
	if !canDraw {
		return nil, errors.Wrap(ErrNoUsableQueueFamily, "no family supports graphics")
	}
	if !canPresent {
		return nil, errors.Wrap(ErrNoUsableQueueFamily, "no family can present to the surface")
	}

	plan := &QueuePlan{}
	var best [roleCount]int
	var picked [roleCount]bool
	for i := range best {
		best[i] = -3
	}

	for _, f := range families {
		scores := roleScores(f)
		for _, role := range Roles {
			if !serves(f, role) {
				continue
			}
			if scores[role] > best[role] {
				best[role] = scores[role]
				plan.families[role] = f.Index
				picked[role] = true
			}
		}
	}

	// Graphics families can always do transfer work, and a device without
	// a compute family still needs somewhere to route compute submissions.
	for _, role := range []Role{RoleCompute, RoleTransfer} {
		if !picked[role] {
			plan.families[role] = plan.families[RoleGraphics]
		}
	}

	for _, role := range Roles {
		if _, shared := plan.SharesFamily(role); !shared {
			plan.unique = append(plan.unique, plan.families[role])
		}
	}

	if _, shared := plan.SharesFamily(RolePresent); !shared {
		plan.concurrent = []int{plan.families[RolePresent], plan.families[RoleGraphics]}
	}

	return plan, nil
}
