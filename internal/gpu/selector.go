// Package gpu picks the physical device to render with and decides how its
// queue families are shared between the graphics, compute, transfer and
// present roles.
package gpu

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// ErrNoSuitableDevice is returned by Select when no candidate reports at
// least the requested API version.
var ErrNoSuitableDevice = errors.New("no suitable physical device")

// Version is a packed Vulkan API version.
type Version uint32

func MakeVersion(major, minor, patch uint32) Version {
	return Version(major<<22 | minor<<12 | patch)
}

func (v Version) Major() uint32 { return (uint32(v) >> 22) & 0x7f }
func (v Version) Minor() uint32 { return (uint32(v) >> 12) & 0x3ff }
func (v Version) Patch() uint32 { return uint32(v) & 0xfff }

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major(), v.Minor(), v.Patch())
}

type DeviceClass int

const (
	ClassOther DeviceClass = iota
	ClassIntegrated
	ClassDiscrete
	ClassVirtual
	ClassCPU
)

var classNames = map[DeviceClass]string{
	ClassOther:      "other",
	ClassIntegrated: "integrated",
	ClassDiscrete:   "discrete",
	ClassVirtual:    "virtual",
	ClassCPU:        "cpu",
}

func (c DeviceClass) String() string {
	if name, ok := classNames[c]; ok {
		return name
	}
	return fmt.Sprintf("DeviceClass(%d)", int(c))
}

const (
	VendorNVIDIA uint32 = 0x10DE
	VendorAMD    uint32 = 0x1002
)

// Vendor bonuses are large enough to outweigh any realistic limit-derived
// base score, but small next to the class factor.
var vendorBonus = map[uint32]uint64{
	VendorNVIDIA: 16777216,
	VendorAMD:    4194304,
}

// Limits holds the subset of device limits used for scoring.
type Limits struct {
	MaxImageDimension1D  uint32
	MaxImageDimension2D  uint32
	MaxFramebufferWidth  uint32
	MaxFramebufferHeight uint32
}

// Candidate is a snapshot of one enumerated physical device. Index is its
// position in the enumeration result and is how callers map the selection
// back to a driver handle.
type Candidate struct {
	Index      int
	Name       string
	APIVersion Version
	VendorID   uint32
	DeviceID   uint32
	Class      DeviceClass
	Limits     Limits
}

// Score rates a candidate. Device class dominates, the vendor bonus breaks
// ties within a class and raw limits break whatever remains.
func Score(c Candidate) uint64 {
	l := c.Limits
	score := uint64(l.MaxImageDimension1D)*uint64(l.MaxImageDimension2D)/1024 +
		uint64(l.MaxFramebufferWidth)*uint64(l.MaxFramebufferHeight)/1024

	score += vendorBonus[c.VendorID]

	switch c.Class {
	case ClassDiscrete:
		score *= 1000
	case ClassIntegrated:
		score *= 10
	case ClassVirtual:
		score /= 10
	default:
		score /= 1000
	}

	return score
}

// Select returns the highest scoring candidate whose API version is at
// least minVersion. On equal scores the earlier candidate wins.
func Select(candidates []Candidate, minVersion Version) (Candidate, error) {
	var best Candidate
	var bestScore uint64
	found := false

	for _, c := range candidates {
		if c.APIVersion < minVersion {
			continue
		}

		score := Score(c)
		if !found || score > bestScore {
			best = c
			bestScore = score
			found = true
		}
	}

	if !found {
		return Candidate{}, errors.Wrapf(ErrNoSuitableDevice, "%d candidates, none at API %s or newer", len(candidates), minVersion)
	}

	return best, nil
}
