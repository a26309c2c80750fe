// Package pipeline carries the SPIR-V the graphics pipeline is built from.
package pipeline

import (
	"embed"
	"encoding/binary"

	"github.com/cockroachdb/errors"
)

// spirvMagic is the first word of every SPIR-V module.
const spirvMagic = 0x07230203

//go:embed shaders/*.spv
var fileSystem embed.FS

// Shaders holds the decoded vertex and fragment stages.
type Shaders struct {
	Vertex   []uint32
	Fragment []uint32
}

// Load decodes the embedded triangle shaders.
func Load() (Shaders, error) {
	vert, err := load("shaders/triangle.vert.spv")
	if err != nil {
		return Shaders{}, err
	}
	frag, err := load("shaders/triangle.frag.spv")
	if err != nil {
		return Shaders{}, err
	}
	return Shaders{Vertex: vert, Fragment: frag}, nil
}

func load(name string) ([]uint32, error) {
	b, err := fileSystem.ReadFile(name)
	if err != nil {
		return nil, errors.Wrapf(err, "read shader %s", name)
	}
	code, err := Bytecode(b)
	if err != nil {
		return nil, errors.Wrapf(err, "decode shader %s", name)
	}
	return code, nil
}

// Bytecode converts a little-endian SPIR-V file into words.
func Bytecode(b []byte) ([]uint32, error) {
	if len(b) == 0 || len(b)%4 != 0 {
		return nil, errors.Newf("spir-v length %d is not a non-zero multiple of 4", len(b))
	}

	code := make([]uint32, len(b)/4)
	for i := range code {
		code[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	if code[0] != spirvMagic {
		return nil, errors.Newf("bad spir-v magic %#08x", code[0])
	}
	return code, nil
}
