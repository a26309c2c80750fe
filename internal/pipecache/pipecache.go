// Package pipecache persists pipeline cache blobs between runs and refuses
// blobs written by a different device or driver.
package pipecache

import (
	"bytes"
	"encoding/binary"
	"log"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

// HeaderVersionOne is the only header layout defined so far.
const HeaderVersionOne = 1

// HeaderSize is the size of a version one header.
const HeaderSize = 16 + len(uuid.UUID{})

var ErrInvalidHeader = errors.New("invalid pipeline cache header")

// Header is the device-identifying prefix of every pipeline cache blob. All
// fields are stored least significant byte first.
type Header struct {
	Length    uint32
	Version   uint32
	VendorID  uint32
	DeviceID  uint32
	CacheUUID uuid.UUID
}

// Identity is what a cache must have been written by to be reused.
type Identity struct {
	VendorID  uint32
	DeviceID  uint32
	CacheUUID uuid.UUID
}

func ParseHeader(data []byte) (Header, error) {
	var header Header
	if len(data) < HeaderSize {
		return header, errors.Mark(errors.Newf("cache is %d bytes, header needs %d", len(data), HeaderSize), ErrInvalidHeader)
	}

	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &header); err != nil {
		return header, errors.Mark(errors.Wrap(err, "read cache header"), ErrInvalidHeader)
	}
	return header, nil
}

// Validate checks that data starts with a well-formed header written by id.
func Validate(data []byte, id Identity) error {
	header, err := ParseHeader(data)
	if err != nil {
		return err
	}

	switch {
	case header.Length < uint32(HeaderSize) || int(header.Length) > len(data):
		return errors.Mark(errors.Newf("bad header length 0x%x", header.Length), ErrInvalidHeader)
	case header.Version != HeaderVersionOne:
		return errors.Mark(errors.Newf("unsupported header version 0x%x", header.Version), ErrInvalidHeader)
	case header.VendorID != id.VendorID:
		return errors.Mark(errors.Newf("vendor id mismatch: cache 0x%x, device 0x%x", header.VendorID, id.VendorID), ErrInvalidHeader)
	case header.DeviceID != id.DeviceID:
		return errors.Mark(errors.Newf("device id mismatch: cache 0x%x, device 0x%x", header.DeviceID, id.DeviceID), ErrInvalidHeader)
	case header.CacheUUID != id.CacheUUID:
		return errors.Mark(errors.Newf("uuid mismatch: cache %s, device %s", header.CacheUUID, id.CacheUUID), ErrInvalidHeader)
	}
	return nil
}

// Read returns the raw contents of path, or nil when there is no file yet.
func Read(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read pipeline cache %s", path)
	}
	return data, nil
}

// Seed returns data if it can seed a cache on the device described by id.
// A blob from another device is logged, deleted from path and dropped so the
// next Save repopulates it.
func Seed(path string, data []byte, id Identity, logger *log.Logger) []byte {
	if logger == nil {
		logger = log.Default()
	}
	if data == nil {
		logger.Printf("pipecache: miss, %s not found", path)
		return nil
	}

	if err := Validate(data, id); err != nil {
		logger.Printf("pipecache: discarding %s: %v", path, err)
		_ = os.Remove(path)
		return nil
	}

	logger.Printf("pipecache: hit, %d bytes from %s", len(data), path)
	return data
}

// Save writes data to path through a temporary file in the same directory,
// so a crash never leaves a truncated cache behind.
func Save(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*")
	if err != nil {
		return errors.Wrap(err, "create temporary cache file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "write %s", tmp.Name())
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "close %s", tmp.Name())
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrapf(err, "rename cache into %s", path)
	}
	return nil
}
