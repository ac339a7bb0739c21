// Package format defines the FQL container that holds loaded spots.
package format

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Magic bytes identifying an FQL archive.
var Magic = [4]byte{'F', 'Q', 'L', 0x00}

// Format flags.
const (
	FlagNoNames uint8 = 1 << 0 // Spot names were discarded at load time
)

// Supported file format versions.
const (
	Version1 uint8 = 1

	CurrentVersion = Version1
)

var (
	// ErrBadMagic is returned for input that is not an FQL archive.
	ErrBadMagic = errors.New("invalid magic bytes: not an FQL archive")
	// ErrVersion is returned for archives newer than this reader.
	ErrVersion = errors.New("unsupported archive version")
)

// Streams of a block, stored in this order.
const (
	StreamNames    = iota // spot names and spot groups
	StreamMeta            // read layout, clips, flags
	StreamSequence        // bases
	StreamQuality         // delta coded Phred scores
	NumStreams
)

// StreamName returns a label for stream i used in error messages.
func StreamName(i int) string {
	switch i {
	case StreamNames:
		return "names"
	case StreamMeta:
		return "meta"
	case StreamSequence:
		return "sequence"
	case StreamQuality:
		return "quality"
	}
	return fmt.Sprintf("stream %d", i)
}

const fileHeaderSize = 7

// FileHeader is written at the start of every archive.
type FileHeader struct {
	Version   uint8
	BlockSize uint32 // spots per block
	Encoding  uint8  // quality offset family of the source files
	Flags     uint8
}

// Write serializes the file header to the writer.
func (h *FileHeader) Write(w io.Writer) error {
	if _, err := w.Write(Magic[:]); err != nil {
		return err
	}
	buf := make([]byte, fileHeaderSize)
	buf[0] = h.Version
	binary.LittleEndian.PutUint32(buf[1:5], h.BlockSize)
	buf[5] = h.Encoding
	buf[6] = h.Flags
	_, err := w.Write(buf)
	return err
}

// ReadFileHeader reads and validates a file header.
func ReadFileHeader(r io.Reader) (*FileHeader, error) {
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, err
	}
	if magic != Magic {
		return nil, ErrBadMagic
	}

	buf := make([]byte, fileHeaderSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	h := &FileHeader{
		Version:   buf[0],
		BlockSize: binary.LittleEndian.Uint32(buf[1:5]),
		Encoding:  buf[5],
		Flags:     buf[6],
	}
	if h.Version == 0 || h.Version > CurrentVersion {
		return nil, fmt.Errorf("%w: %d", ErrVersion, h.Version)
	}
	return h, nil
}

const blockHeaderSize = 4 + 8*NumStreams

// BlockHeader precedes each block of compressed streams.
type BlockHeader struct {
	NumSpots   uint32
	Compressed [NumStreams]uint32 // stored size of each stream
	Original   [NumStreams]uint32 // size of each stream before compression
}

// Write serializes the block header.
func (h *BlockHeader) Write(w io.Writer) error {
	buf := make([]byte, blockHeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], h.NumSpots)
	off := 4
	for i := 0; i < NumStreams; i++ {
		binary.LittleEndian.PutUint32(buf[off:], h.Compressed[i])
		binary.LittleEndian.PutUint32(buf[off+4:], h.Original[i])
		off += 8
	}
	_, err := w.Write(buf)
	return err
}

// PayloadSize is the number of stream bytes following the header.
func (h *BlockHeader) PayloadSize() int {
	n := 0
	for _, c := range h.Compressed {
		n += int(c)
	}
	return n
}

// ReadBlockHeader reads a block header. It returns io.EOF when r is
// exhausted on a block boundary.
func ReadBlockHeader(r io.Reader) (*BlockHeader, error) {
	buf := make([]byte, blockHeaderSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	h := &BlockHeader{NumSpots: binary.LittleEndian.Uint32(buf[0:4])}
	off := 4
	for i := 0; i < NumStreams; i++ {
		h.Compressed[i] = binary.LittleEndian.Uint32(buf[off:])
		h.Original[i] = binary.LittleEndian.Uint32(buf[off+4:])
		off += 8
	}
	return h, nil
}
