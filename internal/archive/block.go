package archive

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/vertti/fastqload/internal/defline"
	"github.com/vertti/fastqload/internal/encoder"
	"github.com/vertti/fastqload/internal/format"
	"github.com/vertti/fastqload/internal/spot"
)

// ErrCorrupt is returned when a block does not decode.
var ErrCorrupt = errors.New("corrupt block")

// Per-spot flag bits in the meta stream.
const (
	spotFiltered byte = 1 << 0
	spotNumeric  byte = 1 << 1
)

// blockBuffers holds reusable buffers for block encoding.
// Pooled via sync.Pool to avoid allocations across blocks.
type blockBuffers struct {
	streams    [format.NumStreams][]byte
	compressed [format.NumStreams][]byte
	out        bytes.Buffer
}

var blockBufferPool = sync.Pool{
	New: func() any {
		return &blockBuffers{}
	},
}

func (b *blockBuffers) reset() {
	for i := range b.streams {
		b.streams[i] = b.streams[i][:0]
		b.compressed[i] = b.compressed[i][:0]
	}
	b.out.Reset()
}

// encodeBlock serializes spots into a block header followed by its
// compressed streams.
func encodeBlock(spots []*spot.Spot, zstdEnc *zstd.Encoder, enc encoder.QualityEncoding) ([]byte, error) {
	bufs := blockBufferPool.Get().(*blockBuffers) //nolint:errcheck // pool always returns *blockBuffers
	bufs.reset()
	defer blockBufferPool.Put(bufs)

	for _, s := range spots {
		bufs.appendSpot(s, enc)
	}

	//nolint:gosec // sizes are bounded by the block size
	h := format.BlockHeader{NumSpots: uint32(len(spots))}
	for i := range bufs.streams {
		bufs.compressed[i] = zstdEnc.EncodeAll(bufs.streams[i], bufs.compressed[i][:0])
		h.Compressed[i] = uint32(len(bufs.compressed[i])) //nolint:gosec // bounded
		h.Original[i] = uint32(len(bufs.streams[i]))      //nolint:gosec // bounded
	}
	if err := h.Write(&bufs.out); err != nil {
		return nil, err
	}
	for _, data := range bufs.compressed {
		bufs.out.Write(data)
	}

	// Copy output so the pooled buffer can be reused
	out := make([]byte, bufs.out.Len())
	copy(out, bufs.out.Bytes())
	return out, nil
}

func (b *blockBuffers) appendSpot(s *spot.Spot, enc encoder.QualityEncoding) {
	names := b.streams[format.StreamNames]
	names = appendString(names, s.Name)
	names = appendString(names, s.SpotGroup)
	b.streams[format.StreamNames] = names

	scores := encoder.Phred(s.Quality, s.Numeric, enc)
	encoder.DeltaEncode(scores)

	var flags byte
	if s.Filtered {
		flags |= spotFiltered
	}
	if s.Numeric {
		flags |= spotNumeric
	}
	meta := b.streams[format.StreamMeta]
	meta = append(meta, flags, byte(s.Platform))
	meta = binary.AppendUvarint(meta, uint64(s.ClipLeft))
	meta = binary.AppendUvarint(meta, uint64(s.ClipRight))
	meta = binary.AppendUvarint(meta, uint64(s.Channel))
	meta = binary.AppendUvarint(meta, uint64(s.NanoReadNo))
	meta = appendString(meta, s.CSKey)
	meta = binary.AppendUvarint(meta, uint64(len(scores)))
	meta = append(meta, byte(len(s.Reads)))
	for _, r := range s.Reads {
		meta = binary.AppendUvarint(meta, uint64(r.Len))
		var filtered byte
		if r.Filtered {
			filtered = 1
		}
		meta = append(meta, byte(r.Type), filtered, byte(r.PoreRead))
		meta = binary.AppendUvarint(meta, uint64(r.Number))
		meta = appendString(meta, r.Label)
	}
	b.streams[format.StreamMeta] = meta

	b.streams[format.StreamSequence] = append(b.streams[format.StreamSequence], s.Sequence...)
	b.streams[format.StreamQuality] = append(b.streams[format.StreamQuality], scores...)
}

func appendString(dst []byte, s string) []byte {
	dst = binary.AppendUvarint(dst, uint64(len(s)))
	return append(dst, s...)
}

// decodeBlock decompresses the streams of one block and rebuilds its spots.
func decodeBlock(h *format.BlockHeader, compressed [format.NumStreams][]byte, zstdDec *zstd.Decoder, enc encoder.QualityEncoding) ([]*spot.Spot, error) {
	var br blockReader
	for i := range compressed {
		if len(compressed[i]) == 0 {
			br.streams[i] = stream{name: format.StreamName(i)}
			continue
		}
		data, err := zstdDec.DecodeAll(compressed[i], make([]byte, 0, h.Original[i]))
		if err != nil {
			return nil, fmt.Errorf("decompressing %s: %w", format.StreamName(i), err)
		}
		br.streams[i] = stream{data: data, name: format.StreamName(i)}
	}

	out := make([]*spot.Spot, 0, h.NumSpots)
	for i := uint32(0); i < h.NumSpots; i++ {
		s, err := br.readSpot(enc)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// blockReader tracks offsets while reading block data.
type blockReader struct {
	streams [format.NumStreams]stream
}

type stream struct {
	data []byte
	off  int
	name string
}

func (s *stream) truncated() error {
	return fmt.Errorf("%w: truncated %s data", ErrCorrupt, s.name)
}

func (s *stream) uvarint() (int, error) {
	v, n := binary.Uvarint(s.data[s.off:])
	if n <= 0 {
		return 0, s.truncated()
	}
	s.off += n
	return int(v), nil //nolint:gosec // written from int
}

func (s *stream) readByte() (byte, error) {
	if s.off >= len(s.data) {
		return 0, s.truncated()
	}
	b := s.data[s.off]
	s.off++
	return b, nil
}

func (s *stream) next(n int) ([]byte, error) {
	if n < 0 || s.off+n > len(s.data) {
		return nil, s.truncated()
	}
	b := s.data[s.off : s.off+n]
	s.off += n
	return b, nil
}

func (s *stream) readString() (string, error) {
	n, err := s.uvarint()
	if err != nil {
		return "", err
	}
	b, err := s.next(n)
	return string(b), err
}

func (br *blockReader) readSpot(enc encoder.QualityEncoding) (*spot.Spot, error) {
	names := &br.streams[format.StreamNames]
	meta := &br.streams[format.StreamMeta]

	s := &spot.Spot{}
	var err error
	if s.Name, err = names.readString(); err != nil {
		return nil, err
	}
	if s.SpotGroup, err = names.readString(); err != nil {
		return nil, err
	}

	flags, err := meta.readByte()
	if err != nil {
		return nil, err
	}
	s.Filtered = flags&spotFiltered != 0
	s.Numeric = flags&spotNumeric != 0
	platform, err := meta.readByte()
	if err != nil {
		return nil, err
	}
	s.Platform = defline.Platform(platform)
	for _, dst := range []*int{&s.ClipLeft, &s.ClipRight, &s.Channel, &s.NanoReadNo} {
		if *dst, err = meta.uvarint(); err != nil {
			return nil, err
		}
	}
	if s.CSKey, err = meta.readString(); err != nil {
		return nil, err
	}
	qualLen, err := meta.uvarint()
	if err != nil {
		return nil, err
	}
	nreads, err := meta.readByte()
	if err != nil {
		return nil, err
	}
	if nreads > spot.MaxReads {
		return nil, fmt.Errorf("%w: spot has %d reads", ErrCorrupt, nreads)
	}

	s.Reads = make([]spot.Read, nreads)
	start := 0
	for i := range s.Reads {
		r := &s.Reads[i]
		r.Start = start
		if r.Len, err = meta.uvarint(); err != nil {
			return nil, err
		}
		start += r.Len
		b, err := meta.next(3)
		if err != nil {
			return nil, err
		}
		r.Type, r.Filtered, r.PoreRead = spot.ReadType(b[0]), b[1] != 0, defline.PoreRead(b[2])
		if r.Number, err = meta.uvarint(); err != nil {
			return nil, err
		}
		if r.Label, err = meta.readString(); err != nil {
			return nil, err
		}
	}

	seq, err := br.streams[format.StreamSequence].next(start)
	if err != nil {
		return nil, err
	}
	s.Sequence = string(seq)

	q, err := br.streams[format.StreamQuality].next(qualLen)
	if err != nil {
		return nil, err
	}
	scores := make([]byte, len(q))
	copy(scores, q)
	encoder.DeltaDecode(scores)
	s.Quality = qualityText(scores, s.Numeric, enc)
	return s, nil
}

// qualityText renders scores the way the source files carried them.
func qualityText(scores []byte, numeric bool, enc encoder.QualityEncoding) string {
	if numeric {
		fields := make([]string, len(scores))
		for i, v := range scores {
			fields[i] = strconv.Itoa(int(v))
		}
		return strings.Join(fields, " ")
	}
	offset := byte(enc.Offset())
	out := make([]byte, len(scores))
	for i, v := range scores {
		out[i] = v + offset
	}
	return string(out)
}
