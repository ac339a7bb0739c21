package format

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileHeader_WriteRead(t *testing.T) {
	t.Parallel()

	header := FileHeader{
		Version:   CurrentVersion,
		BlockSize: 100000,
		Encoding:  2,
		Flags:     FlagNoNames,
	}

	var buf bytes.Buffer
	err := header.Write(&buf)
	require.NoError(t, err)

	// Check magic bytes
	assert.Equal(t, []byte{'F', 'Q', 'L', 0x00}, buf.Bytes()[:4])

	readHeader, err := ReadFileHeader(&buf)
	require.NoError(t, err)
	assert.Equal(t, header, *readHeader)
}

func TestFileHeader_InvalidMagic(t *testing.T) {
	t.Parallel()

	buf := bytes.NewReader([]byte{'F', 'Q', 'Z', 0x00, 1, 0, 0, 0, 0, 0, 0})
	_, err := ReadFileHeader(buf)
	assert.ErrorIs(t, err, ErrBadMagic)
}

func TestFileHeader_Version(t *testing.T) {
	t.Parallel()

	for _, v := range []uint8{0, CurrentVersion + 1} {
		var buf bytes.Buffer
		h := FileHeader{Version: v, BlockSize: 10}
		require.NoError(t, h.Write(&buf))
		_, err := ReadFileHeader(&buf)
		assert.ErrorIs(t, err, ErrVersion, "version %d", v)
	}
}

func TestFileHeader_Truncated(t *testing.T) {
	t.Parallel()

	_, err := ReadFileHeader(bytes.NewReader([]byte{'F', 'Q', 'L', 0x00, 1, 0}))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestBlockHeader_WriteRead(t *testing.T) {
	t.Parallel()

	block := BlockHeader{
		NumSpots:   1000,
		Compressed: [NumStreams]uint32{500, 3000, 5000, 8000},
		Original:   [NumStreams]uint32{4000, 12000, 20000, 20000},
	}

	var buf bytes.Buffer
	require.NoError(t, block.Write(&buf))
	assert.Equal(t, blockHeaderSize, buf.Len())

	readBlock, err := ReadBlockHeader(&buf)
	require.NoError(t, err)
	assert.Equal(t, block, *readBlock)
	assert.Equal(t, 16500, readBlock.PayloadSize())
}

func TestReadBlockHeader_EOF(t *testing.T) {
	t.Parallel()

	_, err := ReadBlockHeader(bytes.NewReader(nil))
	assert.ErrorIs(t, err, io.EOF)

	_, err = ReadBlockHeader(bytes.NewReader([]byte{1, 2, 3}))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestStreamName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		stream int
		want   string
	}{
		{StreamNames, "names"},
		{StreamMeta, "meta"},
		{StreamSequence, "sequence"},
		{StreamQuality, "quality"},
		{NumStreams, "stream 4"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, StreamName(tt.stream))
		})
	}
}
