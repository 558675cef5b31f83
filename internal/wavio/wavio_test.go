package wavio

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeThenParseRoundTrips(t *testing.T) {
	t.Parallel()
	pcm := []int16{0, 100, -100, 32767, -32768, 42}

	data := EncodeWAV(pcm, 16000)
	got, sr, err := ParseWAV(data)

	require.NoError(t, err)
	assert.Equal(t, 16000, sr)
	assert.Equal(t, pcm, got)
}

func TestEncodeProducesExpectedHeaderLayout(t *testing.T) {
	t.Parallel()
	data := EncodeWAV([]int16{1, 2, 3}, 48000)

	assert.Equal(t, "RIFF", string(data[0:4]))
	assert.Equal(t, "WAVE", string(data[8:12]))
	assert.Equal(t, "fmt ", string(data[12:16]))
	assert.Equal(t, uint32(16), binary.LittleEndian.Uint32(data[16:20]))
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(data[20:22])) // PCM
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(data[22:24])) // mono
	assert.Equal(t, uint32(48000), binary.LittleEndian.Uint32(data[24:28]))
	assert.Equal(t, uint16(16), binary.LittleEndian.Uint16(data[34:36])) // bits/sample
	assert.Equal(t, "data", string(data[36:40]))
	assert.Equal(t, uint32(6), binary.LittleEndian.Uint32(data[40:44])) // 3 samples * 2 bytes
}

func TestParseRejectsTooShortInput(t *testing.T) {
	t.Parallel()
	_, _, err := ParseWAV([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestParseRejectsMissingRIFFTag(t *testing.T) {
	t.Parallel()
	data := EncodeWAV([]int16{1}, 8000)
	data[0] = 'X'
	_, _, err := ParseWAV(data)
	assert.Error(t, err)
}

func TestParseRejectsStereo(t *testing.T) {
	t.Parallel()
	data := EncodeWAV([]int16{1, 2}, 8000)
	binary.LittleEndian.PutUint16(data[22:24], 2) // channels = 2
	_, _, err := ParseWAV(data)
	assert.Error(t, err)
}

func TestParseRejectsNonPCMFormat(t *testing.T) {
	t.Parallel()
	data := EncodeWAV([]int16{1, 2}, 8000)
	binary.LittleEndian.PutUint16(data[20:22], 3) // IEEE float tag
	_, _, err := ParseWAV(data)
	assert.Error(t, err)
}

func TestParseRejectsNon16BitDepth(t *testing.T) {
	t.Parallel()
	data := EncodeWAV([]int16{1, 2}, 8000)
	binary.LittleEndian.PutUint16(data[34:36], 8) // 8-bit
	_, _, err := ParseWAV(data)
	assert.Error(t, err)
}

func TestParseSkipsUnknownChunksBeforeData(t *testing.T) {
	t.Parallel()
	base := EncodeWAV([]int16{10, 20, 30}, 16000)

	// Splice a "LIST" chunk with a 4-byte body between fmt and data.
	fmtEnd := 12 + 8 + 16 // "fmt " header + body
	extra := append([]byte("LIST"), 4, 0, 0, 0)
	extra = append(extra, []byte{0xDE, 0xAD, 0xBE, 0xEF}...)
	withExtra := append(append(append([]byte{}, base[:fmtEnd]...), extra...), base[fmtEnd:]...)

	// Fix up RIFF chunk size for the inserted bytes.
	newChunkSize := binary.LittleEndian.Uint32(base[4:8]) + uint32(len(extra))
	binary.LittleEndian.PutUint32(withExtra[4:8], newChunkSize)

	got, sr, err := ParseWAV(withExtra)
	require.NoError(t, err)
	assert.Equal(t, 16000, sr)
	assert.Equal(t, []int16{10, 20, 30}, got)
}
