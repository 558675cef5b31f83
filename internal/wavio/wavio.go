// Package wavio parses and encodes PCM16 mono WAV files, generalizing the
// teacher's encode-only WAVExporter.encodeWAV (manual RIFF header
// construction via encoding/binary) to also parse, since the engine reads
// WAV input files as well as writing them.
package wavio

import (
	"bytes"
	"encoding/binary"

	"github.com/tphakala/voiceengine/internal/errors"
)

const (
	bitsPerSamplePCM16 = 16
	pcmFormatTag       = 1
	monoChannels       = 1
	fixedHeaderSize    = 44 // RIFF/WAVE/fmt /data header with no extra chunks
)

// ParseWAV parses a mono 16-bit PCM WAV file and returns its samples and
// sample rate. Any other channel count, bit depth, or format tag is
// rejected rather than silently resampled or reinterpreted.
func ParseWAV(data []byte) (pcm []int16, sampleRate int, err error) {
	if len(data) < fixedHeaderSize {
		return nil, 0, errors.Newf("wav data too short: %d bytes", len(data)).
			Component("wavio").
			Category(errors.CategoryFileFormat).
			Context("length", len(data)).
			Build()
	}

	r := bytes.NewReader(data)

	var riffTag [4]byte
	if _, err := r.Read(riffTag[:]); err != nil || string(riffTag[:]) != "RIFF" {
		return nil, 0, errors.Newf("missing RIFF tag").
			Component("wavio").
			Category(errors.CategoryFileFormat).
			Build()
	}

	var chunkSize uint32
	if err := binary.Read(r, binary.LittleEndian, &chunkSize); err != nil {
		return nil, 0, wrapReadErr(err, "chunk_size")
	}

	var waveTag [4]byte
	if _, err := r.Read(waveTag[:]); err != nil || string(waveTag[:]) != "WAVE" {
		return nil, 0, errors.Newf("missing WAVE tag").
			Component("wavio").
			Category(errors.CategoryFileFormat).
			Build()
	}

	var (
		haveFmt    bool
		channels   uint16
		sr         uint32
		bitsPerSmp uint16
		dataBytes  []byte
	)

	for r.Len() > 0 && (!haveFmt || dataBytes == nil) {
		var tag [4]byte
		if _, err := r.Read(tag[:]); err != nil {
			break
		}
		var size uint32
		if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
			return nil, 0, wrapReadErr(err, "subchunk_size")
		}

		switch string(tag[:]) {
		case "fmt ":
			body := make([]byte, size)
			if _, err := r.Read(body); err != nil {
				return nil, 0, wrapReadErr(err, "fmt_body")
			}
			if len(body) < 16 {
				return nil, 0, errors.Newf("fmt chunk too short: %d bytes", len(body)).
					Component("wavio").
					Category(errors.CategoryFileFormat).
					Build()
			}
			audioFormat := binary.LittleEndian.Uint16(body[0:2])
			channels = binary.LittleEndian.Uint16(body[2:4])
			sr = binary.LittleEndian.Uint32(body[4:8])
			bitsPerSmp = binary.LittleEndian.Uint16(body[14:16])

			if audioFormat != pcmFormatTag {
				return nil, 0, errors.Newf("unsupported wav audio format tag %d, only PCM (1) is supported", audioFormat).
					Component("wavio").
					Category(errors.CategoryFileFormat).
					Context("audio_format", audioFormat).
					Build()
			}
			haveFmt = true

		case "data":
			dataBytes = make([]byte, size)
			if _, err := r.Read(dataBytes); err != nil {
				return nil, 0, wrapReadErr(err, "data_body")
			}

		default:
			// Skip unknown chunks (e.g. LIST, fact) by discarding their body.
			skip := make([]byte, size)
			if _, err := r.Read(skip); err != nil {
				return nil, 0, wrapReadErr(err, "skip_chunk")
			}
		}

		// Chunks are word-aligned: an odd-sized chunk has one pad byte.
		if size%2 == 1 && r.Len() > 0 {
			var pad [1]byte
			_, _ = r.Read(pad[:])
		}
	}

	if !haveFmt {
		return nil, 0, errors.Newf("missing fmt chunk").
			Component("wavio").
			Category(errors.CategoryFileFormat).
			Build()
	}
	if dataBytes == nil {
		return nil, 0, errors.Newf("missing data chunk").
			Component("wavio").
			Category(errors.CategoryFileFormat).
			Build()
	}
	if channels != monoChannels {
		return nil, 0, errors.Newf("unsupported channel count %d, only mono is supported", channels).
			Component("wavio").
			Category(errors.CategoryFileFormat).
			Context("channels", channels).
			Build()
	}
	if bitsPerSmp != bitsPerSamplePCM16 {
		return nil, 0, errors.Newf("unsupported bit depth %d, only 16-bit PCM is supported", bitsPerSmp).
			Component("wavio").
			Category(errors.CategoryFileFormat).
			Context("bits_per_sample", bitsPerSmp).
			Build()
	}

	samples := make([]int16, len(dataBytes)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(dataBytes[i*2 : i*2+2]))
	}

	return samples, int(sr), nil
}

// EncodeWAV encodes mono 16-bit PCM samples at sampleRate as a complete WAV
// file, following the teacher's encodeWAV header layout exactly (RIFF/
// WAVE/fmt /data, no extra chunks).
func EncodeWAV(pcm []int16, sampleRate int) []byte {
	const bytesPerSample = bitsPerSamplePCM16 / 8
	byteRate := sampleRate * monoChannels * bytesPerSample
	blockAlign := monoChannels * bytesPerSample
	dataSize := uint32(len(pcm) * bytesPerSample)
	chunkSize := 36 + dataSize

	buf := bytes.NewBuffer(make([]byte, 0, fixedHeaderSize+int(dataSize)))

	buf.WriteString("RIFF")
	_ = binary.Write(buf, binary.LittleEndian, chunkSize)
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	_ = binary.Write(buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(buf, binary.LittleEndian, uint16(pcmFormatTag))
	_ = binary.Write(buf, binary.LittleEndian, uint16(monoChannels))
	_ = binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	_ = binary.Write(buf, binary.LittleEndian, uint32(byteRate))
	_ = binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	_ = binary.Write(buf, binary.LittleEndian, uint16(bitsPerSamplePCM16))
	buf.WriteString("data")
	_ = binary.Write(buf, binary.LittleEndian, dataSize)

	for _, s := range pcm {
		_ = binary.Write(buf, binary.LittleEndian, s)
	}

	return buf.Bytes()
}

func wrapReadErr(err error, field string) error {
	return errors.New(err).
		Component("wavio").
		Category(errors.CategoryFileFormat).
		Context("field", field).
		Build()
}
