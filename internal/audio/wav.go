package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// WAVHeaderSize is the size of a canonical PCM WAV header.
const WAVHeaderSize = 44

var ErrNotWAV = errors.New("not a RIFF/WAVE stream")

// WAVFormat describes the fields of a canonical header that matter for
// streaming PCM.
type WAVFormat struct {
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	BitsPerSample uint16
	DataSize      uint32
}

// ReadWAVHeader consumes a 44-byte canonical header from r.
func ReadWAVHeader(r io.Reader) (WAVFormat, error) {
	header := make([]byte, WAVHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return WAVFormat{}, fmt.Errorf("failed to read WAV header: %w", err)
	}
	return ParseWAVHeader(header)
}

// ParseWAVHeader validates a canonical header and extracts its format.
func ParseWAVHeader(header []byte) (WAVFormat, error) {
	if len(header) < WAVHeaderSize {
		return WAVFormat{}, fmt.Errorf("WAV data too short: need at least %d bytes, got %d", WAVHeaderSize, len(header))
	}
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return WAVFormat{}, ErrNotWAV
	}
	f := WAVFormat{
		AudioFormat:   binary.LittleEndian.Uint16(header[20:22]),
		NumChannels:   binary.LittleEndian.Uint16(header[22:24]),
		SampleRate:    binary.LittleEndian.Uint32(header[24:28]),
		BitsPerSample: binary.LittleEndian.Uint16(header[34:36]),
		DataSize:      binary.LittleEndian.Uint32(header[40:44]),
	}
	if f.AudioFormat != 1 {
		return f, fmt.Errorf("unsupported audio format: %d (only PCM is supported)", f.AudioFormat)
	}
	if f.BitsPerSample != 16 {
		return f, fmt.Errorf("unsupported bit depth: %d (only 16-bit is supported)", f.BitsPerSample)
	}
	if f.NumChannels != 1 {
		return f, fmt.Errorf("unsupported channel count: %d (only mono is supported)", f.NumChannels)
	}
	return f, nil
}

// EncodeWAV wraps 16-bit mono PCM bytes in a canonical WAV header.
func EncodeWAV(pcm []byte, sampleRate int) ([]byte, error) {
	if len(pcm) == 0 {
		return nil, errors.New("cannot encode empty audio")
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	dataSize := uint32(len(pcm))
	buf := bytes.NewBuffer(make([]byte, 0, WAVHeaderSize+len(pcm)))
	buf.WriteString("RIFF")
	_ = binary.Write(buf, binary.LittleEndian, 36+dataSize)
	buf.WriteString("WAVEfmt ")
	_ = binary.Write(buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(buf, binary.LittleEndian, uint16(1)) // PCM
	_ = binary.Write(buf, binary.LittleEndian, uint16(1)) // mono
	_ = binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	_ = binary.Write(buf, binary.LittleEndian, uint32(sampleRate*BytesPerSample))
	_ = binary.Write(buf, binary.LittleEndian, uint16(BytesPerSample))
	_ = binary.Write(buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	_ = binary.Write(buf, binary.LittleEndian, dataSize)
	buf.Write(pcm)
	return buf.Bytes(), nil
}
