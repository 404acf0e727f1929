package podcast

import (
	"bytes"
	"encoding/binary"
)

// PCM parameters of synthesized speech.
const (
	SampleRate     = 24000
	Channels       = 1
	BytesPerSample = 2
)

// WAV wraps raw mono 16-bit PCM in a RIFF/WAVE container.
func WAV(pcm []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(44 + len(pcm))

	byteRate := SampleRate * Channels * BytesPerSample
	header := struct {
		ChunkID       [4]byte
		ChunkSize     uint32
		Format        [4]byte
		Subchunk1ID   [4]byte
		Subchunk1Size uint32
		AudioFormat   uint16
		NumChannels   uint16
		SampleRate    uint32
		ByteRate      uint32
		BlockAlign    uint16
		BitsPerSample uint16
		Subchunk2ID   [4]byte
		Subchunk2Size uint32
	}{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     uint32(36 + len(pcm)),
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   Channels,
		SampleRate:    SampleRate,
		ByteRate:      uint32(byteRate),
		BlockAlign:    Channels * BytesPerSample,
		BitsPerSample: 8 * BytesPerSample,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: uint32(len(pcm)),
	}
	// Writing a fixed-size struct to a bytes.Buffer cannot fail.
	_ = binary.Write(&buf, binary.LittleEndian, header)
	buf.Write(pcm)
	return buf.Bytes()
}

// Duration returns the playback length of pcm in seconds.
func Duration(pcm []byte) float64 {
	return float64(len(pcm)) / float64(SampleRate*BytesPerSample)
}
