package audio

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"

	"github.com/satriahrh/rapat/domain/entities"
)

// InputMimeType labels microphone chunks sent upstream.
var InputMimeType = fmt.Sprintf("audio/pcm;rate=%d", entities.InputSampleRate)

// MarshalPCM16 converts float samples in [-1, 1] to little-endian PCM16
// bytes, clamping out-of-range values.
func MarshalPCM16(samples []float32) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := int32(s * 32768)
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(int16(v)))
	}
	return buf
}

// EncodeChunk converts float samples to base64-encoded PCM16 for the wire.
func EncodeChunk(samples []float32) string {
	return base64.StdEncoding.EncodeToString(MarshalPCM16(samples))
}

// DecodePCM16 converts little-endian PCM16 bytes back to float samples.
// A trailing odd byte is dropped.
func DecodePCM16(data []byte) []float32 {
	n := len(data) / 2
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		v := int16(binary.LittleEndian.Uint16(data[i*2:]))
		out[i] = float32(v) / 32768
	}
	return out
}
