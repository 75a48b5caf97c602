package audio

import (
	"encoding/base64"
	"encoding/binary"
	"math"
)

// DecodePCM16 converts little-endian signed 16-bit samples into normalized
// float32 samples in [-1, 1). A trailing odd byte is ignored.
func DecodePCM16(data []byte) []float32 {
	samples := make([]float32, 0, len(data)/2)
	for i := 0; i+1 < len(data); i += 2 {
		sample := int16(binary.LittleEndian.Uint16(data[i:]))
		samples = append(samples, float32(sample)/32768.0)
	}
	return samples
}

// EncodePCM16 converts normalized float32 samples into little-endian signed
// 16-bit PCM. Samples are clamped to [-1, 1]. Positive samples scale by
// 0x7FFF and negative by 0x8000, the standard PCM convention where the
// maximum negative magnitude is one step larger than the positive one.
func EncodePCM16(samples []float32) []byte {
	data := make([]byte, len(samples)*2)
	for i, sample := range samples {
		clamped := float64(sample)
		if clamped > 1 {
			clamped = 1
		} else if clamped < -1 {
			clamped = -1
		}

		var value int16
		if clamped >= 0 {
			value = int16(math.Round(clamped * 0x7FFF))
		} else {
			value = int16(math.Round(clamped * 0x8000))
		}
		binary.LittleEndian.PutUint16(data[i*2:], uint16(value))
	}
	return data
}

// EncodeBase64 wraps a PCM byte buffer for JSON transport.
func EncodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeBase64 unwraps a JSON-transported PCM payload.
func DecodeBase64(encoded string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(encoded)
}

// DurationSec reports the playback duration of a decoded sample buffer.
func DurationSec(sampleCount, sampleRate int) float64 {
	if sampleRate <= 0 {
		return 0
	}
	return float64(sampleCount) / float64(sampleRate)
}
