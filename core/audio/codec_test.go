package audio

import (
	"math"
	"math/rand"
	"testing"
)

func TestDecodePCM16ReadsLittleEndianSamples(t *testing.T) {
	// 0x0000, 0x7FFF, 0x8000 (-32768)
	data := []byte{0x00, 0x00, 0xFF, 0x7F, 0x00, 0x80}

	samples := DecodePCM16(data)

	if len(samples) != 3 {
		t.Fatalf("expected 3 samples, got %d", len(samples))
	}
	if samples[0] != 0 {
		t.Fatalf("expected zero sample, got %f", samples[0])
	}
	if got, want := samples[1], float32(32767)/32768; got != want {
		t.Fatalf("expected max positive sample %f, got %f", want, got)
	}
	if samples[2] != -1 {
		t.Fatalf("expected max negative sample -1, got %f", samples[2])
	}
}

func TestDecodePCM16IgnoresTrailingOddByte(t *testing.T) {
	samples := DecodePCM16([]byte{0x00, 0x00, 0x12})

	if len(samples) != 1 {
		t.Fatalf("expected 1 sample from odd buffer, got %d", len(samples))
	}
}

func TestEncodePCM16ClampsOutOfRangeSamples(t *testing.T) {
	data := EncodePCM16([]float32{2.5, -2.5})

	samples := DecodePCM16(data)
	if got, want := samples[0], float32(32767)/32768; got != want {
		t.Fatalf("expected positive clamp to %f, got %f", want, got)
	}
	if samples[1] != -1 {
		t.Fatalf("expected negative clamp to -1, got %f", samples[1])
	}
}

func TestEncodeDecodeRoundTripStaysWithinQuantizationStep(t *testing.T) {
	const quantizationStep = 1.0 / 32768

	rng := rand.New(rand.NewSource(42))
	samples := make([]float32, 2048)
	for i := range samples {
		samples[i] = rng.Float32()*2 - 1
	}
	samples[0] = -1
	samples[1] = 1
	samples[2] = 0

	decoded := DecodePCM16(EncodePCM16(samples))

	if len(decoded) != len(samples) {
		t.Fatalf("expected %d samples after round trip, got %d", len(samples), len(decoded))
	}
	for i := range samples {
		if diff := math.Abs(float64(decoded[i] - samples[i])); diff > quantizationStep {
			t.Fatalf("sample %d drifted by %g, more than one quantization step %g", i, diff, quantizationStep)
		}
	}
}

func TestBase64FramingRoundTrips(t *testing.T) {
	data := EncodePCM16([]float32{0.25, -0.25, 0.5})

	decoded, err := DecodeBase64(EncodeBase64(data))
	if err != nil {
		t.Fatalf("expected base64 round trip to succeed, got %v", err)
	}
	if string(decoded) != string(data) {
		t.Fatalf("expected base64 round trip to preserve bytes")
	}
}

func TestDurationSec(t *testing.T) {
	if got := DurationSec(24000, 24000); got != 1 {
		t.Fatalf("expected 1s duration, got %f", got)
	}
	if got := DurationSec(1, 0); got != 0 {
		t.Fatalf("expected zero duration for invalid rate, got %f", got)
	}
}
