package audioio

import (
	"encoding/base64"
	"testing"
)

func TestQuantizePCM16_Scale(t *testing.T) {
	samples := []float32{0, 0.5, -0.5, 0.999}
	pcm := QuantizePCM16(samples)

	// 0.999 * 32768 = 32735.232, truncated.
	want := []int16{0, 16384, -16384, 32735}
	for i, w := range want {
		if pcm[i] != w {
			t.Errorf("sample %d: expected %d, got %d", i, w, pcm[i])
		}
	}
}

func TestQuantizePCM16_OutOfRangeWraps(t *testing.T) {
	// 1.5 * 32768 = 49152, which wraps to -16384 as an int16 cast.
	pcm := QuantizePCM16([]float32{1.5})
	if pcm[0] != -16384 {
		t.Errorf("expected wrapped value -16384, got %d", pcm[0])
	}
}

func TestSamplesRoundTripBytes(t *testing.T) {
	samples := []int16{0, 1, -1, 32767, -32768, 12345}
	got := BytesToSamples(SamplesToBytes(samples))

	for i, s := range samples {
		if got[i] != s {
			t.Errorf("sample %d: expected %d, got %d", i, s, got[i])
		}
	}
}

func TestPCMFrame_MimeAndPayload(t *testing.T) {
	block := make([]float32, 2048)
	frame := PCMFrame(block, 48000)

	if frame.MimeType != MimePCMInput {
		t.Errorf("expected mime %q, got %q", MimePCMInput, frame.MimeType)
	}

	raw, err := base64.StdEncoding.DecodeString(frame.Data)
	if err != nil {
		t.Fatalf("payload is not valid base64: %v", err)
	}
	// 48k -> 16k is 3:1 decimation; two bytes per sample.
	ratio := float64(48000) / float64(WireInputRate)
	wantSamples := int(float64(len(block))/ratio + 0.5)
	if len(raw) != wantSamples*2 {
		t.Errorf("expected %d bytes, got %d", wantSamples*2, len(raw))
	}
}

func TestDecodePCM16_Malformed(t *testing.T) {
	if DecodePCM16("not-base64!!!") != nil {
		t.Error("expected nil for malformed payload")
	}
	if DecodePCM16("") != nil {
		t.Error("expected nil for empty payload")
	}
}
