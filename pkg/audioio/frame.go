package audioio

import "encoding/base64"

// Sample rates on the wire. Outbound microphone audio is sent at 16 kHz;
// audio arriving from the model is PCM16 at 24 kHz.
const (
	WireInputRate  = 16000
	WireOutputRate = 24000
)

// MIME descriptors used to tag realtime media frames.
const (
	MimePCMInput  = "audio/pcm;rate=16000"
	MimePCMOutput = "audio/pcm;rate=24000"
	MimeJPEG      = "image/jpeg"
)

// MediaFrame is a single realtime input chunk: base64 payload plus the MIME
// descriptor the endpoint uses to interpret it.
type MediaFrame struct {
	Data     string `json:"data"`
	MimeType string `json:"mime_type"`
}

// PCMFrame resamples a captured float32 block from the device rate down to
// the wire input rate, quantizes it to PCM16, and packs it into a frame.
// This runs synchronously per captured block; no buffering.
func PCMFrame(samples []float32, deviceRate int) MediaFrame {
	resampled := ResampleMean(samples, deviceRate, WireInputRate)
	pcm := QuantizePCM16(resampled)
	return MediaFrame{
		Data:     base64.StdEncoding.EncodeToString(SamplesToBytes(pcm)),
		MimeType: MimePCMInput,
	}
}

// JPEGFrame packs an encoded JPEG image into a frame.
func JPEGFrame(jpeg []byte) MediaFrame {
	return MediaFrame{
		Data:     base64.StdEncoding.EncodeToString(jpeg),
		MimeType: MimeJPEG,
	}
}

// DecodePCM16 decodes a base64 PCM16 payload into raw samples.
// Returns nil when the payload is malformed.
func DecodePCM16(data string) []int16 {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil || len(raw) == 0 {
		return nil
	}
	return BytesToSamples(raw)
}
