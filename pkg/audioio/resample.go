// Package audioio provides sample-rate conversion and PCM framing for the
// live session audio path. Capture devices deliver float32 blocks at the
// device rate; the wire wants 16-bit PCM at fixed rates, so everything here
// converts between those two worlds.
package audioio

// ResampleMean converts a block of mono float32 samples from one rate to
// another by averaging every input sample that maps into an output slot.
// When upsampling leaves a slot with no contributing input, the nearest
// earlier sample is reused. The input block is returned unchanged when the
// rates match.
func ResampleMean(samples []float32, fromRate, toRate int) []float32 {
	if fromRate == toRate || len(samples) == 0 {
		return samples
	}

	ratio := float64(fromRate) / float64(toRate)
	newLen := int(float64(len(samples))/ratio + 0.5)
	if newLen == 0 {
		return []float32{}
	}

	result := make([]float32, newLen)
	offset := 0
	for i := 0; i < newLen; i++ {
		next := int(float64(i+1)*ratio + 0.5)
		var accum float64
		count := 0
		for j := offset; j < next && j < len(samples); j++ {
			accum += float64(samples[j])
			count++
		}
		if count > 0 {
			result[i] = float32(accum / float64(count))
		} else {
			// Upsampling slot with no fresh input: hold the last
			// consumed value.
			idx := offset - 1
			if idx < 0 {
				idx = 0
			}
			if idx >= len(samples) {
				idx = len(samples) - 1
			}
			result[i] = samples[idx]
		}
		offset = next
	}
	return result
}

// Resample converts PCM16 audio from one sample rate to another using linear
// interpolation. Used on the recording path where both inputs are already
// 16-bit. For speech this is plenty; the wire path uses ResampleMean.
func Resample(samples []int16, fromRate, toRate int) []int16 {
	if fromRate == toRate {
		return samples
	}
	if len(samples) == 0 {
		return samples
	}

	ratio := float64(fromRate) / float64(toRate)
	newLen := int(float64(len(samples)) / ratio)
	if newLen == 0 {
		return []int16{}
	}

	result := make([]int16, newLen)
	for i := 0; i < newLen; i++ {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := srcPos - float64(srcIdx)

		if srcIdx >= len(samples)-1 {
			result[i] = samples[len(samples)-1]
		} else {
			s1 := float64(samples[srcIdx])
			s2 := float64(samples[srcIdx+1])
			result[i] = int16(s1 + frac*(s2-s1))
		}
	}
	return result
}
