package audio

// Converter converts PCM buffers to a fixed target format. Create one per
// stream; it carries no state beyond the target and is cheap to copy.
// Conversion order: channel downmix first, then resample, so stereo input is
// never resampled twice.
type Converter struct {
	Target Format
}

// Convert converts pcm from the src format to the converter's target format.
// If src already matches the target, pcm is returned unchanged (zero
// allocation). Only mono and stereo streams are supported; other channel
// counts are returned unchanged.
func (c Converter) Convert(pcm []byte, src Format) []byte {
	if src == c.Target {
		return pcm
	}

	cur := src
	if cur.Channels == 2 && c.Target.Channels == 1 {
		pcm = StereoToMono(pcm)
		cur.Channels = 1
	} else if cur.Channels == 1 && c.Target.Channels == 2 {
		pcm = MonoToStereo(pcm)
		cur.Channels = 2
	}

	if cur.SampleRate != c.Target.SampleRate {
		if cur.Channels == 1 {
			pcm = ResampleMono16(pcm, cur.SampleRate, c.Target.SampleRate)
		} else {
			pcm = ResampleStereo16(pcm, cur.SampleRate, c.Target.SampleRate)
		}
	}
	return pcm
}

// MonoToStereo duplicates each int16 mono sample into a stereo L+R pair.
// Input must be little-endian int16 PCM (2 bytes per sample).
func MonoToStereo(pcm []byte) []byte {
	out := make([]byte, (len(pcm)/2)*4)
	for i := 0; i+1 < len(pcm); i += 2 {
		lo, hi := pcm[i], pcm[i+1]
		j := i * 2
		out[j] = lo
		out[j+1] = hi
		out[j+2] = lo
		out[j+3] = hi
	}
	return out
}

// StereoToMono averages L+R per stereo frame (4 bytes) to produce mono output.
// Uses int32 arithmetic to prevent overflow and clamps to int16 range.
func StereoToMono(pcm []byte) []byte {
	frames := len(pcm) / 4
	out := make([]byte, frames*2)
	for i := range frames {
		l := int32(int16(pcm[i*4]) | int16(pcm[i*4+1])<<8)
		r := int32(int16(pcm[i*4+2]) | int16(pcm[i*4+3])<<8)
		avg := (l + r) / 2

		if avg > 32767 {
			avg = 32767
		} else if avg < -32768 {
			avg = -32768
		}

		out[i*2] = byte(avg)
		out[i*2+1] = byte(avg >> 8)
	}
	return out
}

// ResampleMono16 resamples 16-bit mono PCM from srcRate to dstRate using
// linear interpolation. The input must be little-endian int16 samples. If
// srcRate == dstRate, the input is returned unchanged.
func ResampleMono16(pcm []byte, srcRate, dstRate int) []byte {
	if srcRate <= 0 || dstRate <= 0 {
		return pcm
	}
	if srcRate == dstRate || len(pcm) < 2 {
		return pcm
	}
	srcSamples := len(pcm) / 2
	dstSamples := int(int64(srcSamples) * int64(dstRate) / int64(srcRate))
	if dstSamples == 0 {
		return nil
	}

	out := make([]byte, dstSamples*2)
	ratio := float64(srcRate) / float64(dstRate)

	for i := range dstSamples {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := srcPos - float64(srcIdx)

		s0 := int16(pcm[srcIdx*2]) | int16(pcm[srcIdx*2+1])<<8
		var s1 int16
		if srcIdx+1 < srcSamples {
			s1 = int16(pcm[(srcIdx+1)*2]) | int16(pcm[(srcIdx+1)*2+1])<<8
		} else {
			s1 = s0
		}

		interpolated := int16(float64(s0)*(1-frac) + float64(s1)*frac)
		out[i*2] = byte(interpolated)
		out[i*2+1] = byte(interpolated >> 8)
	}
	return out
}

// ResampleStereo16 resamples 16-bit stereo PCM from srcRate to dstRate using
// linear interpolation. Each stereo frame is 4 bytes (L+R interleaved).
// If srcRate == dstRate, the input is returned unchanged.
func ResampleStereo16(pcm []byte, srcRate, dstRate int) []byte {
	if srcRate <= 0 || dstRate <= 0 {
		return pcm
	}
	if srcRate == dstRate || len(pcm) < 4 {
		return pcm
	}
	srcFrames := len(pcm) / 4
	dstFrames := int(int64(srcFrames) * int64(dstRate) / int64(srcRate))
	if dstFrames == 0 {
		return nil
	}

	out := make([]byte, dstFrames*4)
	ratio := float64(srcRate) / float64(dstRate)

	for i := range dstFrames {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := srcPos - float64(srcIdx)

		for ch := range 2 {
			o := srcIdx*4 + ch*2
			s0 := int16(pcm[o]) | int16(pcm[o+1])<<8
			var s1 int16
			if srcIdx+1 < srcFrames {
				o1 := (srcIdx+1)*4 + ch*2
				s1 = int16(pcm[o1]) | int16(pcm[o1+1])<<8
			} else {
				s1 = s0
			}

			interpolated := int16(float64(s0)*(1-frac) + float64(s1)*frac)
			out[i*4+ch*2] = byte(interpolated)
			out[i*4+ch*2+1] = byte(interpolated >> 8)
		}
	}
	return out
}
