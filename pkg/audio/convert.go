package audio

// Full-scale divisors for 16-bit signed PCM. A stereo downmix sums both
// channels in integer arithmetic and divides by twice the full scale.
const (
	int16Scale     = 32768.0
	int16StereoSum = 65536.0
)

// MonoFromInt16 normalises single-channel 16-bit samples: out[i] = in[i] / 32768.
func MonoFromInt16(pcm []int16) PCM {
	out := make(PCM, len(pcm))
	for i, s := range pcm {
		out[i] = float32(s) / int16Scale
	}
	return out
}

// DownmixStereo folds interleaved L/R 16-bit samples into mono:
// out[i] = (L[i] + R[i]) / 65536. The channel sum is formed on integers before
// the float conversion, so results are bit-exact with that ordering. A trailing
// unpaired sample is ignored.
func DownmixStereo(pcm []int16) PCM {
	frames := len(pcm) / 2
	out := make(PCM, frames)
	for i := range frames {
		sum := int32(pcm[2*i]) + int32(pcm[2*i+1])
		out[i] = float32(sum) / int16StereoSum
	}
	return out
}

// SplitStereo de-interleaves L/R 16-bit samples and normalises each channel
// with the same divisor as [MonoFromInt16].
func SplitStereo(pcm []int16) StereoPCM {
	frames := len(pcm) / 2
	left := make(PCM, frames)
	right := make(PCM, frames)
	for i := range frames {
		left[i] = float32(pcm[2*i]) / int16Scale
		right[i] = float32(pcm[2*i+1]) / int16Scale
	}
	return StereoPCM{left, right}
}
