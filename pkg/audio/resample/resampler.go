// ABOUTME: Linear resampler for converting sample rates and playback speed
// ABOUTME: Converts whole blocks so each block maps to an exact frame count
package resample

import "math"

// Resampler performs linear interpolation to convert between sample rates.
// A speed other than 1 shortens or stretches the output, which is how
// playback rate is applied.
type Resampler struct {
	inputRate  int
	outputRate int
	channels   int
	ratio      float64
}

// New creates a new resampler
func New(inputRate, outputRate, channels int) *Resampler {
	return NewWithSpeed(inputRate, outputRate, channels, 1.0)
}

// NewWithSpeed creates a resampler that also plays the input at the given speed
func NewWithSpeed(inputRate, outputRate, channels int, speed float64) *Resampler {
	if speed <= 0 {
		speed = 1.0
	}
	return &Resampler{
		inputRate:  inputRate,
		outputRate: outputRate,
		channels:   channels,
		ratio:      float64(inputRate) * speed / float64(outputRate),
	}
}

// Ratio returns input frames consumed per output frame
func (r *Resampler) Ratio() float64 {
	return r.ratio
}

// OutputFrames calculates how many output frames a block of inputFrames becomes
func (r *Resampler) OutputFrames(inputFrames int) int {
	if inputFrames <= 0 {
		return 0
	}
	return int(math.Round(float64(inputFrames) / r.ratio))
}

// Resample converts one interleaved block. The result always has exactly
// OutputFrames(len(input)/channels) frames.
func (r *Resampler) Resample(input []int32) []int32 {
	inputFrames := len(input) / r.channels
	if r.ratio == 1.0 {
		return input[:inputFrames*r.channels]
	}

	outputFrames := r.OutputFrames(inputFrames)
	output := make([]int32, outputFrames*r.channels)
	if inputFrames == 0 {
		return output
	}

	last := inputFrames - 1
	for outIdx := 0; outIdx < outputFrames; outIdx++ {
		inputPos := float64(outIdx) * r.ratio
		inputIdx := int(inputPos)
		if inputIdx >= last {
			// Hold the final frame past the end
			copy(output[outIdx*r.channels:(outIdx+1)*r.channels], input[last*r.channels:])
			continue
		}

		frac := inputPos - float64(inputIdx)
		for ch := 0; ch < r.channels; ch++ {
			sample1 := input[inputIdx*r.channels+ch]
			sample2 := input[(inputIdx+1)*r.channels+ch]
			output[outIdx*r.channels+ch] = int32(float64(sample1)*(1.0-frac) + float64(sample2)*frac)
		}
	}

	return output
}
