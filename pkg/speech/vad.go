package speech

import "time"

// EnergyVAD is an adaptive energy-based voice activity detector. It keeps
// a smoothed short-term volume and a slow-moving background noise floor;
// the difference between the two is compared against a threshold to decide
// whether speech is present.
//
// The floor tracks new minima instantly but rises only by a small
// fractional correction, so it never chases speech energy upward.
//
// EnergyVAD is not synchronized; the capture loop owns it and external
// reads go through the module's accessors.
type EnergyVAD struct {
	threshold   float64
	minDuration time.Duration

	currentVolume    float64
	backgroundVolume float64
}

func NewEnergyVAD(threshold float64, minDuration time.Duration) *EnergyVAD {
	return &EnergyVAD{
		threshold:   threshold,
		minDuration: minDuration,
	}
}

// Update feeds one energy sample and returns the difference between the
// smoothed volume and the noise floor.
func (v *EnergyVAD) Update(rms float64) float64 {
	v.currentVolume = (v.currentVolume*2 + rms) / 3
	if rms < v.backgroundVolume {
		v.backgroundVolume = rms
	} else {
		v.backgroundVolume += (rms - v.backgroundVolume) * 0.003
	}
	return v.currentVolume - v.backgroundVolume
}

// SpeechStarted reports whether the difference marks the onset of speech.
func (v *EnergyVAD) SpeechStarted(difference float64) bool {
	return difference > v.threshold
}

// SpeechEnded reports whether the difference marks the end of speech. The
// stop threshold sits a factor 10 below the start threshold, giving
// hysteresis against rapid start/stop oscillation at the boundary.
func (v *EnergyVAD) SpeechEnded(difference float64) bool {
	return difference < v.threshold/10
}

func (v *EnergyVAD) Threshold() float64 {
	return v.threshold
}

func (v *EnergyVAD) MinDuration() time.Duration {
	return v.minDuration
}

func (v *EnergyVAD) CurrentVolume() float64 {
	return v.currentVolume
}

func (v *EnergyVAD) BackgroundVolume() float64 {
	return v.backgroundVolume
}

func (v *EnergyVAD) Reset() {
	v.currentVolume = 0
	v.backgroundVolume = 0
}
