package speech

import "math"

// RMS computes the root-mean-square energy of a raw PCM buffer in sample
// units (an int16 full-scale sine peaks around 23000). Unknown bit depths
// report zero energy. The function does not allocate.
func RMS(buf []byte, f Format) float64 {
	var sum float64
	var count int

	switch f.BitDepth {
	case 8:
		for _, b := range buf {
			s := float64(int8(b))
			sum += s * s
		}
		count = len(buf)
	case 16:
		if f.BigEndian {
			for i := 0; i+1 < len(buf); i += 2 {
				s := float64(int16(buf[i])<<8 | int16(buf[i+1]))
				sum += s * s
			}
		} else {
			for i := 0; i+1 < len(buf); i += 2 {
				s := float64(int16(buf[i]) | int16(buf[i+1])<<8)
				sum += s * s
			}
		}
		count = len(buf) / 2
	}

	if count == 0 {
		return 0
	}
	return math.Sqrt(sum / float64(count))
}
