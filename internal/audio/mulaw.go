package audio

// muLawBias is the G.711 encoder bias baked into every encoded byte.
const muLawBias = 0x84

// DecodeMuLaw expands G.711 mu-law bytes into normalized float32 samples.
func DecodeMuLaw(data []byte) []float32 {
	out := make([]float32, len(data))
	for i, b := range data {
		out[i] = float32(decodeMuLawSample(b)) / 32768.0
	}
	return out
}

func decodeMuLawSample(b byte) int16 {
	b = ^b
	sign := b & 0x80
	exponent := (b >> 4) & 0x07
	mantissa := b & 0x0f

	sample := (int16(mantissa)<<3 + muLawBias) << exponent
	sample -= muLawBias
	if sign != 0 {
		return -sample
	}
	return sample
}
