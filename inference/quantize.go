package inference

// dequantize maps a quantized score back to a real value. Models that carry no
// quantization parameters (scale 0) are read as fractions of full.
func dequantize(q, scale float64, zeroPoint int, full float64) float32 {
	if scale == 0 {
		return float32(q / full)
	}
	return float32(scale * (q - float64(zeroPoint)))
}
