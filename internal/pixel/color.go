package pixel

import (
	"fmt"
	"image/color"
	"strings"
)

// Photometric interpretations handled by the colour conversion.
const (
	PhotometricRGB         = "RGB"
	PhotometricMonochrome2 = "MONOCHROME2"
	PhotometricYBRFull     = "YBR_FULL"
	PhotometricYBRFull422  = "YBR_FULL_422"
)

// IsYBRFull reports whether the photometric interpretation is one of the
// full-range YCbCr forms that must be converted before redaction.
func IsYBRFull(photometric string) bool {
	return strings.HasPrefix(strings.TrimSpace(strings.ToUpper(photometric)), PhotometricYBRFull)
}

// YBRFullToRGB converts an 8-bit, three-sample YCbCr buffer to RGB in place.
func (b *Buffer) YBRFullToRGB() error {
	if b.Samples != 3 {
		return fmt.Errorf("%w: YBR_FULL conversion needs 3 samples, have %d", ErrShape, b.Samples)
	}
	if b.BitsAllocated > 8 {
		return fmt.Errorf("%w: YBR_FULL conversion needs 8-bit samples, have %d", ErrShape, b.BitsAllocated)
	}
	for i := 0; i+2 < len(b.Data); i += 3 {
		r, g, bl := color.YCbCrToRGB(clampByte(b.Data[i]), clampByte(b.Data[i+1]), clampByte(b.Data[i+2]))
		b.Data[i], b.Data[i+1], b.Data[i+2] = int(r), int(g), int(bl)
	}
	return nil
}

func clampByte(v int) uint8 {
	switch {
	case v < 0:
		return 0
	case v > 255:
		return 255
	default:
		return uint8(v)
	}
}
