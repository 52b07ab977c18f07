package pixel

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
)

// ErrDecompress is returned when an encapsulated frame cannot be decoded.
var ErrDecompress = errors.New("cannot decompress frame")

// DecodeJPEG decodes baseline JPEG frames into a single native buffer.
// Grey frames produce one sample per pixel; colour frames are converted to
// RGB with three samples per pixel. All frames must share size and colour
// model.
func DecodeJPEG(frames [][]byte) (*Buffer, error) {
	if len(frames) == 0 {
		return nil, fmt.Errorf("%w: no frames", ErrDecompress)
	}

	var buf *Buffer
	for f, data := range frames {
		img, err := jpeg.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: frame %d: %w", ErrDecompress, f, err)
		}

		bounds := img.Bounds()
		samples := 3
		if _, ok := img.(*image.Gray); ok {
			samples = 1
		}

		if buf == nil {
			buf = NewBuffer(len(frames), bounds.Dy(), bounds.Dx(), samples)
		} else if bounds.Dy() != buf.Rows || bounds.Dx() != buf.Cols || samples != buf.Samples {
			return nil, fmt.Errorf("%w: frame %d differs in size or colour model", ErrDecompress, f)
		}

		copyFrame(buf, f, img)
	}
	return buf, nil
}

func copyFrame(buf *Buffer, f int, img image.Image) {
	bounds := img.Bounds()
	for y := 0; y < buf.Rows; y++ {
		for x := 0; x < buf.Cols; x++ {
			px := img.At(bounds.Min.X+x, bounds.Min.Y+y)
			if buf.Samples == 1 {
				g, _, _, _ := px.RGBA()
				buf.Set(f, y, x, 0, int(g>>8))
				continue
			}
			r, g, b, _ := px.RGBA()
			buf.Set(f, y, x, 0, int(r>>8))
			buf.Set(f, y, x, 1, int(g>>8))
			buf.Set(f, y, x, 2, int(b>>8))
		}
	}
}

// EncodeJPEGFrame encodes one frame of an 8-bit buffer as baseline JPEG.
// It is used to build encapsulated test fixtures.
func EncodeJPEGFrame(buf *Buffer, f int) ([]byte, error) {
	var img image.Image
	switch buf.Samples {
	case 1:
		gray := image.NewGray(image.Rect(0, 0, buf.Cols, buf.Rows))
		for y := 0; y < buf.Rows; y++ {
			for x := 0; x < buf.Cols; x++ {
				gray.Pix[y*gray.Stride+x] = clampByte(buf.At(f, y, x, 0))
			}
		}
		img = gray
	case 3:
		rgba := image.NewRGBA(image.Rect(0, 0, buf.Cols, buf.Rows))
		for y := 0; y < buf.Rows; y++ {
			for x := 0; x < buf.Cols; x++ {
				o := y*rgba.Stride + x*4
				rgba.Pix[o] = clampByte(buf.At(f, y, x, 0))
				rgba.Pix[o+1] = clampByte(buf.At(f, y, x, 1))
				rgba.Pix[o+2] = clampByte(buf.At(f, y, x, 2))
				rgba.Pix[o+3] = 0xFF
			}
		}
		img = rgba
	default:
		return nil, fmt.Errorf("%w: cannot encode %d samples", ErrShape, buf.Samples)
	}

	var out bytes.Buffer
	if err := jpeg.Encode(&out, img, &jpeg.Options{Quality: 95}); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
