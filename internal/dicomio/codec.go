package dicomio

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/frame"
	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/chanonchantad/anon-pipeline/internal/model"
	"github.com/chanonchantad/anon-pipeline/internal/pixel"
)

// File pairs a decoded image with the parsed data set it came from. The
// data set keeps everything the model carries opaquely (sequence items,
// unchanged pixel data) so writing a File back preserves it.
type File struct {
	Image *model.Image

	dataset  dicom.Dataset
	original map[model.Tag]model.Value
}

// Read parses the DICOM file at path. Parse failures wrap model.ErrDecode.
func Read(path string) (*File, error) {
	ds, err := dicom.ParseFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", model.ErrDecode, path, err)
	}

	f, err := fromDataset(ds)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", model.ErrDecode, path, err)
	}
	f.Image.Source.Path = path
	return f, nil
}

// ReadHeader parses the header of the DICOM file at path without reading
// pixel data. The returned image is for inspection only.
func ReadHeader(path string) (*model.Image, error) {
	ds, err := dicom.ParseFile(path, nil, dicom.SkipPixelData())
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", model.ErrDecode, path, err)
	}

	f, err := fromDataset(ds)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", model.ErrDecode, path, err)
	}
	f.Image.Source.Path = path
	return f.Image, nil
}

func fromDataset(ds dicom.Dataset) (*File, error) {
	f := &File{
		Image:    model.NewImage(),
		dataset:  ds,
		original: make(map[model.Tag]model.Value, len(ds.Elements)),
	}

	for _, el := range ds.Elements {
		t := model.NewTag(el.Tag.Group, el.Tag.Element)
		value, err := decodeValue(el)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", t, err)
		}

		keyword := model.KeywordForTag(t)
		if keyword == "" {
			if info, err := tag.Find(el.Tag); err == nil {
				keyword = info.Name
			}
		}

		f.Image.Put(&model.Element{Tag: t, VR: el.RawValueRepresentation, Keyword: keyword, Value: value})
		f.original[t] = value

		if value.Kind() == model.KindPixel {
			if err := f.decodePixels(el); err != nil {
				return nil, err
			}
		}
	}
	return f, nil
}

func decodeValue(el *dicom.Element) (model.Value, error) {
	switch el.Value.ValueType() {
	case dicom.Strings:
		v, _ := el.Value.GetValue().([]string)
		return model.Text(v...), nil
	case dicom.Ints:
		v, _ := el.Value.GetValue().([]int)
		return model.Int(v...), nil
	case dicom.Floats:
		v, _ := el.Value.GetValue().([]float64)
		return model.Float(v...), nil
	case dicom.Bytes:
		v, _ := el.Value.GetValue().([]byte)
		return model.Bytes(v), nil
	case dicom.Sequences, dicom.SequenceItem:
		return model.Sequence(), nil
	case dicom.PixelData:
		return model.Pixel(), nil
	default:
		return model.Value{}, fmt.Errorf("unsupported value type %v", el.Value.ValueType())
	}
}

// decodePixels fills Image.Pixels or Image.Encapsulated from the pixel
// data element.
func (f *File) decodePixels(el *dicom.Element) error {
	info := dicom.MustGetPixelDataInfo(el.Value)
	if info.IntentionallySkipped || len(info.Frames) == 0 {
		return nil
	}

	if info.IsEncapsulated {
		fragments := make([][]byte, 0, len(info.Frames))
		for i := range info.Frames {
			fragments = append(fragments, info.Frames[i].EncapsulatedData.Data)
		}
		numFrames, _ := f.Image.IntValue(model.TagNumberOfFrames)
		frames, err := groupFragments(fragments, numFrames)
		if err != nil {
			return err
		}
		f.Image.Encapsulated = frames
		return nil
	}

	first := info.Frames[0].NativeData
	samples := 1
	if len(first.Data) > 0 {
		samples = len(first.Data[0])
	}

	buf := pixel.NewBuffer(len(info.Frames), first.Rows, first.Cols, samples)
	buf.BitsAllocated = bitsAllocated(f.Image, first.BitsPerSample)
	for i := range info.Frames {
		native := info.Frames[i].NativeData
		if native.Rows != buf.Rows || native.Cols != buf.Cols || len(native.Data) != buf.Rows*buf.Cols {
			return fmt.Errorf("%w: frame %d", pixel.ErrShape, i)
		}
		dst := buf.Frame(i)
		for p, px := range native.Data {
			copy(dst[p*samples:(p+1)*samples], px)
		}
	}
	f.Image.Pixels = buf
	return nil
}

// groupFragments joins encapsulated fragments into one byte slice per
// frame. A single-frame image owns every fragment. Otherwise a fragment
// opening with a JPEG or JPEG 2000 start marker begins a new frame.
func groupFragments(fragments [][]byte, numFrames int) ([][]byte, error) {
	if len(fragments) == 0 {
		return nil, nil
	}
	if numFrames <= 1 {
		return [][]byte{bytes.Join(fragments, nil)}, nil
	}
	if len(fragments) == numFrames {
		return fragments, nil
	}

	var frames [][]byte
	for i, frag := range fragments {
		if i == 0 || startsCodestream(frag) {
			frames = append(frames, append([]byte(nil), frag...))
			continue
		}
		last := len(frames) - 1
		frames[last] = append(frames[last], frag...)
	}
	if len(frames) != numFrames {
		return nil, fmt.Errorf("%w: %d fragments do not map onto %d frames", pixel.ErrShape, len(fragments), numFrames)
	}
	return frames, nil
}

func startsCodestream(frag []byte) bool {
	if len(frag) < 2 || frag[0] != 0xFF {
		return false
	}
	// SOI for JPEG, SOC for JPEG 2000
	return frag[1] == 0xD8 || frag[1] == 0x4F
}

func bitsAllocated(img *model.Image, fallback int) int {
	if n, ok := img.IntValue(model.TagBitsAllocated); ok && n > 0 {
		return n
	}
	if fallback > 0 {
		return fallback
	}
	return 8
}

// WriteFile writes f to path through a temporary file in the same
// directory, so a failed write never leaves a truncated image behind.
func WriteFile(path string, f *File) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".anonpipe-*.dcm")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		// no-op after a successful rename
		_ = os.Remove(tmpName)
	}()

	w := bufio.NewWriter(tmp)
	if err := Encode(w, f); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to flush %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// Encode writes f in DICOM Part 10 form. Header values changed on f.Image
// replace the parsed ones, removed elements are dropped, added elements
// are appended, and modified pixels are written as native pixel data.
func Encode(w io.Writer, f *File) error {
	ds, err := f.sync()
	if err != nil {
		return err
	}
	if err := dicom.Write(w, ds, dicom.SkipVRVerification()); err != nil {
		return fmt.Errorf("failed to encode dataset: %w", err)
	}
	return nil
}

// sync builds the data set to write from the parsed one and the image.
func (f *File) sync() (dicom.Dataset, error) {
	elements := make([]*dicom.Element, 0, f.Image.Len())
	parsed := make(map[model.Tag]*dicom.Element, len(f.dataset.Elements))
	for _, el := range f.dataset.Elements {
		parsed[model.NewTag(el.Tag.Group, el.Tag.Element)] = el
	}

	for _, me := range f.Image.Elements() {
		el, ok := parsed[me.Tag]
		if !ok && me.Value.Kind() == model.KindPixel {
			if f.Image.Pixels == nil {
				continue
			}
			el = &dicom.Element{Tag: tag.Tag{Group: me.Tag.Group, Element: me.Tag.Element}}
			if err := setNativePixels(el, f.Image.Pixels); err != nil {
				return dicom.Dataset{}, err
			}
			elements = append(elements, el)
			continue
		}
		if !ok {
			created, err := newElement(me)
			if err != nil {
				return dicom.Dataset{}, err
			}
			if created != nil {
				elements = append(elements, created)
			}
			continue
		}

		if me.Value.Kind() == model.KindPixel {
			if f.Image.PixelsModified && f.Image.Pixels != nil {
				if err := setNativePixels(el, f.Image.Pixels); err != nil {
					return dicom.Dataset{}, err
				}
			}
			elements = append(elements, el)
			continue
		}

		if orig, seen := f.original[me.Tag]; !seen || !orig.Equal(me.Value) {
			if err := setValue(el, me.Value); err != nil {
				return dicom.Dataset{}, fmt.Errorf("%s: %w", me.Tag, err)
			}
		}
		elements = append(elements, el)
	}

	sort.SliceStable(elements, func(i, j int) bool {
		a, b := elements[i].Tag, elements[j].Tag
		if a.Group != b.Group {
			return a.Group < b.Group
		}
		return a.Element < b.Element
	})
	return dicom.Dataset{Elements: elements}, nil
}

// valueData converts a model value to the Go type dicom.NewValue expects.
// It returns nil for kinds the codec carries opaquely.
func valueData(v model.Value) any {
	switch v.Kind() {
	case model.KindText:
		return append([]string{}, v.Strings()...)
	case model.KindInt:
		return append([]int{}, v.Ints()...)
	case model.KindFloat:
		return append([]float64{}, v.Floats()...)
	case model.KindBytes:
		return append([]byte{}, v.Raw()...)
	case model.KindSequence:
		if v.Cleared() {
			return [][]*dicom.Element{}
		}
	}
	return nil
}

func setValue(el *dicom.Element, v model.Value) error {
	data := valueData(v)
	if data == nil {
		return nil
	}
	nv, err := dicom.NewValue(data)
	if err != nil {
		return err
	}
	el.Value = nv
	return nil
}

// newElement creates a data set element for a header element the parsed
// file did not have.
func newElement(me *model.Element) (*dicom.Element, error) {
	data := valueData(me.Value)
	if data == nil {
		return nil, nil
	}
	t := tag.Tag{Group: me.Tag.Group, Element: me.Tag.Element}

	if _, err := tag.Find(t); err == nil && me.VR == "" {
		el, err := dicom.NewElement(t, data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", me.Tag, err)
		}
		return el, nil
	}

	value, err := dicom.NewValue(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", me.Tag, err)
	}
	vr := me.VR
	if vr == "" {
		vr = "UN"
	}
	return &dicom.Element{
		Tag:                    t,
		ValueRepresentation:    tag.GetVRKind(t, vr),
		RawValueRepresentation: vr,
		Value:                  value,
	}, nil
}

// setNativePixels replaces the pixel data element value with buf encoded
// as little-endian, pixel-interleaved native data, one frame per buffer
// frame.
func setNativePixels(el *dicom.Element, buf *pixel.Buffer) error {
	if err := buf.Validate(); err != nil {
		return err
	}

	bits := nativeBits(buf.BitsAllocated)
	frames := make([]*frame.Frame, 0, buf.Frames)
	for i := 0; i < buf.Frames; i++ {
		data := buf.Frame(i)
		px := make([][]int, buf.Rows*buf.Cols)
		for p := range px {
			px[p] = append([]int(nil), data[p*buf.Samples:(p+1)*buf.Samples]...)
		}
		frames = append(frames, &frame.Frame{
			NativeData: frame.NativeFrame{
				Data:          px,
				Rows:          buf.Rows,
				Cols:          buf.Cols,
				BitsPerSample: bits,
			},
		})
	}

	value, err := dicom.NewValue(dicom.PixelDataInfo{Frames: frames})
	if err != nil {
		return err
	}

	el.Value = value
	el.ValueLength = uint32(len(buf.Data) * bits / 8)
	el.RawValueRepresentation = "OB"
	if bits > 8 {
		el.RawValueRepresentation = "OW"
	}
	el.ValueRepresentation = tag.GetVRKind(el.Tag, el.RawValueRepresentation)
	return nil
}

// nativeBits rounds bits allocated up to a sample width the encoder writes.
func nativeBits(allocated int) int {
	switch {
	case allocated <= 8:
		return 8
	case allocated <= 16:
		return 16
	default:
		return 32
	}
}
