package dicomio

import (
	"strconv"

	"github.com/suyashkumar/dicom"

	"github.com/chanonchantad/anon-pipeline/internal/model"
	"github.com/chanonchantad/anon-pipeline/internal/pixel"
)

// FromImage wraps an image built in memory so it can be encoded. Every
// header element becomes a new data set element; native pixels are
// written when the image has a PixelData element.
//
// The image must carry the file meta elements MediaStorageSOPClassUID,
// MediaStorageSOPInstanceUID (0002,0003) and TransferSyntaxUID.
func FromImage(img *model.Image) *File {
	return &File{
		Image:    img,
		dataset:  dicom.Dataset{},
		original: map[model.Tag]model.Value{},
	}
}

// TagMediaStorageSOPInstanceUID is the file meta SOP instance UID.
var TagMediaStorageSOPInstanceUID = model.NewTag(0x0002, 0x0003)

// Minimal returns the header elements every encodable image needs, with
// an explicit VR little endian transfer syntax.
func Minimal(sopClassUID, sopInstanceUID string) []*model.Element {
	return []*model.Element{
		model.NewElement(model.TagMediaStorageSOPClassUID, "UI", model.Text(sopClassUID)),
		model.NewElement(TagMediaStorageSOPInstanceUID, "UI", model.Text(sopInstanceUID)),
		model.NewElement(model.TagTransferSyntaxUID, "UI", model.Text(model.ExplicitVRLittleEndian)),
		model.NewElement(model.TagSOPClassUID, "UI", model.Text(sopClassUID)),
		model.NewElement(model.TagSOPInstanceUID, "UI", model.Text(sopInstanceUID)),
	}
}

// AttachPixels sets buf as the native pixel data of img and writes the
// matching pixel description elements.
func AttachPixels(img *model.Image, buf *pixel.Buffer) {
	photometric := pixel.PhotometricMonochrome2
	if buf.Samples == 3 {
		photometric = pixel.PhotometricRGB
		img.Set(model.TagPlanarConfiguration, "US", model.Int(0))
	}
	bits := buf.BitsAllocated
	if bits <= 0 {
		bits = 8
	}

	img.Set(model.TagSamplesPerPixel, "US", model.Int(buf.Samples))
	img.Set(model.TagPhotometricInterpretation, "CS", model.Text(photometric))
	img.Set(model.TagNumberOfFrames, "IS", model.Text(strconv.Itoa(buf.Frames)))
	img.Set(model.TagRows, "US", model.Int(buf.Rows))
	img.Set(model.TagColumns, "US", model.Int(buf.Cols))
	img.Set(model.TagBitsAllocated, "US", model.Int(bits))
	img.Set(model.TagBitsStored, "US", model.Int(bits))
	img.Set(model.TagHighBit, "US", model.Int(bits-1))
	img.Set(model.TagPixelRepresentation, "US", model.Int(0))
	img.Set(model.TagPixelData, "OB", model.Pixel())
	img.Pixels = buf
}
