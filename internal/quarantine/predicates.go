package quarantine

import (
	"slices"

	exif "github.com/dsoprea/go-exif/v3"

	"github.com/chanonchantad/anon-pipeline/internal/model"
	"github.com/chanonchantad/anon-pipeline/internal/rules"
)

// Predicate reports whether a rule fires for an image.
type Predicate func(img *model.Image) bool

// predicateFor resolves a rule name to its predicate using the thresholds
// in cfg.
func predicateFor(name string, cfg *rules.QuarantineRules) (Predicate, bool) {
	switch name {
	case rules.SmallSeries:
		return smallSeries(cfg.MinSeriesImages), true
	case rules.NoPixelArray:
		return noPixelArray, true
	case rules.SecondaryCapture:
		return secondaryCapture, true
	case rules.BurnedAnnotation:
		return burnedAnnotation, true
	case rules.RGB:
		return rgb, true
	case rules.Description:
		return descriptionDenied(cfg.DescriptionDenylist), true
	case rules.EmbeddedExif:
		return embeddedExif, true
	default:
		return nil, false
	}
}

// smallSeries fires when the series has at most limit images. An unknown
// series size never fires.
func smallSeries(limit int) Predicate {
	return func(img *model.Image) bool {
		return img.Source.SeriesSize > 0 && img.Source.SeriesSize <= limit
	}
}

func noPixelArray(img *model.Image) bool {
	return !img.HasPixelData()
}

// secondaryCapture checks SOPClassUID first, then MediaStorageSOPClassUID,
// and only falls back to ImageType when neither class UID is present.
func secondaryCapture(img *model.Image) bool {
	if uid, ok := img.Text(model.TagSOPClassUID); ok {
		return trimUID(uid) == model.SecondaryCaptureImageStorage
	}
	if uid, ok := img.Text(model.TagMediaStorageSOPClassUID); ok {
		return trimUID(uid) == model.SecondaryCaptureImageStorage
	}
	return img.ImageTypeContains("SECONDARY")
}

// trimUID drops the trailing NUL padding UIDs carry on disk.
func trimUID(uid string) string {
	for len(uid) > 0 && uid[len(uid)-1] == 0 {
		uid = uid[:len(uid)-1]
	}
	return uid
}

func burnedAnnotation(img *model.Image) bool {
	v, ok := img.Text(model.TagBurnedInAnnotation)
	return ok && rules.Fold(v) == "YES"
}

func rgb(img *model.Image) bool {
	return img.HasPixelData() && img.SamplesPerPixel() > 1
}

func descriptionDenied(denylist []string) Predicate {
	folded := make([]string, len(denylist))
	for i, d := range denylist {
		folded[i] = rules.Fold(d)
	}
	return func(img *model.Image) bool {
		desc, ok := img.Text(model.TagSeriesDescription)
		return ok && slices.Contains(folded, rules.Fold(desc))
	}
}

// embeddedExif fires when an encapsulated frame carries an EXIF block with
// at least one entry. Such blocks can hold device serials, timestamps and
// free text that the header rules never see.
func embeddedExif(img *model.Image) bool {
	for _, frame := range img.Encapsulated {
		rawExif, err := exif.SearchAndExtractExif(frame)
		if err != nil || rawExif == nil {
			continue
		}
		entries, _, err := exif.GetFlatExifData(rawExif, nil)
		if err == nil && len(entries) > 0 {
			return true
		}
	}
	return false
}
