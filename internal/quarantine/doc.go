// Package quarantine decides which images may risk identifying a patient
// through their pixels and must be withheld from release.
//
// Each modality has an ordered list of named predicates (small_series,
// no_pixel_array, secondary_capture, burned_annotation, rgb, desc and
// embedded_exif). Classify evaluates them in order and reports the first
// that fires. Missing or unrecognised modalities are quarantined.
//
// Classification is a pure function of the image. Formatting outcomes for
// the run log is done by the report package.
package quarantine
