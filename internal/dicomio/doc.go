// Package dicomio reads and writes DICOM Part 10 files and translates
// between the parsed data set and the pipeline's model.Image.
//
// Only what the pipeline edits crosses into the model: scalar header
// values, native pixels and encapsulated frames. Sequences stay in the
// parsed data set and are written back untouched unless their value was
// cleared. Writes go through a temporary file that is renamed over the
// destination.
package dicomio
