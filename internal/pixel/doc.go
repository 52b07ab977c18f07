// Package pixel holds decoded pixel arrays and the operations the redactor
// performs on them: zeroing rectangular regions across all frames,
// converting full-range YCbCr to RGB, and decompressing baseline JPEG
// frames taken from encapsulated pixel data.
//
// The package knows nothing about DICOM headers. Callers translate
// Rows/Columns/SamplesPerPixel/NumberOfFrames into a Buffer and write the
// resulting photometric interpretation back themselves.
package pixel
