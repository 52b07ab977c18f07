package model

// Well-known tags referenced by the pipeline.
var (
	TagSOPClassUID               = NewTag(0x0008, 0x0016)
	TagSOPInstanceUID            = NewTag(0x0008, 0x0018)
	TagStudyDate                 = NewTag(0x0008, 0x0020)
	TagSeriesDate                = NewTag(0x0008, 0x0021)
	TagAcquisitionDate           = NewTag(0x0008, 0x0022)
	TagContentDate               = NewTag(0x0008, 0x0023)
	TagImageType                 = NewTag(0x0008, 0x0008)
	TagAccessionNumber           = NewTag(0x0008, 0x0050)
	TagModality                  = NewTag(0x0008, 0x0060)
	TagManufacturer              = NewTag(0x0008, 0x0070)
	TagInstitutionName           = NewTag(0x0008, 0x0080)
	TagReferringPhysicianName    = NewTag(0x0008, 0x0090)
	TagSeriesDescription         = NewTag(0x0008, 0x103E)
	TagManufacturerModelName     = NewTag(0x0008, 0x1090)
	TagPatientName               = NewTag(0x0010, 0x0010)
	TagPatientID                 = NewTag(0x0010, 0x0020)
	TagPatientBirthDate          = NewTag(0x0010, 0x0030)
	TagPatientSex                = NewTag(0x0010, 0x0040)
	TagPatientAge                = NewTag(0x0010, 0x1010)
	TagBurnedInAnnotation        = NewTag(0x0028, 0x0301)
	TagStudyInstanceUID          = NewTag(0x0020, 0x000D)
	TagSeriesInstanceUID         = NewTag(0x0020, 0x000E)
	TagSamplesPerPixel           = NewTag(0x0028, 0x0002)
	TagPhotometricInterpretation = NewTag(0x0028, 0x0004)
	TagNumberOfFrames            = NewTag(0x0028, 0x0008)
	TagRows                      = NewTag(0x0028, 0x0010)
	TagColumns                   = NewTag(0x0028, 0x0011)
	TagBitsAllocated             = NewTag(0x0028, 0x0100)
	TagBitsStored                = NewTag(0x0028, 0x0101)
	TagHighBit                   = NewTag(0x0028, 0x0102)
	TagPixelRepresentation       = NewTag(0x0028, 0x0103)
	TagPlanarConfiguration       = NewTag(0x0028, 0x0006)
	TagPixelData                 = NewTag(0x7FE0, 0x0010)

	// File meta information group.
	TagMediaStorageSOPClassUID = NewTag(0x0002, 0x0002)
	TagTransferSyntaxUID       = NewTag(0x0002, 0x0010)
)

// keywordTags maps DICOM keywords to the tags above. Images decoded from
// files carry the keyword supplied by the codec's dictionary; this table
// covers elements built in code.
var keywordTags = map[string]Tag{
	"SOPClassUID":               TagSOPClassUID,
	"SOPInstanceUID":            TagSOPInstanceUID,
	"StudyDate":                 TagStudyDate,
	"SeriesDate":                TagSeriesDate,
	"AcquisitionDate":           TagAcquisitionDate,
	"ContentDate":               TagContentDate,
	"ImageType":                 TagImageType,
	"AccessionNumber":           TagAccessionNumber,
	"Modality":                  TagModality,
	"Manufacturer":              TagManufacturer,
	"InstitutionName":           TagInstitutionName,
	"ReferringPhysicianName":    TagReferringPhysicianName,
	"SeriesDescription":         TagSeriesDescription,
	"ManufacturerModelName":     TagManufacturerModelName,
	"PatientName":               TagPatientName,
	"PatientID":                 TagPatientID,
	"PatientBirthDate":          TagPatientBirthDate,
	"PatientSex":                TagPatientSex,
	"PatientAge":                TagPatientAge,
	"BurnedInAnnotation":        TagBurnedInAnnotation,
	"StudyInstanceUID":          TagStudyInstanceUID,
	"SeriesInstanceUID":         TagSeriesInstanceUID,
	"SamplesPerPixel":           TagSamplesPerPixel,
	"PhotometricInterpretation": TagPhotometricInterpretation,
	"NumberOfFrames":            TagNumberOfFrames,
	"Rows":                      TagRows,
	"Columns":                   TagColumns,
	"BitsAllocated":             TagBitsAllocated,
	"BitsStored":                TagBitsStored,
	"HighBit":                   TagHighBit,
	"PixelRepresentation":       TagPixelRepresentation,
	"PlanarConfiguration":       TagPlanarConfiguration,
	"PixelData":                 TagPixelData,
	"MediaStorageSOPClassUID":   TagMediaStorageSOPClassUID,
	"TransferSyntaxUID":         TagTransferSyntaxUID,
}

var tagKeywords = func() map[Tag]string {
	m := make(map[Tag]string, len(keywordTags))
	for k, t := range keywordTags {
		m[t] = k
	}
	return m
}()

// TagForKeyword returns the well-known tag registered under keyword.
func TagForKeyword(keyword string) (Tag, bool) {
	t, ok := keywordTags[keyword]
	return t, ok
}

// KeywordForTag returns the keyword of a well-known tag, or "" if the tag
// is not in the table.
func KeywordForTag(t Tag) string {
	return tagKeywords[t]
}

// Well-known UID values.
const (
	// UIDRoot is the prefix of every UID produced by HashAsUID.
	UIDRoot = "1.2.840.10008."

	// SecondaryCaptureImageStorage is the SOP class UID of secondary capture images.
	SecondaryCaptureImageStorage = "1.2.840.10008.5.1.4.1.1.7"

	// ExplicitVRLittleEndian is the transfer syntax written after decompression.
	ExplicitVRLittleEndian = "1.2.840.10008.1.2.1"

	// AnonymizedPatientAge replaces every PatientAge value.
	AnonymizedPatientAge = "119Y"
)
