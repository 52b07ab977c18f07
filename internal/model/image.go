package model

import (
	"slices"
	"strconv"
	"strings"
	"unicode"

	"github.com/chanonchantad/anon-pipeline/internal/pixel"
)

// Element is a single data element of an image header.
type Element struct {
	Tag     Tag
	VR      string
	Keyword string
	Value   Value
}

// NewElement builds an element, filling the keyword from the table of
// well-known tags when it is known.
func NewElement(tag Tag, vr string, value Value) *Element {
	return &Element{Tag: tag, VR: vr, Keyword: KeywordForTag(tag), Value: value}
}

// Source describes where an image was read from.
type Source struct {
	// Path is the file the image was decoded from.
	Path string

	// SeriesSize is the number of image files in the same series directory.
	// Zero means unknown.
	SeriesSize int
}

// Image is a decoded image: an ordered header plus optional pixel data.
// An Image has a single owner and is mutated in place by the pipeline
// stages.
type Image struct {
	elements []*Element

	// Pixels holds native pixel data. It is nil when the image has no pixel
	// data or when the data is still encapsulated.
	Pixels *pixel.Buffer

	// Encapsulated holds compressed frames exactly as stored in the file.
	Encapsulated [][]byte

	// PixelsModified is set when Pixels was changed and must be written back.
	PixelsModified bool

	Source Source
}

// NewImage returns an image with the given elements sorted by tag.
func NewImage(elements ...*Element) *Image {
	img := &Image{}
	for _, e := range elements {
		img.Put(e)
	}
	return img
}

// Elements returns the header elements in tag order. The slice must not be
// modified; the elements themselves may be.
func (img *Image) Elements() []*Element {
	return img.elements
}

// Len returns the number of header elements.
func (img *Image) Len() int {
	return len(img.elements)
}

func (img *Image) find(tag Tag) (int, bool) {
	return slices.BinarySearchFunc(img.elements, tag, func(e *Element, t Tag) int {
		switch {
		case e.Tag.Less(t):
			return -1
		case t.Less(e.Tag):
			return 1
		default:
			return 0
		}
	})
}

// Get returns the element with the given tag.
func (img *Image) Get(tag Tag) (*Element, bool) {
	i, ok := img.find(tag)
	if !ok {
		return nil, false
	}
	return img.elements[i], true
}

// Has reports whether the tag is present.
func (img *Image) Has(tag Tag) bool {
	_, ok := img.find(tag)
	return ok
}

// Put inserts or replaces an element, keeping tag order.
func (img *Image) Put(e *Element) {
	i, ok := img.find(e.Tag)
	if ok {
		img.elements[i] = e
		return
	}
	img.elements = slices.Insert(img.elements, i, e)
}

// Set replaces the value of an existing element or adds a new one with the
// given VR.
func (img *Image) Set(tag Tag, vr string, value Value) {
	if e, ok := img.Get(tag); ok {
		e.Value = value
		return
	}
	img.Put(NewElement(tag, vr, value))
}

// Remove deletes an element. It reports whether the element existed.
func (img *Image) Remove(tag Tag) bool {
	i, ok := img.find(tag)
	if !ok {
		return false
	}
	img.elements = slices.Delete(img.elements, i, i+1)
	return true
}

// RemovePrivateTags strips every element in an odd-numbered group and
// returns how many were removed.
func (img *Image) RemovePrivateTags() int {
	before := len(img.elements)
	img.elements = slices.DeleteFunc(img.elements, func(e *Element) bool {
		return e.Tag.IsPrivate()
	})
	return before - len(img.elements)
}

// Lookup resolves a field name used by rules. A name is either a bracketed
// tag "[gggg,eeee]" or a keyword.
func (img *Image) Lookup(field string) (*Element, bool) {
	if IsBracketedTag(field) {
		t, err := ParseTag(field)
		if err != nil {
			return nil, false
		}
		return img.Get(t)
	}
	if t, ok := TagForKeyword(field); ok {
		if e, found := img.Get(t); found {
			return e, true
		}
	}
	for _, e := range img.elements {
		if e.Keyword == field {
			return e, true
		}
	}
	return nil, false
}

// Text returns the first value of the element as text.
func (img *Image) Text(tag Tag) (string, bool) {
	e, ok := img.Get(tag)
	if !ok {
		return "", false
	}
	return trimValue(e.Value.First()), true
}

// trimValue drops surrounding whitespace and the NUL padding UIDs carry.
func trimValue(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		return r == 0 || unicode.IsSpace(r)
	})
}

// Texts returns every text value of the element.
func (img *Image) Texts(tag Tag) []string {
	e, ok := img.Get(tag)
	if !ok {
		return nil
	}
	return e.Value.Strings()
}

// IntValue returns the first value of the element as an integer. Text
// values holding decimal numbers are converted.
func (img *Image) IntValue(tag Tag) (int, bool) {
	e, ok := img.Get(tag)
	if !ok {
		return 0, false
	}
	if ints := e.Value.Ints(); len(ints) > 0 {
		return ints[0], true
	}
	n, err := strconv.Atoi(trimValue(e.Value.First()))
	if err != nil {
		return 0, false
	}
	return n, true
}

// Modality returns the trimmed Modality value.
func (img *Image) Modality() (string, bool) {
	m, ok := img.Text(TagModality)
	if !ok || m == "" {
		return "", false
	}
	return strings.ToUpper(m), true
}

// Accession returns the AccessionNumber, or "" if absent.
func (img *Image) Accession() string {
	acc, _ := img.Text(TagAccessionNumber)
	return acc
}

// HasPixelData reports whether the image carries pixel data in any form.
func (img *Image) HasPixelData() bool {
	return img.Pixels != nil || len(img.Encapsulated) > 0 || img.Has(TagPixelData)
}

// SamplesPerPixel returns the samples per pixel from the pixel buffer or,
// when the pixels are not decoded, from the header. It defaults to 1.
func (img *Image) SamplesPerPixel() int {
	if img.Pixels != nil {
		return img.Pixels.Samples
	}
	if n, ok := img.IntValue(TagSamplesPerPixel); ok && n > 0 {
		return n
	}
	return 1
}

// ImageTypeContains reports whether any ImageType value contains token,
// ignoring case.
func (img *Image) ImageTypeContains(token string) bool {
	token = strings.ToUpper(token)
	for _, v := range img.Texts(TagImageType) {
		if strings.Contains(strings.ToUpper(v), token) {
			return true
		}
	}
	return false
}
