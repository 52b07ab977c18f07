package model

import (
	"errors"
	"testing"

	"github.com/chanonchantad/anon-pipeline/internal/pixel"
)

// TestParseTag tests every accepted tag spelling.
func TestParseTag(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    Tag
		wantErr bool
	}{
		{name: "parenthesised", input: "(0010,0010)", want: TagPatientName},
		{name: "parenthesised with space", input: "(0010, 0020)", want: TagPatientID},
		{name: "bracketed", input: "[0008,0050]", want: TagAccessionNumber},
		{name: "bare comma", input: "0008,0020", want: TagStudyDate},
		{name: "packed", input: "00100030", want: TagPatientBirthDate},
		{name: "lower case hex", input: "(7fe0,0010)", want: TagPixelData},
		{name: "surrounding whitespace", input: "  (0008,0060) ", want: TagModality},
		{name: "too short", input: "(010,0010)", wantErr: true},
		{name: "not hex", input: "(00GG,0010)", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseTag(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidTag) {
					t.Errorf("ParseTag(%q) error = %v, want ErrInvalidTag", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTag(%q) unexpected error = %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseTag(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

// TestTag_String tests the printable tag forms.
func TestTag_String(t *testing.T) {
	t.Parallel()

	tag := NewTag(0x7FE0, 0x0010)
	if got := tag.String(); got != "(7FE0,0010)" {
		t.Errorf("String() = %q", got)
	}
	if got := tag.Bracketed(); got != "[7FE0,0010]" {
		t.Errorf("Bracketed() = %q", got)
	}
	if !IsBracketedTag(tag.Bracketed()) {
		t.Error("IsBracketedTag() = false for bracketed form")
	}
	if !NewTag(0x0009, 0x0010).IsPrivate() || TagPatientID.IsPrivate() {
		t.Error("IsPrivate() wrong parity")
	}
}

// TestImage_Elements tests ordering, lookup and mutation.
func TestImage_Elements(t *testing.T) {
	t.Parallel()

	t.Run("keeps tag order", func(t *testing.T) {
		t.Parallel()

		img := NewImage(
			NewElement(TagPatientID, "LO", Text("P1")),
			NewElement(TagModality, "CS", Text("CT")),
			NewElement(TagStudyDate, "DA", Text("20200101")),
		)
		var prev Tag
		for i, e := range img.Elements() {
			if i > 0 && !prev.Less(e.Tag) {
				t.Fatalf("element %s out of order after %s", e.Tag, prev)
			}
			prev = e.Tag
		}
	})

	t.Run("set adds then replaces", func(t *testing.T) {
		t.Parallel()

		img := NewImage()
		img.Set(TagPatientAge, "AS", Text("045Y"))
		img.Set(TagPatientAge, "AS", Text("119Y"))
		if img.Len() != 1 {
			t.Fatalf("Len() = %d, want 1", img.Len())
		}
		if got, _ := img.Text(TagPatientAge); got != "119Y" {
			t.Errorf("PatientAge = %q, want 119Y", got)
		}
	})

	t.Run("removes private tags only", func(t *testing.T) {
		t.Parallel()

		img := NewImage(
			NewElement(NewTag(0x0009, 0x0010), "LO", Text("VENDOR")),
			NewElement(NewTag(0x0019, 0x1001), "UN", Bytes([]byte{1, 2})),
			NewElement(TagPatientID, "LO", Text("P1")),
		)
		if n := img.RemovePrivateTags(); n != 2 {
			t.Errorf("RemovePrivateTags() = %d, want 2", n)
		}
		if img.Len() != 1 || !img.Has(TagPatientID) {
			t.Error("public tag removed")
		}
		if n := img.RemovePrivateTags(); n != 0 {
			t.Errorf("second RemovePrivateTags() = %d, want 0", n)
		}
	})

	t.Run("lookup by keyword and bracketed tag", func(t *testing.T) {
		t.Parallel()

		custom := &Element{Tag: NewTag(0x0018, 0x1030), VR: "LO", Keyword: "ProtocolName", Value: Text("HEAD")}
		img := NewImage(NewElement(TagManufacturer, "LO", Text("ACME")), custom)

		if e, ok := img.Lookup("Manufacturer"); !ok || e.Value.First() != "ACME" {
			t.Error("keyword lookup failed")
		}
		if e, ok := img.Lookup("[0008,0070]"); !ok || e.Value.First() != "ACME" {
			t.Error("bracketed lookup failed")
		}
		if e, ok := img.Lookup("ProtocolName"); !ok || e != custom {
			t.Error("decoded keyword lookup failed")
		}
		if _, ok := img.Lookup("StationName"); ok {
			t.Error("lookup of absent field succeeded")
		}
	})

	t.Run("samples per pixel prefers the buffer", func(t *testing.T) {
		t.Parallel()

		img := NewImage(NewElement(TagSamplesPerPixel, "US", Int(1)))
		if img.SamplesPerPixel() != 1 {
			t.Error("header samples not used")
		}
		img.Pixels = pixel.NewBuffer(1, 2, 2, 3)
		if img.SamplesPerPixel() != 3 {
			t.Error("buffer samples not preferred")
		}
	})
}

// TestValue_Empty tests that emptied values keep their kind.
func TestValue_Empty(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		value Value
	}{
		{name: "text", value: Text("DOE^JOHN")},
		{name: "multi text", value: Text("ORIGINAL", "PRIMARY")},
		{name: "int", value: Int(42)},
		{name: "float", value: Float(1.5)},
		{name: "bytes", value: Bytes([]byte("abc"))},
		{name: "sequence", value: Sequence()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := tt.value.Empty()
			if got.Kind() != tt.value.Kind() {
				t.Errorf("Empty() kind = %s, want %s", got.Kind(), tt.value.Kind())
			}
			if !got.IsEmpty() {
				t.Error("Empty() value is not empty")
			}
			if !got.Empty().Equal(got) {
				t.Error("Empty() is not idempotent")
			}
		})
	}
}

// TestRecord_Label tests log label selection.
func TestRecord_Label(t *testing.T) {
	t.Parallel()

	ok := NewRecord("a.dcm")
	quar := NewRecord("b.dcm")
	quar.Outcome = Quarantined("rgb")
	failed := NewRecord("c.dcm")
	failed.Outcome = Quarantined(ReasonProcessingError)
	failed.Fail(ErrDecode)

	tests := []struct {
		record     *Record
		wantLabel  LogLabel
		wantDetail string
	}{
		{record: ok, wantLabel: LabelAnonymized},
		{record: quar, wantLabel: LabelQuarantined, wantDetail: "rgb"},
		{record: failed, wantLabel: LabelError, wantDetail: ErrDecode.Error()},
	}

	for _, tt := range tests {
		if got := tt.record.Label(); got != tt.wantLabel {
			t.Errorf("%s: Label() = %s, want %s", tt.record.Path, got, tt.wantLabel)
		}
		if got := tt.record.Detail(); got != tt.wantDetail {
			t.Errorf("%s: Detail() = %q, want %q", tt.record.Path, got, tt.wantDetail)
		}
	}

	summary := NewRunSummary("run", "/tmp/ws")
	for _, tt := range tests {
		summary.Add(tt.record)
	}
	if summary.Total != 3 || summary.Anonymized != 1 || summary.Quarantined != 1 || summary.Errored != 1 {
		t.Errorf("summary counts = %+v", summary)
	}
	if got := summary.SortedReasons(); len(got) != 1 || got[0].Name != "rgb" {
		t.Errorf("SortedReasons() = %v", got)
	}
}
