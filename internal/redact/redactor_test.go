package redact

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/chanonchantad/anon-pipeline/internal/dicomio"
	"github.com/chanonchantad/anon-pipeline/internal/model"
	"github.com/chanonchantad/anon-pipeline/internal/pixel"
	"github.com/chanonchantad/anon-pipeline/internal/rules"
)

func secondaryImage(modality string, rows, cols, samples int) *model.Image {
	img := model.NewImage(
		model.NewElement(model.TagModality, "CS", model.Text(modality)),
		model.NewElement(model.TagImageType, "CS", model.Text("DERIVED", "SECONDARY")),
		model.NewElement(model.TagManufacturer, "LO", model.Text("ACME Medical ")),
		model.NewElement(model.TagSeriesDescription, "LO", model.Text("Patient Protocol")),
	)
	buf := pixel.NewBuffer(1, rows, cols, samples)
	for i := range buf.Data {
		buf.Data[i] = 100
	}
	img.Pixels = buf
	return img
}

func ruleSet(list ...rules.RedactionRule) *rules.RedactionRules {
	return rules.NewRedactionRules(list)
}

func rule(modality string, region pixel.Region, fields ...rules.FieldMatch) rules.RedactionRule {
	if modality != "" {
		fields = append(fields, rules.FieldMatch{Field: "Modality", Value: modality})
	}
	return rules.RedactionRule{Modality: modality, Fields: fields, Regions: []pixel.Region{region}}
}

func assertRegion(t *testing.T, before, after *pixel.Buffer, regions ...pixel.Region) {
	t.Helper()
	for f := 0; f < after.Frames; f++ {
		for y := 0; y < after.Rows; y++ {
			for x := 0; x < after.Cols; x++ {
				inside := false
				for _, r := range regions {
					if y >= r.Y0 && y < r.Y1 && x >= r.X0 && x < r.X1 {
						inside = true
					}
				}
				for s := 0; s < after.Samples; s++ {
					got := after.At(f, y, x, s)
					if inside && got != 0 {
						t.Fatalf("(%d,%d,%d,%d) = %d inside region, want 0", f, y, x, s, got)
					}
					if !inside && got != before.At(f, y, x, s) {
						t.Fatalf("(%d,%d,%d,%d) changed outside region", f, y, x, s)
					}
				}
			}
		}
	}
}

// TestRedactor_ScenarioB tests a PT secondary capture matching one rule.
func TestRedactor_ScenarioB(t *testing.T) {
	t.Parallel()

	region := pixel.Region{Y0: 0, Y1: 50, X0: 0, X1: 50}
	r := New(ruleSet(rule("PT", region, rules.FieldMatch{Field: "Manufacturer", Value: "ACME MEDICAL"})))

	img := secondaryImage("PT", 128, 128, 1)
	before := img.Pixels.Clone()

	res, err := r.Redact(img)
	if err != nil {
		t.Fatalf("Redact() error = %v", err)
	}
	if res.Status != model.Cleared {
		t.Fatalf("Status = %s, want cleared", res.Status)
	}
	if !img.PixelsModified {
		t.Error("PixelsModified not set")
	}
	assertRegion(t, before, img.Pixels, region)

	// applying again leaves the buffer unchanged
	once := img.Pixels.Clone()
	if _, err := r.Redact(img); err != nil {
		t.Fatal(err)
	}
	for i := range once.Data {
		if once.Data[i] != img.Pixels.Data[i] {
			t.Fatalf("second application changed index %d", i)
		}
	}
}

// TestRedactor_WrittenToDisk tests that a redaction survives writing the
// file and reading it back, for each native pixel layout.
func TestRedactor_WrittenToDisk(t *testing.T) {
	t.Parallel()

	region := pixel.Region{Y0: 2, Y1: 6, X0: 1, X1: 9}
	tests := []struct {
		name    string
		frames  int
		samples int
		bits    int
	}{
		{name: "8-bit grey", frames: 1, samples: 1, bits: 8},
		{name: "16-bit grey multi-frame", frames: 2, samples: 1, bits: 16},
		{name: "8-bit rgb", frames: 1, samples: 3, bits: 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			img := model.NewImage(dicomio.Minimal("1.2.840.10008.5.1.4.1.1.7", "1.2.9.1")...)
			img.Set(model.TagModality, "CS", model.Text("PT"))
			img.Set(model.TagImageType, "CS", model.Text("DERIVED", "SECONDARY"))
			img.Set(model.TagManufacturer, "LO", model.Text("ACME Medical"))
			buf := pixel.NewBuffer(tt.frames, 10, 12, tt.samples)
			buf.BitsAllocated = tt.bits
			for i := range buf.Data {
				buf.Data[i] = i%200 + 1
			}
			dicomio.AttachPixels(img, buf)

			path := filepath.Join(t.TempDir(), "sc.dcm")
			if err := dicomio.WriteFile(path, dicomio.FromImage(img)); err != nil {
				t.Fatalf("WriteFile() error = %v", err)
			}

			f, err := dicomio.Read(path)
			if err != nil {
				t.Fatalf("Read() error = %v", err)
			}
			r := New(ruleSet(rule("PT", region, rules.FieldMatch{Field: "Manufacturer", Value: "ACME MEDICAL"})))
			res, err := r.Redact(f.Image)
			if err != nil {
				t.Fatalf("Redact() error = %v", err)
			}
			if res.Status != model.Cleared {
				t.Fatalf("Status = %s, want cleared", res.Status)
			}
			if err := dicomio.WriteFile(path, f); err != nil {
				t.Fatalf("WriteFile() after redaction error = %v", err)
			}

			again, err := dicomio.Read(path)
			if err != nil {
				t.Fatalf("Read() after redaction error = %v", err)
			}
			if again.Image.Pixels == nil {
				t.Fatal("pixels not decoded")
			}
			assertRegion(t, buf, again.Image.Pixels, region)
		})
	}
}

// TestRedactor_Status tests the not applicable and unmatched paths.
func TestRedactor_Status(t *testing.T) {
	t.Parallel()

	region := pixel.Region{Y0: 0, Y1: 4, X0: 0, X1: 4}
	r := New(ruleSet(rule("US", region, rules.FieldMatch{Field: "Manufacturer", Value: "Other Vendor"})))

	tests := []struct {
		name   string
		mutate func(img *model.Image)
		want   model.RedactionStatus
	}{
		{
			name:   "primary image is not applicable",
			mutate: func(img *model.Image) { img.Set(model.TagImageType, "CS", model.Text("ORIGINAL", "PRIMARY")) },
			want:   model.NotApplicable,
		},
		{
			name:   "no image type is not applicable",
			mutate: func(img *model.Image) { img.Remove(model.TagImageType) },
			want:   model.NotApplicable,
		},
		{
			name:   "field value differs",
			mutate: func(*model.Image) {},
			want:   model.NoRuleMatched,
		},
		{
			name: "field missing",
			mutate: func(img *model.Image) {
				img.Remove(model.TagManufacturer)
			},
			want: model.NoRuleMatched,
		},
		{
			name: "other modality",
			mutate: func(img *model.Image) {
				img.Set(model.TagModality, "CS", model.Text("CT"))
				img.Set(model.TagManufacturer, "LO", model.Text("Other Vendor"))
			},
			want: model.NoRuleMatched,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			img := secondaryImage("US", 8, 8, 1)
			tt.mutate(img)
			before := img.Pixels.Clone()

			res, err := r.Redact(img)
			if err != nil {
				t.Fatalf("Redact() error = %v", err)
			}
			if res.Status != tt.want {
				t.Errorf("Status = %s, want %s", res.Status, tt.want)
			}
			if img.PixelsModified {
				t.Error("pixels modified without a match")
			}
			assertRegion(t, before, img.Pixels)
		})
	}
}

// TestRedactor_Matching tests value normalisation and field forms.
func TestRedactor_Matching(t *testing.T) {
	t.Parallel()

	region := pixel.Region{Y0: 0, Y1: 2, X0: 0, X1: 2}
	tests := []struct {
		name  string
		field rules.FieldMatch
		want  model.RedactionStatus
	}{
		{name: "case and spaces ignored", field: rules.FieldMatch{Field: "SeriesDescription", Value: "patientprotocol"}, want: model.Cleared},
		{name: "bracketed tag", field: rules.FieldMatch{Field: "[0008,0070]", Value: "Acme Medical"}, want: model.Cleared},
		{name: "list field matches one element", field: rules.FieldMatch{Field: "ImageType", Value: "derived"}, want: model.Cleared},
		{name: "list field needs a whole element", field: rules.FieldMatch{Field: "ImageType", Value: "DERIVED\\SECONDARY"}, want: model.NoRuleMatched},
		{name: "prefix is not a match", field: rules.FieldMatch{Field: "Manufacturer", Value: "ACME"}, want: model.NoRuleMatched},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := New(ruleSet(rule("", region, tt.field)))
			res, err := r.Redact(secondaryImage("OT", 4, 4, 1))
			if err != nil {
				t.Fatalf("Redact() error = %v", err)
			}
			if res.Status != tt.want {
				t.Errorf("Status = %s, want %s", res.Status, tt.want)
			}
		})
	}
}

// TestRedactor_ListFieldFolding tests that list field elements are
// compared case-insensitively with whitespace removed, like single values.
func TestRedactor_ListFieldFolding(t *testing.T) {
	t.Parallel()

	region := pixel.Region{Y0: 0, Y1: 2, X0: 0, X1: 2}
	tests := []struct {
		name  string
		value string
		want  model.RedactionStatus
	}{
		{name: "upper-case rule value", value: "SECONDARY", want: model.Cleared},
		{name: "mixed-case rule value", value: "Derived", want: model.Cleared},
		{name: "inner whitespace ignored", value: "SECOND ARY", want: model.Cleared},
		{name: "absent element", value: "PRIMARY", want: model.NoRuleMatched},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			img := secondaryImage("OT", 4, 4, 1)
			img.Set(model.TagImageType, "CS", model.Text("derived", " secondary "))

			r := New(ruleSet(rule("", region, rules.FieldMatch{Field: "ImageType", Value: tt.value})))
			res, err := r.Redact(img)
			if err != nil {
				t.Fatalf("Redact() error = %v", err)
			}
			if res.Status != tt.want {
				t.Errorf("Status = %s, want %s", res.Status, tt.want)
			}
		})
	}
}

// TestRedactor_Policy tests first-match and union composition.
func TestRedactor_Policy(t *testing.T) {
	t.Parallel()

	top := pixel.Region{Y0: 0, Y1: 2, X0: 0, X1: 8}
	bottom := pixel.Region{Y0: 6, Y1: 8, X0: 0, X1: 8}
	rs := ruleSet(
		rule("US", top, rules.FieldMatch{Field: "Manufacturer", Value: "ACME MEDICAL"}),
		rule("", bottom, rules.FieldMatch{Field: "ImageType", Value: "SECONDARY"}),
	)

	t.Run("first match applies the modality rule only", func(t *testing.T) {
		t.Parallel()

		img := secondaryImage("US", 8, 8, 1)
		before := img.Pixels.Clone()
		res, err := New(rs).Redact(img)
		if err != nil {
			t.Fatal(err)
		}
		if len(res.Rules) != 1 {
			t.Errorf("applied %d rules, want 1", len(res.Rules))
		}
		assertRegion(t, before, img.Pixels, top)
	})

	t.Run("union applies every match", func(t *testing.T) {
		t.Parallel()

		img := secondaryImage("US", 8, 8, 1)
		before := img.Pixels.Clone()
		res, err := New(rs, WithPolicy(Union)).Redact(img)
		if err != nil {
			t.Fatal(err)
		}
		if len(res.Rules) != 2 || res.Regions != 2 {
			t.Errorf("Result = %+v, want 2 rules", res)
		}
		assertRegion(t, before, img.Pixels, top, bottom)
	})

	t.Run("missing modality falls back to OTHER", func(t *testing.T) {
		t.Parallel()

		img := secondaryImage("US", 8, 8, 1)
		img.Remove(model.TagModality)
		before := img.Pixels.Clone()
		if _, err := New(rs).Redact(img); err != nil {
			t.Fatal(err)
		}
		assertRegion(t, before, img.Pixels, bottom)
	})
}

// TestRedactor_Encapsulated tests decompression before zeroing.
func TestRedactor_Encapsulated(t *testing.T) {
	t.Parallel()

	region := pixel.Region{Y0: 0, Y1: 8, X0: 0, X1: 16}
	r := New(ruleSet(rule("US", region, rules.FieldMatch{Field: "ImageType", Value: "SECONDARY"})))

	src := pixel.NewBuffer(2, 16, 16, 3)
	for i := range src.Data {
		src.Data[i] = 180
	}
	img := secondaryImage("US", 1, 1, 1)
	img.Pixels = nil
	for f := 0; f < src.Frames; f++ {
		data, err := pixel.EncodeJPEGFrame(src, f)
		if err != nil {
			t.Fatal(err)
		}
		img.Encapsulated = append(img.Encapsulated, data)
	}

	res, err := r.Redact(img)
	if err != nil {
		t.Fatalf("Redact() error = %v", err)
	}
	if !res.Decompressed || img.Encapsulated != nil || img.Pixels == nil {
		t.Fatal("frames not decompressed")
	}
	if got, _ := img.Text(model.TagTransferSyntaxUID); got != model.ExplicitVRLittleEndian {
		t.Errorf("TransferSyntaxUID = %q", got)
	}
	if got, _ := img.Text(model.TagPhotometricInterpretation); got != pixel.PhotometricRGB {
		t.Errorf("PhotometricInterpretation = %q", got)
	}
	if img.Pixels.At(1, 3, 3, 0) != 0 || img.Pixels.At(1, 12, 3, 0) == 0 {
		t.Error("region not zeroed on second frame")
	}

	broken := secondaryImage("US", 1, 1, 1)
	broken.Pixels = nil
	broken.Encapsulated = [][]byte{[]byte("jpeg 2000 bytes")}
	if _, err := r.Redact(broken); !errors.Is(err, model.ErrUnsupportedCompression) {
		t.Errorf("Redact() error = %v, want ErrUnsupportedCompression", err)
	}
}

// TestRedactor_YBRFull tests colour conversion of native YBR_FULL pixels.
func TestRedactor_YBRFull(t *testing.T) {
	t.Parallel()

	region := pixel.Region{Y0: 0, Y1: 1, X0: 0, X1: 1}
	r := New(ruleSet(rule("", region, rules.FieldMatch{Field: "ImageType", Value: "SECONDARY"})))

	img := secondaryImage("US", 2, 2, 3)
	img.Set(model.TagPhotometricInterpretation, "CS", model.Text("YBR_FULL"))
	for i := 0; i < len(img.Pixels.Data); i += 3 {
		img.Pixels.Data[i], img.Pixels.Data[i+1], img.Pixels.Data[i+2] = 128, 128, 128
	}

	if _, err := r.Redact(img); err != nil {
		t.Fatal(err)
	}
	if got, _ := img.Text(model.TagPhotometricInterpretation); got != pixel.PhotometricRGB {
		t.Errorf("PhotometricInterpretation = %q, want RGB", got)
	}
	if img.Pixels.At(0, 1, 1, 0) != 128 {
		t.Errorf("converted grey = %d, want 128", img.Pixels.At(0, 1, 1, 0))
	}
}

// TestParsePolicy tests policy names.
func TestParsePolicy(t *testing.T) {
	t.Parallel()

	if p, err := ParsePolicy(""); err != nil || p != FirstMatch {
		t.Errorf("ParsePolicy(\"\") = %s, %v", p, err)
	}
	if p, err := ParsePolicy("UNION"); err != nil || p != Union {
		t.Errorf("ParsePolicy(UNION) = %s, %v", p, err)
	}
	if _, err := ParsePolicy("all"); !errors.Is(err, ErrInvalidPolicy) {
		t.Errorf("ParsePolicy(all) error = %v", err)
	}
}
