package rules

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chanonchantad/anon-pipeline/internal/model"
	"github.com/chanonchantad/anon-pipeline/internal/pixel"
)

const sampleTagTable = `remove_tag,shift_tag,hashuid_tag,hashptid_tag
"(0010,0010)","(0008,0020)","(0020,000D)","(0010,0020)"
"(0008,0090)","(0010,0030)","(0020,000E)",
"(0008,0080)",,"(0008,0018)",
`

// TestParseTagTable tests column handling and empty cells.
func TestParseTagTable(t *testing.T) {
	t.Parallel()

	table, err := ParseTagTable(strings.NewReader(sampleTagTable))
	if err != nil {
		t.Fatalf("ParseTagTable() error = %v", err)
	}

	tests := []struct {
		tag  model.Tag
		want TagAction
	}{
		{tag: model.TagPatientName, want: Remove},
		{tag: model.TagReferringPhysicianName, want: Remove},
		{tag: model.TagInstitutionName, want: Remove},
		{tag: model.TagStudyDate, want: ShiftDate},
		{tag: model.TagPatientBirthDate, want: ShiftDate},
		{tag: model.TagStudyInstanceUID, want: HashAsUID},
		{tag: model.TagSeriesInstanceUID, want: HashAsUID},
		{tag: model.TagSOPInstanceUID, want: HashAsUID},
		{tag: model.TagPatientID, want: HashIdentifier},
	}

	for _, tt := range tests {
		got, ok := table.Action(tt.tag)
		if !ok {
			t.Errorf("Action(%s) missing", tt.tag)
			continue
		}
		if got != tt.want {
			t.Errorf("Action(%s) = %s, want %s", tt.tag, got, tt.want)
		}
	}

	if table.Len() != len(tests) {
		t.Errorf("Len() = %d, want %d", table.Len(), len(tests))
	}
	if len(table.Conflicts()) != 0 {
		t.Errorf("Conflicts() = %v, want none", table.Conflicts())
	}
}

// TestParseTagTable_Conflicts tests precedence between columns.
func TestParseTagTable_Conflicts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		csv  string
		want TagAction
	}{
		{
			name: "identifier hash beats removal",
			csv:  "remove_tag,hashptid_tag\n\"(0010,0020)\",\"(0010,0020)\"\n",
			want: HashIdentifier,
		},
		{
			name: "uid hash beats shift",
			csv:  "shift_tag,hashuid_tag\n\"(0008,0020)\",\"(0008,0020)\"\n",
			want: HashAsUID,
		},
		{
			name: "shift beats removal regardless of column order",
			csv:  "shift_tag,remove_tag\n\"(0008,0020)\",\"(0008,0020)\"\n",
			want: ShiftDate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			table, err := ParseTagTable(strings.NewReader(tt.csv))
			if err != nil {
				t.Fatalf("ParseTagTable() error = %v", err)
			}
			conflicts := table.Conflicts()
			if len(conflicts) != 1 {
				t.Fatalf("Conflicts() len = %d, want 1", len(conflicts))
			}
			if conflicts[0].Resolved != tt.want {
				t.Errorf("Resolved = %s, want %s", conflicts[0].Resolved, tt.want)
			}
			if got, _ := table.Action(conflicts[0].Tag); got != tt.want {
				t.Errorf("Action() = %s, want %s", got, tt.want)
			}
		})
	}
}

// TestParseTagTable_Errors tests rejected tables.
func TestParseTagTable_Errors(t *testing.T) {
	t.Parallel()

	if _, err := ParseTagTable(strings.NewReader("a,b\n1,2\n")); !errors.Is(err, ErrNoActionColumns) {
		t.Errorf("unknown columns error = %v, want ErrNoActionColumns", err)
	}
	if _, err := ParseTagTable(strings.NewReader("remove_tag\nnot-a-tag\n")); !errors.Is(err, model.ErrInvalidTag) {
		t.Errorf("bad tag error = %v, want ErrInvalidTag", err)
	}
	if _, err := ParseTagTable(strings.NewReader("")); err == nil {
		t.Error("empty input accepted")
	}
}

// TestLoadTagTable tests reading from disk.
func TestLoadTagTable(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "tags.csv")
	if err := os.WriteFile(path, []byte(sampleTagTable), 0600); err != nil {
		t.Fatal(err)
	}
	table, err := LoadTagTable(path)
	if err != nil {
		t.Fatalf("LoadTagTable() error = %v", err)
	}
	if table.Count(HashAsUID) != 3 {
		t.Errorf("Count(HashAsUID) = %d, want 3", table.Count(HashAsUID))
	}

	if _, err := LoadTagTable(filepath.Join(t.TempDir(), "missing.csv")); err == nil {
		t.Error("missing file accepted")
	}
}

const sampleRedactionRules = `
- name: acme-us-header
  fields:
    Modality: US
    Manufacturer: ACME Medical
  coords:
    - {y0: 0, y1: 40, x0: 0, x1: 640}
- fields:
    ImageType: SECONDARY
    "[0008,1090]": Scanner X
  coords:
    - {y0: 0, y1: 20, x0: 0, x1: 100}
    - {y0: 460, y1: 480, x0: 0, x1: 100}
`

// TestParseRedactionRules tests stratification by modality.
func TestParseRedactionRules(t *testing.T) {
	t.Parallel()

	rs, err := ParseRedactionRules([]byte(sampleRedactionRules))
	if err != nil {
		t.Fatalf("ParseRedactionRules() error = %v", err)
	}
	if rs.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", rs.Len())
	}

	us := rs.Candidates("US")
	if len(us) != 2 || us[0].Name != "acme-us-header" || us[1].Modality != OtherModality {
		t.Errorf("Candidates(US) = %+v", us)
	}
	if got := rs.Candidates("CT"); len(got) != 1 || got[0].Modality != OtherModality {
		t.Errorf("Candidates(CT) = %+v", got)
	}
	if got := rs.Candidates(""); len(got) != 1 {
		t.Errorf("Candidates(\"\") = %+v", got)
	}

	other := rs.Candidates("")[0]
	if len(other.Regions) != 2 || other.Regions[1] != (pixel.Region{Y0: 460, Y1: 480, X0: 0, X1: 100}) {
		t.Errorf("Regions = %v", other.Regions)
	}
	if other.Fields[0].Field != "ImageType" || other.Fields[1].Field != "[0008,1090]" {
		t.Errorf("Fields not sorted: %v", other.Fields)
	}
}

// TestParseRedactionRules_Errors tests malformed rule files.
func TestParseRedactionRules_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		yaml    string
		wantErr error
	}{
		{
			name:    "negative coordinate",
			yaml:    "- fields: {Modality: US}\n  coords: [{y0: -1, y1: 2, x0: 0, x1: 2}]\n",
			wantErr: pixel.ErrInvalidRegion,
		},
		{
			name:    "inverted range",
			yaml:    "- fields: {Modality: US}\n  coords: [{y0: 5, y1: 2, x0: 0, x1: 2}]\n",
			wantErr: pixel.ErrInvalidRegion,
		},
		{
			name:    "no fields",
			yaml:    "- coords: [{y0: 0, y1: 2, x0: 0, x1: 2}]\n",
			wantErr: ErrInvalidRedactionRule,
		},
		{
			name:    "no coords",
			yaml:    "- fields: {Modality: US}\n",
			wantErr: ErrInvalidRedactionRule,
		},
		{
			name:    "bad bracketed tag",
			yaml:    "- fields: {\"[00GG,0010]\": x}\n  coords: [{y0: 0, y1: 2, x0: 0, x1: 2}]\n",
			wantErr: model.ErrInvalidTag,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := ParseRedactionRules([]byte(tt.yaml))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ParseRedactionRules() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// TestQuarantineRules tests defaults, overrides and validation.
func TestQuarantineRules(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()

		q := DefaultQuarantineRules()
		if err := q.Validate(); err != nil {
			t.Fatalf("Validate() error = %v", err)
		}
		if q.IsEnabled(SmallSeries) {
			t.Error("small_series enabled by default")
		}
		if got := q.Modalities["CT"]; len(got) != 6 || got[0] != SmallSeries {
			t.Errorf("CT rules = %v", got)
		}
		if got, ok := q.Modalities["NM"]; !ok || len(got) != 0 {
			t.Errorf("NM rules = %v, %v", got, ok)
		}
	})

	t.Run("merge overrides", func(t *testing.T) {
		t.Parallel()

		q := DefaultQuarantineRules()
		q.Merge(&QuarantineRules{
			Modalities:      map[string][]string{"mg": {RGB}},
			Enabled:         map[string]bool{SmallSeries: true},
			MinSeriesImages: 3,
		})
		if got := q.Modalities["MG"]; len(got) != 1 || got[0] != RGB {
			t.Errorf("MG rules = %v", got)
		}
		if !q.IsEnabled(SmallSeries) || q.MinSeriesImages != 3 {
			t.Error("switch or threshold not merged")
		}
		if len(q.DescriptionDenylist) != 1 {
			t.Error("empty denylist override replaced the default")
		}
	})

	t.Run("unknown rule name", func(t *testing.T) {
		t.Parallel()

		q := DefaultQuarantineRules()
		q.Modalities["CT"] = append(q.Modalities["CT"], "colour")
		if err := q.Validate(); !errors.Is(err, ErrUnknownQuarantineRule) {
			t.Errorf("Validate() error = %v, want ErrUnknownQuarantineRule", err)
		}
	})
}
