package workspace

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/chanonchantad/anon-pipeline/internal/dicomio"
	"github.com/chanonchantad/anon-pipeline/internal/model"
	"github.com/chanonchantad/anon-pipeline/internal/pixel"
)

func writeDICOM(t *testing.T, path, accession, series, sop string) {
	t.Helper()

	img := model.NewImage(dicomio.Minimal("1.2.840.10008.5.1.4.1.1.2", sop)...)
	img.Set(model.TagAccessionNumber, "SH", model.Text(accession))
	img.Set(model.TagSeriesInstanceUID, "UI", model.Text(series))
	img.Set(model.TagModality, "CS", model.Text("CT"))
	dicomio.AttachPixels(img, pixel.NewBuffer(1, 2, 2, 1))

	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		t.Fatal(err)
	}
	if err := dicomio.WriteFile(path, dicomio.FromImage(img)); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}

func touch(t *testing.T, path string, data string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}
}

// TestLayout tests the directory structure.
func TestLayout(t *testing.T) {
	t.Parallel()

	l := New("/data/run/")
	tests := []struct {
		name string
		got  string
		want string
	}{
		{name: "flat", got: l.Flat(), want: "/data/run/flat"},
		{name: "sorted", got: l.Sorted(), want: "/data/run/sorted"},
		{name: "anon", got: l.Dir(Released), want: "/data/run/anon"},
		{name: "quarantine", got: l.Dir(Withheld), want: "/data/run/quarantine"},
		{name: "log", got: l.LogFile(), want: "/data/run/logs/anon.txt"},
		{name: "legend", got: l.LegendFile(), want: "/data/run/anon/legend.csv"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if tt.got != filepath.FromSlash(tt.want) {
				t.Errorf("got %s, want %s", tt.got, tt.want)
			}
		})
	}
}

// TestDiscover tests glob based discovery.
func TestDiscover(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	touch(t, filepath.Join(dir, "a", "1.dcm"), "x")
	touch(t, filepath.Join(dir, "a", "b", "2.dcm"), "x")
	touch(t, filepath.Join(dir, "3.dcm"), "x")
	touch(t, filepath.Join(dir, "notes.txt"), "x")

	t.Run("recursive", func(t *testing.T) {
		t.Parallel()

		got, err := Discover(dir, "**/*.dcm")
		if err != nil {
			t.Fatalf("Discover() error = %v", err)
		}
		if len(got) != 3 {
			t.Fatalf("Discover() = %v, want 3 files", got)
		}
		if got[0] != filepath.Join(dir, "3.dcm") {
			t.Errorf("first = %s, want sorted order", got[0])
		}
	})

	t.Run("one level", func(t *testing.T) {
		t.Parallel()

		got, err := Discover(dir, "*/*.dcm")
		if err != nil {
			t.Fatalf("Discover() error = %v", err)
		}
		if len(got) != 1 {
			t.Errorf("Discover() = %v, want 1 file", got)
		}
	})

	t.Run("missing directory", func(t *testing.T) {
		t.Parallel()

		got, err := Discover(filepath.Join(dir, "nope"), "**/*.dcm")
		if err != nil || len(got) != 0 {
			t.Errorf("Discover() = %v, %v", got, err)
		}
	})

	t.Run("bad pattern", func(t *testing.T) {
		t.Parallel()

		if _, err := Discover(dir, "[a-"); !errors.Is(err, ErrInvalidPattern) {
			t.Errorf("error = %v, want ErrInvalidPattern", err)
		}
	})
}

// TestSeriesSizes tests per directory counts.
func TestSeriesSizes(t *testing.T) {
	t.Parallel()

	sizes := SeriesSizes([]string{"/s/A/1/a.dcm", "/s/A/1/b.dcm", "/s/A/2/c.dcm"})
	if sizes[filepath.FromSlash("/s/A/1")] != 2 || sizes[filepath.FromSlash("/s/A/2")] != 1 {
		t.Errorf("SeriesSizes() = %v", sizes)
	}
}

// TestFingerprint tests content hashing.
func TestFingerprint(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	touch(t, filepath.Join(dir, "a"), "same")
	touch(t, filepath.Join(dir, "b"), "same")
	touch(t, filepath.Join(dir, "c"), "different")

	a, err := Fingerprint(filepath.Join(dir, "a"))
	if err != nil {
		t.Fatalf("Fingerprint() error = %v", err)
	}
	b, _ := Fingerprint(filepath.Join(dir, "b"))
	c, _ := Fingerprint(filepath.Join(dir, "c"))

	if len(a) != 16 || a != b || a == c {
		t.Errorf("fingerprints = %s %s %s", a, b, c)
	}
	if _, err := Fingerprint(filepath.Join(dir, "missing")); err == nil {
		t.Error("expected error for missing file")
	}
}

// TestSort tests sorting flat files by accession and series.
func TestSort(t *testing.T) {
	t.Parallel()

	l := New(t.TempDir())
	writeDICOM(t, filepath.Join(l.Flat(), "x", "one.dcm"), "ACC1", "1.2.3", "1.2.3.1")
	writeDICOM(t, filepath.Join(l.Flat(), "two.dcm"), "ACC1", "1.2.4", "1.2.4.1")
	writeDICOM(t, filepath.Join(l.Flat(), "three.dcm"), "", "1.2.5", "1.2.5.1")
	touch(t, filepath.Join(l.Flat(), "broken.dcm"), "not dicom")

	res, err := l.Sort(context.Background(), "**/*.dcm", nil, nil)
	if err != nil {
		t.Fatalf("Sort() error = %v", err)
	}
	if len(res.Sorted) != 3 || len(res.Skipped) != 1 {
		t.Fatalf("Sort() = %+v", res)
	}

	for _, want := range []string{
		filepath.Join(l.Sorted(), "ACC1", "1.2.3", "1.2.3.1.dcm"),
		filepath.Join(l.Sorted(), "ACC1", "1.2.4", "1.2.4.1.dcm"),
		filepath.Join(l.Sorted(), UnknownComponent, "1.2.5", "1.2.5.1.dcm"),
	} {
		if _, err := os.Stat(want); err != nil {
			t.Errorf("missing sorted file %s", want)
		}
	}
	if _, err := os.Stat(filepath.Join(l.Flat(), "broken.dcm")); err != nil {
		t.Error("unsortable file should stay in place")
	}
}

// TestSort_Cancelled tests that a cancelled context stops sorting.
func TestSort_Cancelled(t *testing.T) {
	t.Parallel()

	l := New(t.TempDir())
	writeDICOM(t, filepath.Join(l.Flat(), "one.dcm"), "ACC1", "1.2.3", "1.2.3.1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := l.Sort(ctx, "**/*.dcm", nil, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if len(res.Sorted) != 0 {
		t.Errorf("sorted %d files after cancel", len(res.Sorted))
	}
}

// TestRoute tests moving files into the output areas.
func TestRoute(t *testing.T) {
	t.Parallel()

	l := New(t.TempDir())
	src := filepath.Join(l.Sorted(), "ACC1", "1.2.3", "a.dcm")
	touch(t, src, "data")

	dst, err := l.Route(src, Withheld, "ACC1", "1.2.3")
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	want := filepath.Join(l.Quarantine(), "ACC1", "1.2.3", "a.dcm")
	if dst != want {
		t.Errorf("Route() = %s, want %s", dst, want)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Error("source still exists")
	}

	again, err := l.Route(dst, Withheld, "ACC1", "1.2.3")
	if err != nil || again != dst {
		t.Errorf("routing in place = %s, %v", again, err)
	}

	if _, err := l.Route(filepath.Join(l.Root, "missing.dcm"), Released, "A", "S"); err == nil {
		t.Error("expected error for missing source")
	}
}

// TestSeriesKey tests accession and series extraction from paths.
func TestSeriesKey(t *testing.T) {
	t.Parallel()

	acc, series := SeriesKey(filepath.FromSlash("/ws/sorted/ACC9/1.2.840/x.dcm"))
	if acc != "ACC9" || series != "1.2.840" {
		t.Errorf("SeriesKey() = %s, %s", acc, series)
	}
}

// TestComponent tests path element sanitising.
func TestComponent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{in: "ACC1", want: "ACC1"},
		{in: " 1.2.3\x00", want: "1.2.3"},
		{in: "", want: UnknownComponent},
		{in: "..", want: UnknownComponent},
		{in: "a/b", want: "a_b"},
	}
	for _, tt := range tests {
		if got := component(tt.in); got != tt.want {
			t.Errorf("component(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// TestLock tests that a second lock on the same workspace fails.
func TestLock(t *testing.T) {
	t.Parallel()

	l := New(t.TempDir())
	first, err := l.Lock()
	if err != nil {
		t.Fatalf("Lock() error = %v", err)
	}

	if _, err := l.Lock(); !errors.Is(err, ErrLocked) {
		t.Errorf("second Lock() error = %v, want ErrLocked", err)
	}

	if err := first.Unlock(); err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}
	again, err := l.Lock()
	if err != nil {
		t.Fatalf("Lock() after unlock error = %v", err)
	}
	_ = again.Unlock()
}

// TestProgress tests counting and the non-terminal silence.
func TestProgress(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	p := NewProgress(&buf, "Checking rules")
	p.Start(3)
	p.Increment()
	p.Increment()
	p.Finish()

	if p.Done() != 2 {
		t.Errorf("Done() = %d, want 2", p.Done())
	}
	if buf.Len() != 0 {
		t.Errorf("progress written to a non-terminal: %q", buf.String())
	}

	var none *Progress
	none.Start(1)
	none.Increment()
	none.Finish()
	if none.Done() != 0 {
		t.Error("nil progress counted")
	}
}

// TestInFlat tests input directory membership.
func TestInFlat(t *testing.T) {
	t.Parallel()

	l := New("/ws")
	tests := []struct {
		path string
		want bool
	}{
		{path: "/ws/flat/a.dcm", want: true},
		{path: "/ws/flat/x/y/a.dcm", want: true},
		{path: "/ws/sorted/A/1/a.dcm", want: false},
		{path: "/ws/flatter/a.dcm", want: false},
		{path: "/other/a.dcm", want: false},
	}
	for _, tt := range tests {
		if got := l.InFlat(filepath.FromSlash(tt.path)); got != tt.want {
			t.Errorf("InFlat(%s) = %v, want %v", tt.path, got, tt.want)
		}
	}
}
