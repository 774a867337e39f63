package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/i474232898/radar-imagery/internal/radar"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

var cycle = time.Date(2024, 5, 1, 13, 42, 10, 0, time.UTC)

func testImage() image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	img.SetNRGBA(1, 1, color.NRGBA{0, 142, 0, 255})
	return img
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

// persistAndCommit writes and publishes one artifact pair.
func persistAndCommit(t *testing.T, w *FileWriter, station string, at time.Time, img image.Image, bounds radar.BoundingBox, key string) radar.RenderedArtifact {
	t.Helper()
	a, err := w.Persist(station, at, img, bounds, key)
	if err != nil {
		t.Fatalf("persist: %v", err)
	}
	if err := w.Commit(a); err != nil {
		t.Fatalf("commit: %v", err)
	}
	return a
}

func solidImage(c color.NRGBA) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestArtifactNames(t *testing.T) {
	if got := ImageName("KLWX", cycle); got != "KLWX_Reflectivity_2024050113.png" {
		t.Fatalf("unexpected image name %s", got)
	}
	if got := BoundsName("KLWX", cycle); got != "KLWX_Reflectivity_2024050113_bounds.json" {
		t.Fatalf("unexpected bounds name %s", got)
	}
}

func TestResetRemovesStaleOutput(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "radar")
	if err := os.MkdirAll(filepath.Join(dir, "nested"), 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"stale.txt", "KLWX_Reflectivity_2020010100.png", "nested/deep.png"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("old"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	w := NewFileWriter(dir, testLogger)
	if err := w.Reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if names := listDir(t, dir); len(names) != 0 {
		t.Fatalf("expected empty dir after reset, got %v", names)
	}
}

func TestResetCreatesMissingDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	if err := NewFileWriter(dir, testLogger).Reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Fatalf("expected directory to exist: %v", err)
	}
}

func TestPersistStagesUntilCommit(t *testing.T) {
	dir := t.TempDir()
	w := NewFileWriter(dir, testLogger)
	bounds := radar.BoundingBox{MinLat: 34.5, MaxLat: 43.25, MinLon: -82.75, MaxLon: -72.125}

	a, err := w.Persist("KLWX", cycle, testImage(), bounds, "2024/05/01/KLWX/KLWX20240501_134002_V06")
	if err != nil {
		t.Fatalf("persist: %v", err)
	}
	if a.Stamp() != "2024050113" || a.Bounds != bounds || a.Station != "KLWX" {
		t.Fatalf("unexpected artifact %+v", a)
	}
	if _, err := os.Stat(a.ImagePath); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("image must not be visible before commit: %v", err)
	}

	if err := w.Commit(a); err != nil {
		t.Fatalf("commit: %v", err)
	}

	want := []string{"KLWX_Reflectivity_2024050113.png", "KLWX_Reflectivity_2024050113_bounds.json"}
	if names := listDir(t, dir); len(names) != 2 || names[0] != want[0] || names[1] != want[1] {
		t.Fatalf("expected %v, got %v", want, names)
	}

	raw, err := os.ReadFile(a.BoundsPath)
	if err != nil {
		t.Fatal(err)
	}
	wantDoc := `{"min_lat": 34.5, "max_lat": 43.25, "min_lon": -82.75, "max_lon": -72.125}`
	if string(raw) != wantDoc {
		t.Fatalf("bounds document:\n got %s\nwant %s", raw, wantDoc)
	}
	var doc map[string]float64
	if err := json.Unmarshal(raw, &doc); err != nil || len(doc) != 4 {
		t.Fatalf("bounds is not a four-field json object: %v", err)
	}

	f, err := os.Open(a.ImagePath)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("image is not a png: %v", err)
	}
	if _, _, _, alpha := img.At(0, 0).RGBA(); alpha != 0 {
		t.Fatal("expected transparent background")
	}
}

func TestEncodeBoundsFloatFormat(t *testing.T) {
	tests := []struct {
		v    float64
		want string
	}{
		{38, "38.0"},
		{-77, "-77.0"},
		{0, "0.0"},
		{36.7934961034473, "36.7934961034473"},
		{0.0001, "0.0001"},
		{0.00001, "1e-05"},
		{1.5e16, "1.5e+16"},
	}
	for _, tt := range tests {
		if got := jsonFloat(tt.v); got != tt.want {
			t.Errorf("jsonFloat(%v) = %q, want %q", tt.v, got, tt.want)
		}
	}

	got := string(encodeBounds(radar.BoundingBox{MinLat: 38, MaxLat: 45, MinLon: -80, MaxLon: -70}))
	if want := `{"min_lat": 38.0, "max_lat": 45.0, "min_lon": -80.0, "max_lon": -70.0}`; got != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestCommitFailureKeepsPreviousPair(t *testing.T) {
	dir := t.TempDir()
	w := NewFileWriter(dir, testLogger)
	early := time.Date(2024, 5, 1, 13, 5, 0, 0, time.UTC)
	late := time.Date(2024, 5, 1, 13, 45, 0, 0, time.UTC)

	old := persistAndCommit(t, w, "KAAA", early, solidImage(color.NRGBA{255, 0, 0, 255}), radar.BoundingBox{MinLat: 1, MaxLat: 2, MinLon: 3, MaxLon: 4}, "k-early")
	oldImage, err := os.ReadFile(old.ImagePath)
	if err != nil {
		t.Fatal(err)
	}

	// A non-empty directory at the bounds path makes the bounds rename fail.
	if err := os.Remove(old.BoundsPath); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(old.BoundsPath, "blocker"), 0o755); err != nil {
		t.Fatal(err)
	}

	next, err := w.Persist("KAAA", late, solidImage(color.NRGBA{0, 0, 255, 255}), radar.BoundingBox{MinLat: 5, MaxLat: 6, MinLon: 7, MaxLon: 8}, "k-late")
	if err != nil {
		t.Fatalf("persist: %v", err)
	}
	if next.ImagePath != old.ImagePath {
		t.Fatalf("same-hour artifacts must share a path: %s vs %s", next.ImagePath, old.ImagePath)
	}

	if err := w.Commit(next); !errors.Is(err, radar.ErrWrite) {
		t.Fatalf("expected ErrWrite, got %v", err)
	}

	got, err := os.ReadFile(old.ImagePath)
	if err != nil {
		t.Fatalf("previous image is gone: %v", err)
	}
	if !bytes.Equal(got, oldImage) {
		t.Fatal("previous image was replaced by a failed commit")
	}
	for _, name := range listDir(t, dir) {
		if strings.HasSuffix(name, ".tmp") {
			t.Fatalf("backup left behind: %s", name)
		}
	}
}

func TestCommitFailureWithoutPreviousLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	w := NewFileWriter(dir, testLogger)

	a, err := w.Persist("KAAA", cycle, testImage(), radar.BoundingBox{}, "k")
	if err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(a.BoundsPath, "blocker"), 0o755); err != nil {
		t.Fatal(err)
	}

	if err := w.Commit(a); !errors.Is(err, radar.ErrWrite) {
		t.Fatalf("expected ErrWrite, got %v", err)
	}
	if _, err := os.Stat(a.ImagePath); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("image without bounds must not stay visible: %v", err)
	}
}

func TestPersistFailureLeavesPreviousPair(t *testing.T) {
	dir := t.TempDir()
	w := NewFileWriter(dir, testLogger)

	old := persistAndCommit(t, w, "KAAA", cycle, testImage(), radar.BoundingBox{MinLat: 1}, "k0")
	oldImage, _ := os.ReadFile(old.ImagePath)
	oldBounds, _ := os.ReadFile(old.BoundsPath)

	// Block the staged bounds name so the second Persist fails half way.
	if err := os.MkdirAll(filepath.Join(dir, stagedPrefix+filepath.Base(old.BoundsPath), "blocker"), 0o755); err != nil {
		t.Fatal(err)
	}

	if _, err := w.Persist("KAAA", cycle, solidImage(color.NRGBA{0, 0, 255, 255}), radar.BoundingBox{MinLat: 9}, "k1"); !errors.Is(err, radar.ErrWrite) {
		t.Fatalf("expected ErrWrite, got %v", err)
	}

	gotImage, _ := os.ReadFile(old.ImagePath)
	gotBounds, _ := os.ReadFile(old.BoundsPath)
	if !bytes.Equal(gotImage, oldImage) || !bytes.Equal(gotBounds, oldBounds) {
		t.Fatal("failed persist touched the committed pair")
	}
	if _, err := os.Stat(filepath.Join(dir, stagedPrefix+filepath.Base(old.ImagePath))); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("staged image of a failed persist must be removed: %v", err)
	}
}

func TestPersistBoundsAreByteIdentical(t *testing.T) {
	bounds := radar.BoundingBox{MinLat: 36.793496103447, MaxLat: 45.052827879608266, MinLon: -83.47281512714993, MaxLon: -72.53464276292041}

	read := func() []byte {
		w := NewFileWriter(t.TempDir(), testLogger)
		a := persistAndCommit(t, w, "KCCX", cycle, testImage(), bounds, "k")
		b, err := os.ReadFile(a.BoundsPath)
		if err != nil {
			t.Fatal(err)
		}
		return b
	}

	if first, second := read(), read(); !bytes.Equal(first, second) {
		t.Fatalf("bounds differ between runs:\n%s\n%s", first, second)
	}
}

func TestPersistMissingDirIsWriteError(t *testing.T) {
	w := NewFileWriter(filepath.Join(t.TempDir(), "missing"), testLogger)

	_, err := w.Persist("KLWX", cycle, testImage(), radar.BoundingBox{}, "k")
	if !errors.Is(err, radar.ErrWrite) {
		t.Fatalf("expected ErrWrite, got %v", err)
	}
}

func TestPruneKeepsCurrentArtifacts(t *testing.T) {
	dir := t.TempDir()
	w := NewFileWriter(dir, testLogger)

	old := persistAndCommit(t, w, "KLWX", cycle.Add(-time.Hour), testImage(), radar.BoundingBox{}, "k0")
	current := persistAndCommit(t, w, "KLWX", cycle, testImage(), radar.BoundingBox{}, "k1")
	other := persistAndCommit(t, w, "KFCX", cycle.Add(-2*time.Hour), testImage(), radar.BoundingBox{}, "k2")
	if _, err := w.Persist("KBUF", cycle, testImage(), radar.BoundingBox{}, "never committed"); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".artifact-123.tmp"), []byte("partial"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "README"), []byte("not ours"), 0o644); err != nil {
		t.Fatal(err)
	}

	removed, err := w.Prune([]radar.RenderedArtifact{current, other})
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if removed != 5 {
		t.Fatalf("expected 5 removals (old pair, staged pair, temp), got %d", removed)
	}

	if _, err := os.Stat(old.ImagePath); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("superseded image should be gone: %v", err)
	}
	for _, p := range []string{current.ImagePath, current.BoundsPath, other.ImagePath, filepath.Join(dir, "README")} {
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("%s should remain: %v", p, err)
		}
	}
}
