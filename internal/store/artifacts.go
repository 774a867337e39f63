package store

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/i474232898/radar-imagery/internal/radar"
)

const (
	artifactMarker = "_Reflectivity_"
	tempPattern    = ".artifact-*.tmp"
	stagedPrefix   = ".staged-"
)

// ImageName returns the file name of a station's image for the cycle hour.
func ImageName(station string, cycleTime time.Time) string {
	return station + artifactMarker + cycleTime.UTC().Format(radar.TimestampLayout) + ".png"
}

// BoundsName returns the file name of a station's bounds document.
func BoundsName(station string, cycleTime time.Time) string {
	return station + artifactMarker + cycleTime.UTC().Format(radar.TimestampLayout) + "_bounds.json"
}

// FileWriter persists artifacts into a single output directory.
type FileWriter struct {
	dir    string
	logger *slog.Logger
}

var _ radar.ArtifactWriter = (*FileWriter)(nil)

// NewFileWriter creates a writer for dir. The directory is created by Reset.
func NewFileWriter(dir string, logger *slog.Logger) *FileWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileWriter{dir: dir, logger: logger}
}

// Dir returns the output directory.
func (w *FileWriter) Dir() string {
	return w.dir
}

// Reset creates the output directory if needed and removes everything in it.
func (w *FileWriter) Reset() error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create output dir %s: %w", w.dir, err)
	}

	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("read output dir %s: %w", w.dir, err)
	}
	for _, e := range entries {
		path := filepath.Join(w.dir, e.Name())
		if err := os.RemoveAll(path); err != nil {
			return fmt.Errorf("remove stale %s: %w", path, err)
		}
	}

	if len(entries) > 0 {
		w.logger.Info("cleared output directory", "dir", w.dir, "removed", len(entries))
	}
	return nil
}

// Persist stages the image and bounds document for station and cycleTime
// under hidden names. The returned artifact carries the final paths; the files
// appear there only once Commit succeeds. A staged pair that is never
// committed is removed by the next Prune.
func (w *FileWriter) Persist(station string, cycleTime time.Time, img image.Image, bounds radar.BoundingBox, sourceKey string) (radar.RenderedArtifact, error) {
	cycleTime = cycleTime.UTC()
	imagePath := filepath.Join(w.dir, ImageName(station, cycleTime))
	boundsPath := filepath.Join(w.dir, BoundsName(station, cycleTime))

	size, err := w.writeAtomic(stagedPath(imagePath), func(f io.Writer) error {
		return png.Encode(f, img)
	})
	if err != nil {
		return radar.RenderedArtifact{}, fmt.Errorf("%w: image %s: %v", radar.ErrWrite, imagePath, err)
	}

	if _, err := w.writeAtomic(stagedPath(boundsPath), func(f io.Writer) error {
		_, err := f.Write(encodeBounds(bounds))
		return err
	}); err != nil {
		os.Remove(stagedPath(imagePath))
		return radar.RenderedArtifact{}, fmt.Errorf("%w: bounds %s: %v", radar.ErrWrite, boundsPath, err)
	}

	w.logger.Debug("artifact staged", "station", station, "image", imagePath, "size", humanize.Bytes(uint64(size)))

	return radar.RenderedArtifact{
		Station:    station,
		CycleTime:  cycleTime,
		ImagePath:  imagePath,
		BoundsPath: boundsPath,
		Bounds:     bounds,
		SourceKey:  sourceKey,
	}, nil
}

// Commit moves a staged pair onto its final names. Either both files are
// replaced or, on error, the previous pair is left as it was.
func (w *FileWriter) Commit(a radar.RenderedArtifact) error {
	backup, err := w.backup(a.ImagePath)
	if err != nil {
		return fmt.Errorf("%w: back up %s: %v", radar.ErrWrite, a.ImagePath, err)
	}

	if err := os.Rename(stagedPath(a.ImagePath), a.ImagePath); err != nil {
		w.restore(backup, a.ImagePath)
		return fmt.Errorf("%w: image %s: %v", radar.ErrWrite, a.ImagePath, err)
	}
	if err := os.Rename(stagedPath(a.BoundsPath), a.BoundsPath); err != nil {
		w.restore(backup, a.ImagePath)
		return fmt.Errorf("%w: bounds %s: %v", radar.ErrWrite, a.BoundsPath, err)
	}

	if backup != "" {
		os.Remove(backup)
	}
	return nil
}

// backup moves an existing file at path aside and returns where it went,
// or "" when there was nothing to move.
func (w *FileWriter) backup(path string) (string, error) {
	tmp, err := os.CreateTemp(w.dir, tempPattern)
	if err != nil {
		return "", err
	}
	name := tmp.Name()
	tmp.Close()

	if err := os.Rename(path, name); err != nil {
		os.Remove(name)
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	return name, nil
}

// restore puts a backed-up file back at path, or removes path when there was
// no previous file.
func (w *FileWriter) restore(backup, path string) {
	var err error
	if backup == "" {
		err = os.Remove(path)
		if errors.Is(err, os.ErrNotExist) {
			err = nil
		}
	} else {
		err = os.Rename(backup, path)
	}
	if err != nil {
		w.logger.Error("could not restore previous artifact", "path", path, "error", err)
	}
}

func stagedPath(path string) string {
	return filepath.Join(filepath.Dir(path), stagedPrefix+filepath.Base(path))
}

// encodeBounds renders the bounds document in the byte format map clients
// already parse: ", " and ": " separators, no trailing newline, and floats
// that always carry a fractional part.
func encodeBounds(b radar.BoundingBox) []byte {
	var buf bytes.Buffer
	buf.WriteString(`{"min_lat": `)
	buf.WriteString(jsonFloat(b.MinLat))
	buf.WriteString(`, "max_lat": `)
	buf.WriteString(jsonFloat(b.MaxLat))
	buf.WriteString(`, "min_lon": `)
	buf.WriteString(jsonFloat(b.MinLon))
	buf.WriteString(`, "max_lon": `)
	buf.WriteString(jsonFloat(b.MaxLon))
	buf.WriteString(`}`)
	return buf.Bytes()
}

// jsonFloat formats v as the shortest round-trip decimal, fixed-point when the
// decimal exponent is in [-4, 16) and always with a fractional part.
func jsonFloat(v float64) string {
	if v == 0 {
		return "0.0"
	}
	sci := strconv.FormatFloat(v, 'e', -1, 64)
	mant, exp, _ := strings.Cut(sci, "e")
	e, _ := strconv.Atoi(exp)

	if e >= -4 && e < 16 {
		s := strconv.FormatFloat(v, 'f', -1, 64)
		if !strings.Contains(s, ".") {
			s += ".0"
		}
		return s
	}

	sign := "+"
	if e < 0 {
		sign, e = "-", -e
	}
	return fmt.Sprintf("%se%s%02d", mant, sign, e)
}

// writeAtomic streams encode into a temp file next to dest and renames it
// onto dest. It returns the number of bytes written.
func (w *FileWriter) writeAtomic(dest string, encode func(io.Writer) error) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(dest), tempPattern)
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := encode(tmp); err != nil {
		tmp.Close()
		return 0, fmt.Errorf("encode: %w", err)
	}
	info, statErr := tmp.Stat()
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("finalize temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return 0, fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		return 0, fmt.Errorf("rename into place: %w", err)
	}

	if statErr != nil {
		return 0, nil
	}
	return info.Size(), nil
}

// Prune removes artifact files, staged pairs and leftover temp files that do
// not belong to keep. It returns the number of files removed.
func (w *FileWriter) Prune(keep []radar.RenderedArtifact) (int, error) {
	wanted := make(map[string]bool, 2*len(keep))
	for _, a := range keep {
		wanted[filepath.Base(a.ImagePath)] = true
		wanted[filepath.Base(a.BoundsPath)] = true
	}

	entries, err := os.ReadDir(w.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("read output dir %s: %w", w.dir, err)
	}

	removed := 0
	var errs []error
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || wanted[name] {
			continue
		}
		if !strings.Contains(name, artifactMarker) && !strings.HasSuffix(name, ".tmp") {
			continue
		}
		if err := os.Remove(filepath.Join(w.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		removed++
	}

	if removed > 0 {
		w.logger.Info("pruned superseded artifacts", "dir", w.dir, "removed", removed)
	}
	return removed, errors.Join(errs...)
}
