// Package report persists the confirmed duplicate groups.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"dupdup/internal/scanerr"
)

// Report maps a full-content digest (lowercase hex) to the paths sharing it.
// Only groups of two or more paths belong in a Report.
type Report map[string][]string

// Digests returns the report keys in sorted order.
func (r Report) Digests() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Files counts every path across all groups.
func (r Report) Files() int {
	n := 0
	for _, paths := range r {
		n += len(paths)
	}
	return n
}

type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported report format: %s (supported: json, yaml)", s)
	}
}

// FormatFor guesses the format from a file name, ignoring any compression
// suffix.
func FormatFor(path string) Format {
	switch filepath.Ext(stripCompression(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// CheckDestination fails when path already exists. It runs before any
// scanning so that an existing report is never clobbered.
func CheckDestination(fsys afero.Fs, path string) error {
	if _, err := fsys.Stat(path); err == nil {
		return scanerr.OutputExists(path)
	}
	return nil
}

// Encode writes r to w in the given format.
func Encode(w io.Writer, r Report, format Format) error {
	if r == nil {
		r = Report{}
	}
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		if err := enc.Encode(map[string][]string(r)); err != nil {
			return err
		}
		return enc.Close()
	case FormatJSON, "":
		return json.NewEncoder(w).Encode(r)
	default:
		return fmt.Errorf("unsupported report format: %s", format)
	}
}

// Decode reads a report in the given format from rd.
func Decode(rd io.Reader, format Format) (Report, error) {
	r := Report{}
	switch format {
	case FormatYAML:
		if err := yaml.NewDecoder(rd).Decode(&r); err != nil && err != io.EOF {
			return nil, err
		}
	case FormatJSON, "":
		if err := json.NewDecoder(rd).Decode(&r); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported report format: %s", format)
	}
	return r, nil
}

// Write encodes r and moves it into place at path in one step. A path ending
// in .gz or .zst is compressed accordingly. Write refuses to replace a file
// that already exists at path.
func Write(fsys afero.Fs, path string, r Report, format Format) error {
	var buf bytes.Buffer
	if err := encodeCompressed(&buf, path, r, format); err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	return Place(fsys, path, buf.Bytes())
}

// Place writes data to a temporary file next to path, then renames it to
// path.
func Place(fsys afero.Fs, path string, data []byte) error {
	dir := filepath.Dir(path)
	tmpFile, err := afero.TempFile(fsys, dir, ".dupdup-*.tmp")
	if err != nil {
		return err
	}
	defer fsys.Remove(tmpFile.Name())

	if _, err := tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		return err
	}
	if err := tmpFile.Sync(); err != nil {
		_ = tmpFile.Close()
		return err
	}
	if err := tmpFile.Close(); err != nil {
		return err
	}
	if err := fsys.Chmod(tmpFile.Name(), 0o644); err != nil {
		return err
	}

	if err := CheckDestination(fsys, path); err != nil {
		return err
	}
	return fsys.Rename(tmpFile.Name(), path)
}

// Load reads a report written by Write. Compression is picked from the file
// name; the format is guessed from it and the other format is tried when the
// guess does not parse.
func Load(fsys afero.Fs, path string) (Report, error) {
	file, err := fsys.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var rd io.Reader = file
	switch compressionExt(path) {
	case ".gz":
		zr, err := gzip.NewReader(file)
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		rd = zr
	case ".zst":
		zr, err := zstd.NewReader(file)
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		rd = zr
	}

	data, err := io.ReadAll(rd)
	if err != nil {
		return nil, fmt.Errorf("reading report %s: %w", path, err)
	}

	// The name only hints at the format; scan --format may disagree with it.
	format := FormatFor(path)
	r, err := Decode(bytes.NewReader(data), format)
	if err == nil {
		return r, nil
	}
	if alt, altErr := Decode(bytes.NewReader(data), otherFormat(format)); altErr == nil {
		return alt, nil
	}
	return nil, fmt.Errorf("decoding report %s: %w", path, err)
}

func otherFormat(f Format) Format {
	if f == FormatYAML {
		return FormatJSON
	}
	return FormatYAML
}

func encodeCompressed(w io.Writer, path string, r Report, format Format) error {
	switch compressionExt(path) {
	case ".gz":
		zw := gzip.NewWriter(w)
		if err := Encode(zw, r, format); err != nil {
			_ = zw.Close()
			return err
		}
		return zw.Close()
	case ".zst":
		zw, err := zstd.NewWriter(w)
		if err != nil {
			return err
		}
		if err := Encode(zw, r, format); err != nil {
			_ = zw.Close()
			return err
		}
		return zw.Close()
	default:
		return Encode(w, r, format)
	}
}

func compressionExt(path string) string {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".gz", ".zst":
		return ext
	default:
		return ""
	}
}

func stripCompression(path string) string {
	if ext := compressionExt(path); ext != "" {
		return path[:len(path)-len(ext)]
	}
	return path
}
