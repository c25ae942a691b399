package processor

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"

	"dupdup/internal/progress"
	"dupdup/internal/report"
	"dupdup/internal/scanerr"
)

type errRecorder struct {
	errs []error
}

func (r *errRecorder) Record(err error) { r.errs = append(r.errs, err) }

type linesRecorder struct {
	statuses  []progress.Status
	summaries []string
}

func (r *linesRecorder) Status(s progress.Status) { r.statuses = append(r.statuses, s) }
func (r *linesRecorder) Summary(line string)      { r.summaries = append(r.summaries, line) }

// vanishingFs fails every Open of path after the first `after` succeed.
type vanishingFs struct {
	afero.Fs
	path  string
	after int

	mu    sync.Mutex
	opens int
}

func (v *vanishingFs) Open(name string) (afero.File, error) {
	if name == v.path {
		v.mu.Lock()
		v.opens++
		n := v.opens
		v.mu.Unlock()
		if n > v.after {
			return nil, &os.PathError{Op: "open", Path: name, Err: os.ErrNotExist}
		}
	}
	return v.Fs.Open(name)
}

func writeFile(t *testing.T, fsys afero.Fs, path string, data []byte) {
	t.Helper()
	if err := fsys.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", path, err)
	}
	if err := afero.WriteFile(fsys, path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func md5Hex(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

func pattern(n int, seed byte) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i*31) ^ seed
	}
	return data
}

func threeFiles(t *testing.T) (afero.Fs, []byte) {
	t.Helper()
	fsys := afero.NewMemMapFs()
	a := pattern(200, 7)
	c := bytes.Clone(a)
	c[len(c)-1] ^= 0xff
	writeFile(t, fsys, "/data/a", a)
	writeFile(t, fsys, "/data/b", a)
	writeFile(t, fsys, "/data/c", c)
	return fsys, a
}

func TestRunGroupsIdenticalFiles(t *testing.T) {
	fsys, a := threeFiles(t)
	rec := &linesRecorder{}
	errs := &errRecorder{}

	summary, rep, err := Run(context.Background(), fsys, "/data", DefaultOptions(), progress.New(0, rec), errs)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	want := report.Report{md5Hex(a): {"/data/a", "/data/b"}}
	if !reflect.DeepEqual(rep, want) {
		t.Fatalf("unexpected report: %v", rep)
	}
	if len(errs.errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs.errs)
	}
	if summary.Files != 3 || summary.Candidates != 2 || summary.Groups != 1 || summary.Duplicates != 2 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if summary.Wasted != 200 || summary.PartialWasted != 200 {
		t.Fatalf("unexpected wasted bytes: %+v", summary)
	}

	// three prefilter updates, two confirmations
	if len(rec.statuses) != 5 {
		t.Fatalf("expected 5 statuses, got %d", len(rec.statuses))
	}
	if rec.statuses[2].Phase != progress.PhasePrefilter || rec.statuses[2].Total != 3 {
		t.Fatalf("unexpected prefilter status: %+v", rec.statuses[2])
	}
	if last := rec.statuses[4]; last.Phase != progress.PhaseConfirm || last.Current != 2 || last.Total != 2 {
		t.Fatalf("unexpected confirm status: %+v", last)
	}
	if len(rec.summaries) != 2 ||
		!strings.HasPrefix(rec.summaries[0], "First pass finished") ||
		!strings.HasPrefix(rec.summaries[1], "Second pass finished") {
		t.Fatalf("unexpected summaries: %q", rec.summaries)
	}
}

func TestRunPrefilterCollisionIsNotDuplicate(t *testing.T) {
	fsys := afero.NewMemMapFs()
	one := pattern(1<<20, 3)
	two := bytes.Clone(one)
	two[5000] ^= 0x01
	writeFile(t, fsys, "/big/one", one)
	writeFile(t, fsys, "/big/two", two)

	summary, rep, err := Run(context.Background(), fsys, "/big", DefaultOptions(), nil, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(rep) != 0 {
		t.Fatalf("expected empty report, got %v", rep)
	}
	if summary.Candidates != 2 {
		t.Fatalf("both files should survive the prefilter, got %d", summary.Candidates)
	}
	if summary.PartialWasted != 1<<20 || summary.Wasted != 0 {
		t.Fatalf("unexpected wasted bytes: %+v", summary)
	}
}

func TestRunEmptyTree(t *testing.T) {
	fsys := afero.NewMemMapFs()
	if err := fsys.MkdirAll("/empty/nested", 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	summary, rep, err := Run(context.Background(), fsys, "/empty", DefaultOptions(), nil, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if rep == nil || len(rep) != 0 {
		t.Fatalf("expected empty non-nil report, got %#v", rep)
	}
	if summary.Files != 0 || summary.Errors != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestRunSingletonsNeverReported(t *testing.T) {
	fsys := afero.NewMemMapFs()
	for i := 0; i < 10; i++ {
		writeFile(t, fsys, fmt.Sprintf("/uniq/f%02d", i), pattern(300, byte(i)))
	}

	summary, rep, err := Run(context.Background(), fsys, "/uniq", DefaultOptions(), nil, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(rep) != 0 || summary.Candidates != 0 {
		t.Fatalf("expected no candidates, got %+v %v", summary, rep)
	}
}

func TestRunFileVanishesBeforeHashing(t *testing.T) {
	base, _ := threeFiles(t)
	fsys := &vanishingFs{Fs: base, path: "/data/b", after: 0}
	errs := &errRecorder{}

	summary, rep, err := Run(context.Background(), fsys, "/data", DefaultOptions(), nil, errs)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(errs.errs) != 1 || summary.Errors != 1 {
		t.Fatalf("expected exactly one error, got %v", errs.errs)
	}
	if !errors.Is(errs.errs[0], scanerr.ErrOpen) || scanerr.PathOf(errs.errs[0]) != "/data/b" {
		t.Fatalf("unexpected error: %v", errs.errs[0])
	}
	if len(rep) != 0 {
		t.Fatalf("expected empty report, got %v", rep)
	}
}

func TestRunFileVanishesBetweenPasses(t *testing.T) {
	base, _ := threeFiles(t)
	fsys := &vanishingFs{Fs: base, path: "/data/a", after: 1}
	errs := &errRecorder{}

	summary, rep, err := Run(context.Background(), fsys, "/data", DefaultOptions(), nil, errs)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(errs.errs) != 1 || !errors.Is(errs.errs[0], scanerr.ErrOpen) {
		t.Fatalf("expected one open error, got %v", errs.errs)
	}
	if summary.Candidates != 2 || len(rep) != 0 {
		t.Fatalf("unexpected result: %+v %v", summary, rep)
	}
}

func TestRunMissingRootIsReported(t *testing.T) {
	errs := &errRecorder{}
	_, rep, err := Run(context.Background(), afero.NewMemMapFs(), "/nope", DefaultOptions(), nil, errs)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(rep) != 0 {
		t.Fatalf("expected empty report, got %v", rep)
	}
	if len(errs.errs) != 1 || !errors.Is(errs.errs[0], scanerr.ErrEnumeration) {
		t.Fatalf("expected one enumeration error, got %v", errs.errs)
	}
}

func TestRunInvalidUTF8Path(t *testing.T) {
	fsys, _ := threeFiles(t)
	writeFile(t, fsys, "/data/bad\xff", []byte("x"))
	errs := &errRecorder{}

	summary, rep, err := Run(context.Background(), fsys, "/data", DefaultOptions(), nil, errs)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Files != 3 {
		t.Fatalf("invalid path should not be counted, got %d files", summary.Files)
	}
	if len(errs.errs) != 1 || scanerr.CodeOf(errs.errs[0]) != scanerr.CodeEncode {
		t.Fatalf("expected one encode error, got %v", errs.errs)
	}
	if len(rep) != 1 {
		t.Fatalf("unexpected report: %v", rep)
	}
}

func TestRunSkipsSymlinks(t *testing.T) {
	dir := t.TempDir()
	fsys := afero.NewOsFs()
	writeFile(t, fsys, filepath.Join(dir, "a"), []byte("same content"))
	writeFile(t, fsys, filepath.Join(dir, "b"), []byte("same content"))
	if err := os.Symlink(filepath.Join(dir, "a"), filepath.Join(dir, "link")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	summary, rep, err := Run(context.Background(), fsys, dir, DefaultOptions(), nil, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Files != 2 {
		t.Fatalf("expected 2 files, got %d", summary.Files)
	}
	for _, paths := range rep {
		if len(paths) != 2 {
			t.Fatalf("unexpected group: %v", paths)
		}
	}
}

func TestRunIsIdempotent(t *testing.T) {
	fsys, _ := threeFiles(t)
	_, first, err := Run(context.Background(), fsys, "/data", DefaultOptions(), nil, nil)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	_, second, err := Run(context.Background(), fsys, "/data", DefaultOptions(), nil, nil)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("runs differ: %v vs %v", first, second)
	}
}

func TestRunWorkersMatchSequential(t *testing.T) {
	fsys := afero.NewMemMapFs()
	for i := 0; i < 60; i++ {
		writeFile(t, fsys, fmt.Sprintf("/many/d%d/f%02d", i%4, i), pattern(5000+i%3, byte(i%7)))
	}

	seqOpts := DefaultOptions()
	seqSummary, seq, err := Run(context.Background(), fsys, "/many", seqOpts, nil, nil)
	if err != nil {
		t.Fatalf("sequential run: %v", err)
	}

	parOpts := DefaultOptions()
	parOpts.Workers = 4
	parSummary, par, err := Run(context.Background(), fsys, "/many", parOpts, nil, nil)
	if err != nil {
		t.Fatalf("parallel run: %v", err)
	}

	if !reflect.DeepEqual(seq, par) {
		t.Fatalf("parallel report differs from sequential")
	}
	if seqSummary != parSummary {
		t.Fatalf("summaries differ: %+v vs %+v", seqSummary, parSummary)
	}
	if len(seq) == 0 {
		t.Fatalf("expected duplicate groups")
	}
}

func TestRunCancelled(t *testing.T) {
	fsys, _ := threeFiles(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, rep, err := Run(ctx, fsys, "/data", DefaultOptions(), nil, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if rep != nil {
		t.Fatalf("cancelled run returned a report: %v", rep)
	}
}

func TestRunUnblocksStalledPrinterOnCancel(t *testing.T) {
	fsys := afero.NewMemMapFs()
	for i := 0; i < 100; i++ {
		writeFile(t, fsys, fmt.Sprintf("/stall/f%03d", i), pattern(64, byte(i%3)))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	// nobody reads events, as when the interactive view has already exited
	events := make(chan progress.Event)
	reporter := progress.New(0, progress.NewChannelPrinter(events, ctx.Done()))

	opts := DefaultOptions()
	opts.Workers = 4
	done := make(chan error, 1)
	go func() {
		_, rep, err := Run(ctx, fsys, "/stall", opts, reporter, nil)
		if rep != nil {
			err = fmt.Errorf("unexpected report %v", rep)
		}
		done <- err
	}()

	select {
	case err := <-done:
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("expected deadline error, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("run still blocked after the context was cancelled")
	}
}

func TestRunSkipsExcludedFiles(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFile(t, fsys, "/data/empty", nil)
	writeFile(t, fsys, "/data/error.log", nil)

	opts := DefaultOptions()
	_, rep, err := Run(context.Background(), fsys, "/data", opts, nil, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(rep) != 1 {
		t.Fatalf("two empty files should group without exclusions, got %v", rep)
	}

	opts.Exclude = []string{"/data/error.log", "/data/../data/results.json"}
	summary, rep, err := Run(context.Background(), fsys, "/data", opts, nil, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(rep) != 0 || summary.Files != 1 {
		t.Fatalf("excluded file was scanned: %+v %v", summary, rep)
	}
}

func TestExcludeSetMatchesRelativeAndAbsolute(t *testing.T) {
	set := newExcludeSet([]string{"error.log", ""})
	abs, err := filepath.Abs("error.log")
	if err != nil {
		t.Fatalf("abs: %v", err)
	}
	if !set.contains("error.log") || !set.contains("./error.log") || !set.contains(abs) {
		t.Fatalf("expected relative and absolute forms to match")
	}
	if set.contains("sub/error.log") || set.contains("other.log") {
		t.Fatalf("unexpected match")
	}
}
