package processor

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/afero"

	"dupdup/internal/bucket"
	"dupdup/internal/hasher"
	"dupdup/internal/progress"
)

// MergePlan lists the shell commands that bring the content of a source tree
// into a destination tree.
type MergePlan struct {
	Commands  []string
	Missing   int // distinct source contents absent from the destination
	Conflicts int // targets renamed because a different file sits there
	Summary   Summary
}

// Script renders the plan as a shell script body.
func (p MergePlan) Script() []byte {
	var sb strings.Builder
	for _, cmd := range p.Commands {
		sb.WriteString(cmd)
		sb.WriteByte('\n')
	}
	return []byte(sb.String())
}

// PlanMerge finds the contents present under source but nowhere under dest,
// comparing by full digest and ignoring names. For each missing content the
// first source path carrying it is moved to the same relative location under
// dest. Nothing is moved here; the plan is only computed.
func PlanMerge(ctx context.Context, fsys afero.Fs, source, dest string, opts Options, reporter *progress.Reporter, errs ErrorSink) (MergePlan, error) {
	e := newEngine(fsys, opts, reporter, errs)

	sourceFiles, err := e.digestTree(ctx, source, "Source")
	if err != nil {
		return MergePlan{}, err
	}
	destFiles, err := e.digestTree(ctx, dest, "Dest")
	if err != nil {
		return MergePlan{}, err
	}

	plan := MergePlan{}
	for digest, paths := range sourceFiles.All() {
		if len(destFiles.Members(digest)) > 0 {
			continue
		}
		plan.Missing++

		target, err := rebase(paths[0], source, dest)
		if err != nil {
			e.logger.Warn("cannot place file", "path", paths[0], "err", err)
			continue
		}
		if exists, _ := afero.Exists(fsys, target); exists {
			conflict := filepath.Join(filepath.Dir(target), "conflict-"+filepath.Base(target))
			e.logger.Warn("file conflict", "target", target, "renamed", conflict)
			target = conflict
			plan.Conflicts++
		}

		plan.Commands = append(plan.Commands,
			"mkdir -p "+shellQuote(filepath.Dir(target)),
			"mv "+shellQuote(paths[0])+" "+shellQuote(target),
		)
	}

	slices.Sort(plan.Commands)
	plan.Commands = slices.Compact(plan.Commands)
	plan.Summary = e.summary
	return plan, nil
}

// digestTree fully hashes every regular file under root.
func (e *engine) digestTree(ctx context.Context, root, label string) (*bucket.Bucketer[hasher.Digest, string], error) {
	total, err := countFiles(ctx, e.fsys, root, e.exclude)
	if err != nil {
		return nil, err
	}
	e.summary.Files += total

	buckets := bucket.New[hasher.Digest, string]()
	state := &phaseState{phase: progress.PhaseMerge, total: total}

	produce := func(send func(Job) error) error {
		return walkFiles(ctx, e.fsys, root, e.exclude, send)
	}
	collect := func(res Result) {
		if !e.accept(res, state) {
			return
		}
		if buckets.Insert(res.Digest, res.Path) {
			state.wasted += res.BytesRead
		}
	}

	if err := e.pipeline(ctx, hasher.Full(), e.opts.FullBuffer, produce, collect); err != nil {
		return nil, err
	}

	e.reporter.Finish(fmt.Sprintf("%s: analysed %d files, %d duplicated within (%s).",
		label, total, buckets.Duplicates(), progress.Bytes(state.wasted)))
	return buckets, nil
}

func rebase(path, from, to string) (string, error) {
	rel, err := filepath.Rel(from, path)
	if err != nil {
		return "", err
	}
	if rel == "." {
		rel = filepath.Base(path)
	}
	return filepath.Join(to, rel), nil
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
