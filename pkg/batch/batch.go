// Package batch runs a per-file operation over many asset files with a
// bounded worker pool. A failing file records its error and the rest of the
// batch keeps going.
package batch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
)

// Result is the outcome for a single file.
type Result struct {
	Path string
	Err  error
}

// Op processes one file. The context carries the per-file deadline.
type Op func(ctx context.Context, path string) error

// Runner drives a batch.
type Runner struct {
	// Workers bounds concurrency. Zero means GOMAXPROCS.
	Workers int
	// Timeout bounds each file. Zero means no per-file deadline.
	Timeout time.Duration
}

// Run applies op to every path. Results come back in input order, one per
// path. Only ctx cancellation stops the batch early; per-file errors,
// including timeouts, land in the matching Result.
func (r Runner) Run(ctx context.Context, paths []string, op Op) []Result {
	results := make([]Result, len(paths))

	workers := r.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, path := range paths {
		i, path := i, path
		results[i].Path = path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			fileCtx := ctx
			if r.Timeout > 0 {
				var cancel context.CancelFunc
				fileCtx, cancel = context.WithTimeout(ctx, r.Timeout)
				defer cancel()
			}
			results[i].Err = op(fileCtx, path)
			return nil
		})
	}
	g.Wait()
	return results
}

// Failed filters a result set down to the files that errored.
func Failed(results []Result) []Result {
	var out []Result
	for _, res := range results {
		if res.Err != nil {
			out = append(out, res)
		}
	}
	return out
}

var assetExtensions = map[string]bool{
	".unity":  true,
	".prefab": true,
	".asset":  true,
}

// Collect walks root and returns every serialized asset file, sorted. A
// single file path is returned as-is.
func Collect(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{root}, nil
	}
	var paths []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if assetExtensions[filepath.Ext(path)] {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}
