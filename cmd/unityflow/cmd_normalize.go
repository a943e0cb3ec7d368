package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/TrueCyan/unityflow/pkg/batch"
	"github.com/TrueCyan/unityflow/pkg/document"
	"github.com/TrueCyan/unityflow/pkg/normalize"
	"github.com/spf13/cobra"
)

func newNormalizeCmd() *cobra.Command {
	var (
		output  string
		check   bool
		workers int
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "normalize <path>...",
		Short: "Rewrite assets into canonical form",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := projectConfig()
			if err != nil {
				return err
			}
			opts := cfg.Options()

			paths, err := collectAll(args)
			if err != nil {
				return err
			}
			if output != "" && len(paths) != 1 {
				return fmt.Errorf("normalize: -o needs exactly one input file, got %d", len(paths))
			}

			out := cmd.OutOrStdout()
			var mu sync.Mutex
			changed := 0

			runner := batch.Runner{Workers: workers, Timeout: timeout}
			results := runner.Run(cmd.Context(), paths, func(ctx context.Context, path string) error {
				diff, warnings, err := normalizeFile(path, output, check, opts)
				if err != nil {
					return err
				}
				mu.Lock()
				defer mu.Unlock()
				for _, w := range warnings {
					fmt.Fprintf(out, "%s: warning: (fileID: %d) %s\n", path, w.Handle, w.Message)
				}
				if diff {
					changed++
					if check {
						fmt.Fprintf(out, "%s: not canonical\n", path)
					}
				}
				return nil
			})

			failed := batch.Failed(results)
			for _, res := range failed {
				fmt.Fprintf(out, "%s: error: %v\n", res.Path, res.Err)
			}
			if len(failed) > 0 {
				return fmt.Errorf("normalize: %d of %d files failed", len(failed), len(paths))
			}
			if check {
				if changed > 0 {
					return fmt.Errorf("normalize: %d of %d files not in canonical form", changed, len(paths))
				}
				fmt.Fprintf(out, "%d files canonical\n", len(paths))
				return nil
			}
			fmt.Fprintf(out, "normalized %d files (%d rewritten)\n", len(paths), changed)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write result to this path instead of in place (single input only)")
	cmd.Flags().BoolVar(&check, "check", false, "report files that are not canonical without rewriting")
	cmd.Flags().IntVar(&workers, "workers", runtime.GOMAXPROCS(0), "number of parallel workers")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "per-file timeout (0 disables)")

	return cmd
}

// normalizeFile canonicalizes one file. It reports whether the output
// differs from what is on disk.
func normalizeFile(path, output string, check bool, opts normalize.Options) (bool, []normalize.Warning, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return false, nil, err
	}
	doc, err := document.Parse(raw)
	if err != nil {
		return false, nil, err
	}
	warnings := normalize.Normalize(doc, opts)
	canonical := document.Emit(doc)

	diff := !bytes.Equal(raw, canonical)
	if check {
		return diff, warnings, nil
	}

	dest := path
	if output != "" {
		dest = output
	}
	if !diff && dest == path {
		return false, warnings, nil
	}
	if err := os.WriteFile(dest, canonical, 0o644); err != nil {
		return diff, warnings, err
	}
	return diff, warnings, nil
}

// collectAll expands files and directories into the asset file list.
func collectAll(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		found, err := batch.Collect(arg)
		if err != nil {
			return nil, err
		}
		paths = append(paths, found...)
	}
	return paths, nil
}
