package main

import (
	"fmt"

	"github.com/TrueCyan/unityflow/pkg/document"
	"github.com/TrueCyan/unityflow/pkg/merge3"
	"github.com/spf13/cobra"
)

func newMergeCmd() *cobra.Command {
	var (
		output     string
		takeOurs   bool
		takeTheirs bool
	)

	cmd := &cobra.Command{
		Use:   "merge <base> <ours> <theirs>",
		Short: "Three-way merge assets against a common base",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if takeOurs && takeTheirs {
				return fmt.Errorf("merge: --ours and --theirs are mutually exclusive")
			}
			cfg, err := projectConfig()
			if err != nil {
				return err
			}
			opts := merge3.DefaultOptions()
			if cfg.Diff.Epsilon > 0 {
				opts.Epsilon = cfg.Diff.Epsilon
			}
			switch {
			case takeOurs:
				opts.Policy = merge3.PolicyOurs
			case takeTheirs:
				opts.Policy = merge3.PolicyTheirs
			case cfg.Merge.Policy == "ours":
				opts.Policy = merge3.PolicyOurs
			case cfg.Merge.Policy == "theirs":
				opts.Policy = merge3.PolicyTheirs
			}

			base, err := document.Load(args[0])
			if err != nil {
				return err
			}
			ours, err := document.Load(args[1])
			if err != nil {
				return err
			}
			theirs, err := document.Load(args[2])
			if err != nil {
				return err
			}

			res, err := merge3.Merge(base, ours, theirs, opts)
			if err != nil {
				return err
			}

			dest := output
			if dest == "" {
				dest = args[1]
			}
			if err := document.Save(res.Merged, dest); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, c := range res.Conflicts {
				fmt.Fprintf(out, "  %s\n", c)
			}
			for _, c := range res.Structural {
				fmt.Fprintf(out, "  %s\n", c)
			}
			if !res.Clean() {
				return fmt.Errorf("merge: %d conflicts left in %s", len(res.Conflicts)+len(res.Structural), dest)
			}
			fmt.Fprintf(out, "merged cleanly into %s\n", dest)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write merged result here (default: overwrite ours)")
	cmd.Flags().BoolVar(&takeOurs, "ours", false, "resolve value conflicts by taking our side")
	cmd.Flags().BoolVar(&takeTheirs, "theirs", false, "resolve value conflicts by taking their side")

	return cmd
}
