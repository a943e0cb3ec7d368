package main

import (
	"encoding/json"
	"fmt"

	"github.com/TrueCyan/unityflow/pkg/document"
	"github.com/TrueCyan/unityflow/pkg/semdiff"
	"github.com/spf13/cobra"
)

func newDiffCmd() *cobra.Command {
	var (
		asJSON  bool
		epsilon float64
	)

	cmd := &cobra.Command{
		Use:   "diff <a> <b>",
		Short: "Compare two assets structurally",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := projectConfig()
			if err != nil {
				return err
			}
			opts := semdiff.DefaultOptions()
			if cfg.Diff.Epsilon > 0 {
				opts.Epsilon = cfg.Diff.Epsilon
			}
			if cmd.Flags().Changed("epsilon") {
				opts.Epsilon = epsilon
			}

			a, err := document.Load(args[0])
			if err != nil {
				return err
			}
			b, err := document.Load(args[1])
			if err != nil {
				return err
			}

			d := semdiff.Compare(a, b, opts)
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(d); err != nil {
					return err
				}
			} else if !d.Empty() {
				fmt.Fprint(out, d.Format())
			}

			if !d.Empty() {
				return fmt.Errorf("diff: %s and %s differ", args[0], args[1])
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "emit changes as JSON")
	cmd.Flags().Float64Var(&epsilon, "epsilon", semdiff.DefaultOptions().Epsilon, "float comparison tolerance")

	return cmd
}
