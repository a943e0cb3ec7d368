package main

import (
	"fmt"
	"os"

	"github.com/TrueCyan/unityflow/pkg/normalize"
	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:           "unityflow",
		Short:         "Deterministic serialization and structural merge for Unity assets",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newVersionCmd())
	root.AddCommand(newNormalizeCmd())
	root.AddCommand(newValidateCmd())
	root.AddCommand(newDiffCmd())
	root.AddCommand(newMergeCmd())
	root.AddCommand(newEffectiveCmd())
	root.AddCommand(newMetaCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "unityflow 0.1.0-dev")
		},
	}
}

// projectConfig loads unityflow.toml discovered from the working directory.
// No file means defaults.
func projectConfig() (normalize.Config, error) {
	path := normalize.FindConfig(".")
	if path == "" {
		return normalize.Config{}, nil
	}
	return normalize.LoadConfig(path)
}
