package main

import (
	"fmt"
	"os"

	"github.com/TrueCyan/unityflow/pkg/resolve"
	"github.com/spf13/cobra"
)

func newMetaCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "meta <asset>...",
		Short: "Generate .meta files with fresh GUIDs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, asset := range args {
				if _, err := os.Stat(asset); err != nil {
					return fmt.Errorf("meta: %w", err)
				}
				metaPath := asset + ".meta"
				if !force {
					if guid, err := resolve.ReadMetaGUID(metaPath); err == nil {
						fmt.Fprintf(out, "%s: exists (guid %s)\n", metaPath, guid)
						continue
					}
				}
				guid := resolve.NewGUID()
				if _, err := resolve.WriteMeta(asset, guid); err != nil {
					return err
				}
				fmt.Fprintf(out, "%s: guid %s\n", metaPath, guid)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "regenerate even when a .meta already exists")

	return cmd
}
