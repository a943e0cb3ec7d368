package main

import (
	"fmt"
	"io"

	"github.com/TrueCyan/unityflow/pkg/document"
	"github.com/TrueCyan/unityflow/pkg/override"
	"github.com/TrueCyan/unityflow/pkg/resolve"
	"github.com/spf13/cobra"
)

func newEffectiveCmd() *cobra.Command {
	var (
		project string
		fileID  int64
		path    string
	)

	cmd := &cobra.Command{
		Use:   "effective <asset>",
		Short: "Resolve prefab override values against their source prefabs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := document.Load(args[0])
			if err != nil {
				return err
			}
			resolver, err := resolve.NewDirResolver(project, false)
			if err != nil {
				return err
			}

			instances := override.Instances(doc)
			if fileID != 0 {
				var picked []*override.Instance
				for _, inst := range instances {
					if inst.Handle == document.Handle(fileID) {
						picked = append(picked, inst)
					}
				}
				if len(picked) == 0 {
					return fmt.Errorf("effective: no PrefabInstance with fileID %d", fileID)
				}
				instances = picked
			}
			if len(instances) == 0 {
				return fmt.Errorf("effective: %s has no PrefabInstance objects", args[0])
			}

			out := cmd.OutOrStdout()
			for _, inst := range instances {
				base, err := resolver.ResolveDocument(inst.SourceGUID)
				if err != nil {
					return fmt.Errorf("effective: source prefab %s: %w", inst.SourceGUID, err)
				}
				fmt.Fprintf(out, "PrefabInstance &%d (source %s)\n", int64(inst.Handle), inst.SourceGUID)

				if path != "" {
					printEffective(out, inst, base, path)
					continue
				}
				seen := make(map[string]bool)
				for _, m := range inst.Modifications {
					key := fmt.Sprintf("%d.%s", m.Target.Handle, m.PropertyPath)
					if seen[key] {
						continue
					}
					seen[key] = true
					res := inst.EffectiveValue(base, m.Target.Handle, m.PropertyPath)
					printResult(out, m.Target.Handle, m.PropertyPath, res)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&project, "project", ".", "Unity project root holding the source prefabs")
	cmd.Flags().Int64Var(&fileID, "fileid", 0, "only this PrefabInstance")
	cmd.Flags().StringVar(&path, "path", "", "resolve a single property path on every modified target")

	return cmd
}

func printEffective(out io.Writer, inst *override.Instance, base *document.Document, path string) {
	targets := make(map[document.Handle]bool)
	for _, m := range inst.Modifications {
		if !targets[m.Target.Handle] {
			targets[m.Target.Handle] = true
			res := inst.EffectiveValue(base, m.Target.Handle, path)
			printResult(out, m.Target.Handle, path, res)
		}
	}
}

func printResult(out io.Writer, target document.Handle, path string, res override.Result) {
	switch {
	case !res.Resolved:
		fmt.Fprintf(out, "  %d.%s: unresolved\n", int64(target), path)
	case res.Overridden:
		fmt.Fprintf(out, "  %d.%s = %s (override)\n", int64(target), path, res.Value)
	default:
		fmt.Fprintf(out, "  %d.%s = %s (base)\n", int64(target), path, res.Value)
	}
}
