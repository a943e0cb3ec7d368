package main

import (
	"encoding/json"
	"fmt"

	"github.com/TrueCyan/unityflow/pkg/document"
	"github.com/TrueCyan/unityflow/pkg/validate"
	"github.com/spf13/cobra"
)

type fileReport struct {
	Path     string             `json:"path"`
	Findings []validate.Finding `json:"findings"`
}

func newValidateCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:          "validate <path>...",
		Short:        "Check assets for structural problems",
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := collectAll(args)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			var reports []fileReport
			errors, warnings := 0, 0

			for _, path := range paths {
				doc, err := document.Load(path)
				if err != nil {
					reports = append(reports, fileReport{Path: path, Findings: []validate.Finding{{
						Severity: validate.Error,
						Message:  fmt.Sprintf("parse failed: %v", err),
					}}})
					errors++
					continue
				}
				report := validate.Validate(doc)
				errors += report.Count(validate.Error)
				warnings += report.Count(validate.Warning)
				reports = append(reports, fileReport{Path: path, Findings: report.Findings})
			}

			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(reports); err != nil {
					return err
				}
			} else {
				for _, r := range reports {
					for _, f := range r.Findings {
						fmt.Fprintf(out, "%s: %s\n", r.Path, f)
					}
				}
				fmt.Fprintf(out, "%d files checked: %d errors, %d warnings\n", len(paths), errors, warnings)
			}

			if errors > 0 {
				return fmt.Errorf("validate: %d errors", errors)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "emit the report as JSON")

	return cmd
}
