package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/aescanero/dago-node-relnotes/internal/eval/template"
	"github.com/aescanero/dago-node-relnotes/internal/render"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewRenderCmd creates the render command
func NewRenderCmd(loggerFn func() *zap.Logger) *cobra.Command {
	var (
		templatePath string
		dataPath     string
		helpersPath  string
		defsPath     string
		emptySetText string
		outputPath   string
		unsafe       bool
		noCustom     bool
	)

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render release notes from a template and a data file",
		Long: `Render release notes from a template and a data file.

Predicates and eval run as CEL unless --unsafe is given. Custom helpers from
--helpers and --helper-defs always run as Go code with the privileges of this
process, including file and process access; pass --no-custom-helpers to
render templates you do not trust.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := loggerFn()

			lines, err := readTemplateFile(templatePath)
			if err != nil {
				return err
			}
			data, err := readDataFile(dataPath)
			if err != nil {
				return err
			}
			customHelpers, err := readOptionalFile(helpersPath)
			if err != nil {
				return err
			}
			defs, err := readHelperDefinitions(defsPath)
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("empty-set-text") || data.EmptySetText == "" {
				data.EmptySetText = emptySetText
			}

			renderer := render.NewRenderer(
				render.WithLogger(logger),
				render.WithUnsafeExpressions(unsafe),
				render.WithCustomHelpers(!noCustom),
			)

			notes, err := renderer.Render(cmd.Context(), render.Request{
				Lines:                 lines,
				WorkItems:             data.WorkItems,
				Commits:               data.Commits,
				BuildDetails:          data.BuildDetails,
				ReleaseDetails:        data.ReleaseDetails,
				CompareReleaseDetails: data.CompareReleaseDetails,
				EmptySetText:          data.EmptySetText,
				CustomHelpers:         customHelpers,
				HelperDefinitions:     defs,
			})
			if err != nil {
				return err
			}

			if outputPath == "" || outputPath == "-" {
				_, err = fmt.Fprint(cmd.OutOrStdout(), notes)
				return err
			}
			if err := os.WriteFile(outputPath, []byte(notes), 0o644); err != nil {
				return fmt.Errorf("failed to write notes: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Release notes written to %s\n", outputPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&templatePath, "template", "t", "", "Template file (required)")
	cmd.Flags().StringVarP(&dataPath, "data", "d", "", "YAML or JSON file with work_items, commits, build_details, ...")
	cmd.Flags().StringVar(&helpersPath, "helpers", "", "Go source file with custom helper functions (runs unsandboxed)")
	cmd.Flags().StringVar(&defsPath, "helper-defs", "", "YAML or JSON file with helper definitions (Go bodies, run unsandboxed)")
	cmd.Flags().StringVar(&emptySetText, "empty-set-text", "", "Text for empty collections, overrides the data file")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file (default stdout)")
	cmd.Flags().BoolVar(&unsafe, "unsafe", false, "Run predicates and eval as Go code instead of CEL")
	cmd.Flags().BoolVar(&noCustom, "no-custom-helpers", false, "Reject custom helpers, which otherwise run as unsandboxed Go")
	cmd.MarkFlagRequired("template")

	return cmd
}

// NewCheckCmd creates the check command, which only compiles templates
func NewCheckCmd(loggerFn func() *zap.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "check FILE...",
		Short: "Check that templates compile",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine := template.NewEngine(loggerFn())

			var failed []string
			for _, path := range args {
				lines, err := readTemplateFile(path)
				if err == nil {
					err = engine.ValidateTemplate(strings.Join(lines, "\n"))
				}
				if err != nil {
					failed = append(failed, path)
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", path, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", path)
			}

			if len(failed) > 0 {
				return fmt.Errorf("%d of %d templates failed", len(failed), len(args))
			}
			return nil
		},
	}
}
