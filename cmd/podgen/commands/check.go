package commands

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/alexhholmes/pod/internal/codegen"
	"github.com/alexhholmes/pod/internal/config"
	"github.com/alexhholmes/pod/internal/parser"
)

func newCheckCmd(cfgFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "check FILE...",
		Short: "Validate @pod types and print their layouts",
		Long: `Parse each file, validate every type annotated with // @pod and print
the computed layout of the accepted ones. Diagnostics for rejected types
go to stderr and make the command fail.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd, *cfgFile)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			rejected := 0
			for _, path := range args {
				plan, err := loadPlan(path, cfg, logger)
				if err != nil {
					return err
				}
				for _, a := range plan.Accepted {
					printLayout(cmd.OutOrStdout(), a)
				}
				rejected += report(cmd.ErrOrStderr(), plan)
			}

			if rejected > 0 {
				return fmt.Errorf("%d type(s) rejected", rejected)
			}
			return nil
		},
	}
}

// loadPlan validates the annotated types of path. The other files of its
// package are parsed too so fields may use types declared there.
func loadPlan(path string, cfg *config.Config, logger *zap.Logger) (*codegen.Plan, error) {
	files, err := parser.ParsePackageOf(path)
	if err != nil {
		return nil, err
	}
	plan := codegen.NewPackagePlan(files, planOptions(cfg))[0]

	logger.Debug("validated file",
		zap.String("file", path),
		zap.Int("package_files", len(files)),
		zap.Int("accepted", len(plan.Accepted)),
		zap.Int("rejected", len(plan.Rejected)),
		zap.Int("parse_errors", len(plan.Errors)))
	return plan, nil
}

// report writes every diagnostic of plan and returns how many types failed
func report(w io.Writer, plan *codegen.Plan) int {
	for _, e := range plan.Errors {
		fmt.Fprintf(w, "%s: %v\n", plan.Source, e)
	}
	for _, a := range plan.Rejected {
		for _, d := range a.Diagnostics {
			fmt.Fprintf(w, "%s: %v\n", plan.Source, d)
		}
	}
	return len(plan.Errors) + len(plan.Rejected)
}

// printLayout writes the layout of an accepted type as a table
func printLayout(w io.Writer, a *codegen.Accepted) {
	l := a.Layout
	fmt.Fprintf(w, "%s (repr=%s size=%d align=%d)\n", l.Name, a.Decl.Repr, l.Size, l.Align)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Field", "Type", "Offset", "Size", "Align"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)

	for _, f := range l.Fields {
		table.Append([]string{
			f.Name,
			f.Type,
			strconv.Itoa(f.Offset),
			strconv.Itoa(f.Size),
			strconv.Itoa(f.Align),
		})
	}
	table.Render()

	if len(l.Padding) > 0 {
		spans := make([]string, len(l.Padding))
		for i, s := range l.Padding {
			spans[i] = s.String()
		}
		fmt.Fprintf(w, "padding: %s (%d bytes)\n", strings.Join(spans, " "), l.PaddingBytes())
	}
	fmt.Fprintln(w)
}
