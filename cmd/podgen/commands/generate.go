package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/alexhholmes/pod/internal/codegen"
	"github.com/alexhholmes/pod/internal/config"
)

func newGenerateCmd(cfgFile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate FILE...",
		Short: "Generate marker implementations for @pod types",
		Long: `Parse each file, validate every type annotated with // @pod and write
the marker implementation of the accepted ones to <file>_pod.go.

Rejected types produce diagnostics and no code; the command then fails
after writing the accepted types.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd, *cfgFile)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			rejected := 0
			for _, path := range args {
				if strings.HasSuffix(path, cfg.Suffix) {
					logger.Debug("skipping generated file", zap.String("file", path))
					continue
				}

				plan, err := loadPlan(path, cfg, logger)
				if err != nil {
					return err
				}
				rejected += report(cmd.ErrOrStderr(), plan)
				if len(plan.Accepted) == 0 {
					logger.Warn("no accepted types", zap.String("file", path))
					continue
				}

				src, err := codegen.GenerateFile(plan)
				if err != nil {
					return err
				}
				out := outputPath(path, cfg)
				if err := os.WriteFile(out, src, 0o644); err != nil {
					return fmt.Errorf("failed to write %s: %w", out, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d types)\n", out, len(plan.Accepted))
			}

			if rejected > 0 {
				return fmt.Errorf("%d type(s) rejected", rejected)
			}
			return nil
		},
	}

	cmd.Flags().StringP("output", "o", "", "output directory (default: next to each input)")
	cmd.Flags().String("suffix", "_pod.go", "generated file suffix")
	return cmd
}

// outputPath returns where the generated code for input is written
func outputPath(input string, cfg *config.Config) string {
	dir := cfg.Output
	if dir == "" {
		dir = filepath.Dir(input)
	}
	name := strings.TrimSuffix(filepath.Base(input), ".go") + cfg.Suffix
	return filepath.Join(dir, name)
}
