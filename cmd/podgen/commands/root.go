// Package commands implements the podgen CLI.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/alexhholmes/pod"
	"github.com/alexhholmes/pod/internal/analyzer"
	"github.com/alexhholmes/pod/internal/codegen"
	"github.com/alexhholmes/pod/internal/config"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
)

// NewRootCmd builds the podgen command tree
func NewRootCmd() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:   "podgen",
		Short: "podgen - plain-old-data derivation for Go structs",
		Long: `podgen validates structs annotated with // @pod and generates their
marker implementation: PlainOldData, compile-time size and offset
assertions, zero constructors, byte accessors and registration.

Use "podgen [command] --help" for more information about a command.`,
		Version:       fmt.Sprintf("%s (%s)", Version, Commit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: ./"+config.DefaultFile+")")
	flags.Int("ptr-size", 8, "target pointer size in bytes (4 or 8)")
	flags.Bool("relaxed-pointers", false, "accept pointer fields as raw addresses (no provenance)")
	flags.String("log-level", "warn", "log level (debug, info, warn, error)")
	flags.String("log-format", "console", "log format (console, json)")

	root.AddCommand(newCheckCmd(&cfgFile))
	root.AddCommand(newGenerateCmd(&cfgFile))
	root.CompletionOptions.DisableDefaultCmd = true
	return root
}

// Execute runs the podgen command tree. This is called by main.main().
func Execute() error {
	return NewRootCmd().Execute()
}

// setup resolves configuration and installs the logger for a command run
func setup(cmd *cobra.Command, cfgFile string) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, nil, err
	}
	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return nil, nil, err
	}
	pod.SetLogger(logger)
	return cfg, logger, nil
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	zcfg := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.OutputPaths = []string{"stderr"}
	return zcfg.Build()
}

func planOptions(cfg *config.Config) codegen.Options {
	return codegen.Options{
		Arch:            analyzer.Arch{PtrSize: cfg.PtrSize},
		RelaxedPointers: cfg.RelaxedPointers,
	}
}
