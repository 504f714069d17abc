// Package cli implements the rfp command-line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"rfp/internal/config"
	"rfp/internal/logging"
)

// Version is the CLI version.
var Version = "0.1.0"

// runtime carries configuration and lazily built components for one invocation.
type runtime struct {
	cfgPath string
	verbose bool

	cfg       *config.AppConfig
	logger    *slog.Logger
	logCloser io.Closer
}

// NewRootCmd builds the command tree. The log file opened by a run stays open
// until the process exits; Execute closes it.
func NewRootCmd() *cobra.Command {
	root, _ := newRootCmd()
	return root
}

func newRootCmd() (*cobra.Command, *runtime) {
	rt := &runtime{}
	root := &cobra.Command{
		Use:   "rfp",
		Short: "Ingest RFP documents and search past responses",
		Long: `rfp extracts text from past RFPs, proposals and opportunity records,
splits it into overlapping chunks and stores embeddings in a vector index
for semantic retrieval.

Scanned PDFs fall back to OCR when the native text layer is too short.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return rt.setup(cmd)
		},
	}
	root.PersistentFlags().StringVarP(&rt.cfgPath, "config", "c", "", "path to YAML config (default ./config.yaml or ~/.config/rfp/config.yaml)")
	root.PersistentFlags().BoolVarP(&rt.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newIngestCmd(rt),
		newSearchCmd(rt),
		newStatsCmd(rt),
		newResetCmd(rt),
		newTUICmd(rt),
		newMCPCmd(rt),
	)
	return root, rt
}

// Execute runs the root command and closes the log file whether or not the
// command failed.
func Execute(ctx context.Context) error {
	root, rt := newRootCmd()
	return rt.run(ctx, root)
}

func (rt *runtime) run(ctx context.Context, root *cobra.Command) (err error) {
	defer func() {
		if cerr := rt.closeLog(); err == nil {
			err = cerr
		}
	}()
	return root.ExecuteContext(ctx)
}

// closeLog is safe to call more than once.
func (rt *runtime) closeLog() error {
	if rt.logCloser == nil {
		return nil
	}
	c := rt.logCloser
	rt.logCloser = nil
	return c.Close()
}

func (rt *runtime) setup(cmd *cobra.Command) error {
	_ = godotenv.Load()

	var err error
	if rt.cfgPath == "" {
		rt.cfg, _, err = config.LoadDefault()
	} else {
		rt.cfg, err = config.Load(rt.cfgPath)
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if rt.verbose {
		rt.cfg.Log.Level = "debug"
	}
	rt.logger, rt.logCloser, err = logging.New(rt.cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("failed to init logging: %w", err)
	}
	slog.SetDefault(rt.logger)
	return nil
}
