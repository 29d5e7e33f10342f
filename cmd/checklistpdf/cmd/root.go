package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/wudi/pdfoverlay/config"
	"github.com/wudi/pdfoverlay/observability"
)

// globals holds the persistent flags and what PersistentPreRunE derives
// from them.
type globals struct {
	configPath string
	verbose    bool

	cfg config.Config
	log observability.Logger
}

// NewRootCmd builds the command tree. Each call returns independent flag
// state.
func NewRootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:   "checklistpdf",
		Short: "Fill the TLK installation checklist PDF",
		Long: `Overlay inspection results, observations and signatures onto the
blank checklist template and write the completed PDF.

Examples:
  checklistpdf render --template checklist.pdf --values visit.json --out done.pdf
  checklistpdf render --values visit.yaml --dry-run
  checklistpdf schema
  checklistpdf layout
  checklistpdf serve --addr :8080`,
		Version:       "0.3.0",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(g.configPath)
			if err != nil {
				return err
			}
			g.cfg = cfg
			level := cfg.Level()
			if g.verbose {
				level = slog.LevelDebug
			}
			handler := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})
			g.log = observability.NewSlog(slog.New(handler))
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "YAML configuration file")
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "verbose output")

	root.AddCommand(
		newRenderCmd(g),
		newSchemaCmd(g),
		newLayoutCmd(g),
		newInspectCmd(g),
		newServeCmd(g),
	)
	return root
}

// Execute runs the root command
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
