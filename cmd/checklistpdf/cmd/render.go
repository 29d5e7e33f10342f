package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wudi/pdfoverlay/observability"
	"github.com/wudi/pdfoverlay/overlay"
	"github.com/wudi/pdfoverlay/server"
	"github.com/wudi/pdfoverlay/submission"
)

type renderOptions struct {
	template string
	values   string
	out      string
	policy   string
	dryRun   bool
}

func newRenderCmd(g *globals) *cobra.Command {
	opts := &renderOptions{}
	c := &cobra.Command{
		Use:   "render",
		Short: "Draw a submission onto the template",
		Long: `Read a flat JSON or YAML object of form values and write the completed
checklist. Values files ending in .yaml or .yml are read as YAML; "-" reads
JSON from stdin. An --out of "-" writes the PDF to stdout.

Examples:
  checklistpdf render --values visit.json
  checklistpdf render --template forms/tlk.pdf --values visit.yaml --out visit.pdf
  checklistpdf render --values visit.json --policy fail`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRender(cmd, g, opts)
		},
	}
	c.Flags().StringVarP(&opts.template, "template", "t", "", "template PDF (overrides template_path)")
	c.Flags().StringVarP(&opts.values, "values", "f", "", "values file (.json, .yaml) or - for stdin")
	c.Flags().StringVarP(&opts.out, "out", "o", server.OutputName, "output PDF or - for stdout")
	c.Flags().StringVar(&opts.policy, "policy", "", "signature failure policy: skip or fail (overrides signature_policy)")
	c.Flags().BoolVar(&opts.dryRun, "dry-run", false, "list the drawing calls instead of writing a PDF")
	_ = c.MarkFlagRequired("values")
	return c
}

func readValues(cmd *cobra.Command, path string) (submission.Values, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read values: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return submission.ParseYAML(data)
	}
	return submission.ParseJSON(data)
}

func runRender(cmd *cobra.Command, g *globals, opts *renderOptions) error {
	cfg := g.cfg
	if opts.template != "" {
		cfg.TemplatePath = opts.template
	}
	if opts.policy != "" {
		cfg.SignaturePolicy = opts.policy
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	values, err := readValues(cmd, opts.values)
	if err != nil {
		return err
	}
	renderer, err := cfg.Renderer(g.log)
	if err != nil {
		return err
	}

	if opts.dryRun {
		rec := &overlay.Recorder{}
		if err := renderer.Draw(cmd.Context(), rec, values); err != nil {
			return err
		}
		for _, call := range rec.Calls {
			fmt.Fprintln(cmd.OutOrStdout(), call)
		}
		return nil
	}

	template, err := cfg.Template()
	if err != nil {
		return err
	}
	out, err := renderer.Render(cmd.Context(), template, values)
	if err != nil {
		return err
	}
	if opts.out == "-" {
		_, err = cmd.OutOrStdout().Write(out)
		return err
	}
	if err := os.WriteFile(opts.out, out, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	g.log.Info("document written",
		observability.String("path", opts.out),
		observability.Int("bytes", len(out)))
	return nil
}
