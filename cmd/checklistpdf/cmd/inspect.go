package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wudi/pdfoverlay/contentstream"
	"github.com/wudi/pdfoverlay/observability"
	"github.com/wudi/pdfoverlay/parser"
	"github.com/wudi/pdfoverlay/recovery"
	"github.com/wudi/pdfoverlay/resources"
)

func newInspectCmd(g *globals) *cobra.Command {
	var repair bool
	c := &cobra.Command{
		Use:   "inspect <pdf-file>",
		Short: "Show how a template or rendered checklist is put together",
		Long: `Print the PDF version, cross-reference kind, first page size, resources
and content operator counts. Useful to check a new template revision before
calibrating its layout, or to confirm a rendered file carries the overlay.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			cfg := parser.Config{}
			if repair {
				cfg.Recovery = recovery.NewLenientStrategy()
			}
			doc, err := parser.NewDocumentParser(cfg).Parse(cmd.Context(), data)
			if err != nil {
				return fmt.Errorf("parse %s: %w", args[0], err)
			}
			content, err := doc.Contents()
			if err != nil {
				return err
			}
			ops, err := contentstream.Parse(content)
			if err != nil {
				return fmt.Errorf("page content: %w", err)
			}

			out := cmd.OutOrStdout()
			xrefKind := "table"
			if doc.Table.Stream {
				xrefKind = "stream"
			}
			if doc.Table.Repaired {
				xrefKind += " (repaired)"
			}
			mb := doc.Page.MediaBox
			fmt.Fprintf(out, "version:   %s\n", doc.Version)
			fmt.Fprintf(out, "xref:      %s, %d objects\n", xrefKind, len(doc.Table.Objects()))
			fmt.Fprintf(out, "page size: %g x %g pt\n", mb[2]-mb[0], mb[3]-mb[1])
			alloc := resources.NewAllocator(doc, doc.Page.Resources)
			for _, cat := range []resources.ResourceCategory{resources.CategoryFont, resources.CategoryXObject, resources.CategoryExtGState} {
				if names := alloc.Names(cat); len(names) > 0 {
					fmt.Fprintf(out, "%-10s %s\n", string(cat)+":", strings.Join(names, " "))
				}
			}
			counts := map[string]int{}
			for _, op := range ops {
				counts[op.Operator]++
			}
			fmt.Fprintf(out, "operators: %d (text %d, paths %d, images %d)\n",
				len(ops), counts["Tj"]+counts["TJ"], counts["S"]+counts["f"]+counts["B"], counts["Do"])
			g.log.Debug("inspected", observability.String("file", args[0]))
			return nil
		},
	}
	c.Flags().BoolVar(&repair, "repair", false, "rebuild a damaged cross-reference table instead of failing")
	return c
}
