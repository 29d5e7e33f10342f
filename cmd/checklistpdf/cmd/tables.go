package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/wudi/pdfoverlay/coords"
	"github.com/wudi/pdfoverlay/schema"
)

func newSchemaCmd(g *globals) *cobra.Command {
	var asJSON bool
	c := &cobra.Command{
		Use:   "schema",
		Short: "List the form sections and the value keys they accept",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := g.cfg.Schema()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(s)
			}
			fmt.Fprintln(out, s.Title())
			for _, sec := range s.Sections() {
				fmt.Fprintf(out, "\n%s\n", sec.Title)
				tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				for _, f := range sec.Fields {
					fmt.Fprintf(tw, "  %s\t%s\t%s\n", f.Name, f.Kind, f.Label)
				}
				for _, it := range sec.Items {
					fmt.Fprintf(tw, "  %s\tapto|no_apto|saltar\t%s\n", schema.ConditionKey(it.ID), it.Label)
					fmt.Fprintf(tw, "  %s\ttext\t%s\n", schema.ObservationKey(it.ID), it.Label)
				}
				for _, sig := range sec.Signatures {
					fmt.Fprintf(tw, "  %s\timage/png data URL\t%s\n", sig.ID, sig.Label)
				}
				if err := tw.Flush(); err != nil {
					return err
				}
			}
			return nil
		},
	}
	c.Flags().BoolVar(&asJSON, "json", false, "print the schema as JSON")
	return c
}

func newLayoutCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "layout",
		Short: "Print the coordinate table used to place values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			layout, err := g.cfg.Layout()
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tKIND\tX\tY\tW\tH")
			for _, e := range layout.Entries() {
				switch e.Kind {
				case coords.KindRow:
					fmt.Fprintf(tw, "%s\t%s\t-\t%g\t-\t-\n", e.ID, e.Kind, e.Rect.Y)
				case coords.KindRect:
					fmt.Fprintf(tw, "%s\t%s\t%g\t%g\t%g\t%g\n", e.ID, e.Kind, e.Rect.X, e.Rect.Y, e.Rect.W, e.Rect.H)
				default:
					fmt.Fprintf(tw, "%s\t%s\t%g\t%g\t-\t-\n", e.ID, e.Kind, e.Rect.X, e.Rect.Y)
				}
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			cols, m := layout.Columns(), layout.Markers()
			fmt.Fprintf(cmd.OutOrStdout(), "\ncolumns: pass %g, fail %g, observation %g (width %g)\n", cols.PassX, cols.FailX, cols.ObsX, cols.ObsWidth)
			fmt.Fprintf(cmd.OutOrStdout(), "markers: pass %gx%g, fail %gx%g, stroke %g, opacity %g\n", m.Pass.RX, m.Pass.RY, m.Fail.RX, m.Fail.RY, m.BorderWidth, m.Opacity)
			return nil
		},
	}
}
