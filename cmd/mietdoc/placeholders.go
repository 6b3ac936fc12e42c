package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dgallion1/mietdoc/internal/catalog"
)

func newPlaceholdersCmd(flags *globalFlags) *cobra.Command {
	var (
		limit        int
		prefix       bool
		templatePath string
	)
	cmd := &cobra.Command{
		Use:   "placeholders [query]",
		Short: "Search the placeholder catalog or list a template's placeholders",
		Example: `  mietdoc placeholders miete --limit 10
  mietdoc placeholders -t vertrag.docx`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := flags.format()
			if err != nil {
				return err
			}
			eng, err := flags.engine(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			var defs []catalog.Definition
			if templatePath != "" {
				tpl, err := loadTemplate(templatePath)
				if err != nil {
					return err
				}
				defs = eng.processor.UsedPlaceholders(tpl.Content)
			} else {
				query := ""
				if len(args) > 0 {
					query = args[0]
				}
				defs = eng.catalog.Filter(query, catalog.FilterOptions{PrefixFirst: prefix, Limit: limit})
			}

			return printResult(cmd.OutOrStdout(), format, defs, func(w io.Writer) error {
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tLABEL\tDESCRIPTION")
				for _, d := range defs {
					fmt.Fprintf(tw, "@%s\t%s\t%s\n", d.ID, d.Label, d.Description)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results (0 = all)")
	cmd.Flags().BoolVar(&prefix, "prefix", true, "List label prefix matches first")
	cmd.Flags().StringVarP(&templatePath, "template", "t", "", "List placeholders used by this template instead")
	return cmd
}
