package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/dgallion1/mietdoc/internal/catalog"
	"github.com/dgallion1/mietdoc/internal/render"
	"github.com/dgallion1/mietdoc/internal/resolve"
)

func newProcessCmd(flags *globalFlags) *cobra.Command {
	var (
		templatePath string
		contextPath  string
		markdown     bool
		today        bool
	)
	cmd := &cobra.Command{
		Use:   "process",
		Short: "Fill a template from a context file",
		Example: `  mietdoc process -t mahnung.md -c kontext.yaml
  mietdoc process -t vertrag.docx -c kontext.json -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := flags.format()
			if err != nil {
				return err
			}
			eng, err := flags.engine(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			tpl, err := loadTemplate(templatePath)
			if err != nil {
				return err
			}
			ctx, err := loadContext(contextPath)
			if err != nil {
				return err
			}
			if today && !ctx.Has(catalog.Datum) {
				ctx = ctx.With(catalog.Datum, resolve.Today(time.Now()))
			}

			res := eng.processor.Process(tpl.Content, ctx)
			err = printResult(cmd.OutOrStdout(), format, res, func(w io.Writer) error {
				out := render.PlainText(res.ProcessedContent)
				if markdown {
					out = render.Markdown(res.ProcessedContent)
				}
				_, err := io.WriteString(w, out)
				return err
			})
			if err != nil {
				return err
			}
			if format == FormatText && len(res.UnresolvedPlaceholders) > 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "unresolved: %v\n", res.UnresolvedPlaceholders)
			}
			if !res.Success {
				return fmt.Errorf("processing failed: %v", res.Errors)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&templatePath, "template", "t", "", "Template file")
	cmd.Flags().StringVarP(&contextPath, "context", "c", "", "Context file (YAML or JSON)")
	cmd.Flags().BoolVar(&markdown, "markdown", false, "Render text output as Markdown")
	cmd.Flags().BoolVar(&today, "today", true, "Use today's date when the context has no datum")
	_ = cmd.MarkFlagRequired("template")
	return cmd
}
