package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dgallion1/mietdoc/internal/validate"
)

var errInvalid = errors.New("template is invalid")

func newValidateCmd(flags *globalFlags) *cobra.Command {
	var (
		templatePath string
		title        string
		category     string
	)
	cmd := &cobra.Command{
		Use:     "validate",
		Short:   "Check a template before saving it",
		Example: `  mietdoc validate -t mahnung.md --category mahnung`,
		Args:    cobra.NoArgs,
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
			if title == "" {
				title = tpl.Title
			}

			res := eng.validator.Validate(validate.Input{Title: title, Category: category, Content: tpl.Content})
			err = printResult(cmd.OutOrStdout(), format, res, func(w io.Writer) error {
				status := "valid"
				if !res.IsValid {
					status = "invalid"
				}
				fmt.Fprintf(w, "%s: %s\n", templatePath, status)
				for _, e := range res.Errors {
					fmt.Fprintf(w, "  error:   %s\n", e)
				}
				for _, warn := range res.Warnings {
					fmt.Fprintf(w, "  warning: %s\n", warn)
				}
				if len(res.Placeholders) > 0 {
					fmt.Fprintf(w, "  placeholders: %v\n", res.Placeholders)
				}
				return nil
			})
			if err != nil {
				return err
			}
			if !res.IsValid {
				return errInvalid
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&templatePath, "template", "t", "", "Template file")
	cmd.Flags().StringVar(&title, "title", "", "Template title (default: file name)")
	cmd.Flags().StringVar(&category, "category", "", "Template category, e.g. mahnung")
	_ = cmd.MarkFlagRequired("template")
	return cmd
}
