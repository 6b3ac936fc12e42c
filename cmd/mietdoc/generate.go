package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/spf13/cobra"

	"github.com/dgallion1/mietdoc/internal/bulk"
	"github.com/dgallion1/mietdoc/internal/catalog"
	"github.com/dgallion1/mietdoc/internal/doctree"
	"github.com/dgallion1/mietdoc/internal/render"
	"github.com/dgallion1/mietdoc/internal/resolve"
)

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func newGenerateCmd(flags *globalFlags) *cobra.Command {
	var (
		templatePath string
		contextPath  string
		category     string
		entitiesPath string
		outDir       string
		fileFormat   string
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate one document per entity",
		Example: `  mietdoc generate -t mieterhoehung.md -c haus.yaml --category mieter --entities mieter.csv
  mietdoc generate -t brief.docx --category mieter --entities mieter.yaml --out-dir out --format docx`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := flags.format()
			if err != nil {
				return err
			}
			cat := catalog.Category(category)
			if !cat.Valid() || cat == catalog.Datum {
				return fmt.Errorf("invalid bulk category %q", category)
			}
			if outDir != "" {
				switch fileFormat {
				case "txt", "md", "docx":
				default:
					return fmt.Errorf("unsupported file format %q (txt|md|docx)", fileFormat)
				}
			}

			eng, err := flags.engine(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			tpl, err := loadTemplate(templatePath)
			if err != nil {
				return err
			}
			base, err := loadContext(contextPath)
			if err != nil {
				return err
			}
			if !base.Has(catalog.Datum) {
				base = base.With(catalog.Datum, resolve.Today(time.Now()))
			}
			entities, err := loadEntities(entitiesPath)
			if err != nil {
				return err
			}

			res := eng.bulk.Generate(cmd.Context(), tpl.Content, base, cat, entities)

			if outDir != "" {
				if err := writeDocuments(outDir, fileFormat, res); err != nil {
					return err
				}
			}

			err = printResult(cmd.OutOrStdout(), format, res, func(w io.Writer) error {
				for _, r := range res.PerEntityResults {
					switch {
					case !r.Success:
						fmt.Fprintf(w, "FAIL %s: %s\n", r.EntityID, r.Reason)
					case len(r.Result.UnresolvedPlaceholders) > 0:
						fmt.Fprintf(w, "ok   %s (unresolved: %v)\n", r.EntityID, r.Result.UnresolvedPlaceholders)
					default:
						fmt.Fprintf(w, "ok   %s\n", r.EntityID)
					}
				}
				fmt.Fprintf(w, "%d succeeded, %d failed\n", res.SucceededCount, res.FailedCount)
				return nil
			})
			if err != nil {
				return err
			}
			if res.FailedCount > 0 && res.SucceededCount == 0 {
				return fmt.Errorf("all %d entities failed", res.FailedCount)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&templatePath, "template", "t", "", "Template file")
	cmd.Flags().StringVarP(&contextPath, "context", "c", "", "Shared context file (YAML or JSON)")
	cmd.Flags().StringVar(&category, "category", "mieter", "Context category each entity fills")
	cmd.Flags().StringVar(&entitiesPath, "entities", "", "Entities file (CSV, YAML or JSON)")
	cmd.Flags().StringVar(&outDir, "out-dir", "", "Write one file per successful entity into this directory")
	cmd.Flags().StringVar(&fileFormat, "format", "txt", "File format for --out-dir (txt|md|docx)")
	_ = cmd.MarkFlagRequired("template")
	_ = cmd.MarkFlagRequired("entities")
	return cmd
}

// writeDocuments writes each successful entity's document as
// <index>-<entity id>.<ext>.
func writeDocuments(dir, ext string, res bulk.Result) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	for _, r := range res.PerEntityResults {
		if !r.Success {
			continue
		}
		name := fmt.Sprintf("%03d-%s.%s", r.Index+1, unsafeName.ReplaceAllString(r.EntityID, "_"), ext)
		if err := writeDocument(filepath.Join(dir, name), ext, r.Result.ProcessedContent); err != nil {
			return err
		}
	}
	return nil
}

func writeDocument(path, ext string, doc doctree.Document) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	switch ext {
	case "md":
		_, err = io.WriteString(f, render.Markdown(doc))
	case "docx":
		err = render.DOCX(doc, f)
	default:
		_, err = io.WriteString(f, render.PlainText(doc))
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
