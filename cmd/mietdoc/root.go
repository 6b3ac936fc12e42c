package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dgallion1/mietdoc/internal/bulk"
	"github.com/dgallion1/mietdoc/internal/catalog"
	"github.com/dgallion1/mietdoc/internal/processor"
	"github.com/dgallion1/mietdoc/internal/resolve"
	"github.com/dgallion1/mietdoc/internal/validate"
)

// OutputFormat selects how command results are printed.
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
	FormatYAML OutputFormat = "yaml"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	Output      string
	Locale      string
	Currency    string
	Concurrency int
	Verbose     bool
}

func (f *globalFlags) format() (OutputFormat, error) {
	switch OutputFormat(f.Output) {
	case FormatText, FormatJSON, FormatYAML:
		return OutputFormat(f.Output), nil
	}
	return "", fmt.Errorf("unsupported output format %q (text|json|yaml)", f.Output)
}

// engine holds the components a command needs.
type engine struct {
	catalog   *catalog.Catalog
	processor *processor.Processor
	validator *validate.Validator
	bulk      *bulk.Coordinator
}

func (f *globalFlags) engine(stderr io.Writer) (*engine, error) {
	cat := catalog.Default()
	r, err := resolve.New(cat, resolve.Options{Locale: f.Locale, CurrencySymbol: f.Currency})
	if err != nil {
		return nil, err
	}
	level := slog.LevelWarn
	if f.Verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	proc := processor.New(cat, r)
	return &engine{
		catalog:   cat,
		processor: proc,
		validator: validate.New(cat),
		bulk:      bulk.NewCoordinator(proc, f.Concurrency, log),
	}, nil
}

// newRootCmd builds the command tree. Each call returns independent flag
// state.
func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	cmd := &cobra.Command{
		Use:   "mietdoc",
		Short: "mietdoc - template placeholder engine for property management",
		Long: `mietdoc fills @category.field placeholders in letters and contracts
from tenant, unit, building and landlord data.

Templates may be text, Markdown, HTML, DOCX, PDF or editor JSON files.
Context and entity files are YAML or JSON; entities may also be CSV.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := flags.format()
			return err
		},
	}

	cmd.PersistentFlags().StringVarP(&flags.Output, "output", "o", "text", "Output format (text|json|yaml)")
	cmd.PersistentFlags().StringVar(&flags.Locale, "locale", "de-DE", "Formatting locale (de, en, fr)")
	cmd.PersistentFlags().StringVar(&flags.Currency, "currency", "€", "Currency symbol")
	cmd.PersistentFlags().IntVar(&flags.Concurrency, "concurrency", 4, "Entities processed in parallel by generate")
	cmd.PersistentFlags().BoolVarP(&flags.Verbose, "verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(newProcessCmd(flags))
	cmd.AddCommand(newValidateCmd(flags))
	cmd.AddCommand(newPlaceholdersCmd(flags))
	cmd.AddCommand(newGenerateCmd(flags))
	return cmd
}

// Execute runs the CLI with signal handling.
func Execute(ctx context.Context, args []string) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cmd := newRootCmd()
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}
