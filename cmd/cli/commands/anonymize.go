package commands

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/inferloop/kano/internal/export"
	"github.com/inferloop/kano/internal/privacy"
	"github.com/inferloop/kano/internal/table"
)

type AnonymizeOptions struct {
	InputFile         string
	Columns           []string
	K                 int
	MaxSteps          int
	Growth            string
	EquivalenceBasis  string
	OutputFile        string
	GroupedOutputFile string
	Format            string
	Suppress          bool
	Strict            bool
}

func NewAnonymizeCmd(g *Globals) *cobra.Command {
	opts := &AnonymizeOptions{}

	cmd := &cobra.Command{
		Use:   "anonymize",
		Short: "Generalize numeric columns until the table is k-anonymous",
		Long: `Replace the values of the selected numeric columns with equal-width bin
labels, choosing for each column the finest bins that keep every combination
of labels shared by at least k rows.`,
		Example: `  # Generalize Age and Income for k=2
  kano-cli anonymize --input people.csv --columns Age,Income --k 2 --output generalized.csv

  # Also write the grouped counts, dropping groups smaller than k
  kano-cli anonymize -i people.csv -c Age,Income --grouped-output grouped.csv --suppress`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnonymize(cmd, g, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.InputFile, "input", "i", "", "Input CSV file, - for stdin (required)")
	cmd.Flags().StringSliceVarP(&opts.Columns, "columns", "c", nil, "Numeric columns to generalize (required)")
	cmd.Flags().IntVar(&opts.K, "k", 0, "Minimum group size (default from config)")
	cmd.Flags().IntVar(&opts.MaxSteps, "max-steps", 0, "Bin counts tried per column (default from config)")
	cmd.Flags().StringVar(&opts.Growth, "growth", "", "Bin count growth: doubling or squaring (default from config)")
	cmd.Flags().StringVar(&opts.EquivalenceBasis, "equivalence", "", "Row-equivalence loss basis: raw or generalized (default from config)")
	cmd.Flags().StringVarP(&opts.OutputFile, "output", "o", "-", "Output file for the generalized table (- for stdout)")
	cmd.Flags().StringVar(&opts.GroupedOutputFile, "grouped-output", "", "Output file for the grouped counts")
	cmd.Flags().StringVarP(&opts.Format, "format", "f", "", "Output format: csv or json (default from config)")
	cmd.Flags().BoolVar(&opts.Suppress, "suppress", false, "Drop groups smaller than k from the grouped output")
	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "Fail when no k-anonymous assignment exists")

	cmd.MarkFlagRequired("input")
	cmd.MarkFlagRequired("columns")

	return cmd
}

func runAnonymize(cmd *cobra.Command, g *Globals, opts *AnonymizeOptions) error {
	ctx := cmd.Context()

	anonymization := g.Config.Anonymization
	if cmd.Flags().Changed("k") {
		anonymization.K = opts.K
	}
	if cmd.Flags().Changed("max-steps") {
		anonymization.Search.MaxSteps = opts.MaxSteps
	}
	if opts.Growth != "" {
		anonymization.Search.Growth = opts.Growth
	}
	if opts.EquivalenceBasis != "" {
		anonymization.EquivalenceBasis = opts.EquivalenceBasis
	}
	if err := anonymization.Validate(); err != nil {
		return err
	}

	formatName := opts.Format
	if formatName == "" {
		formatName = g.Config.DefaultFormat
	}
	format, err := export.ParseFormat(formatName)
	if err != nil {
		return err
	}

	t, err := g.loadTable(ctx, opts.InputFile, cmd.InOrStdin())
	if err != nil {
		return err
	}

	anonymizer := privacy.NewAnonymizer(&anonymization, g.Logger, nil)
	result, err := anonymizer.Run(ctx, t, splitColumns(opts.Columns), anonymization.K, anonymization.Search.MaxSteps)
	if err != nil {
		return fmt.Errorf("anonymization failed: %w", err)
	}

	engine, err := export.NewExportEngine(nil, g.Logger)
	if err != nil {
		return err
	}
	options := export.DefaultExportOptions()
	options.JSONOptions.Pretty = true

	if err := writeDataset(cmd, engine, result.Generalized, format, opts.OutputFile, options); err != nil {
		return err
	}

	if opts.GroupedOutputFile != "" {
		grouped := result.Grouped
		if opts.Suppress {
			grouped = result.Suppressed()
		}
		if err := writeDataset(cmd, engine, grouped, format, opts.GroupedOutputFile, options); err != nil {
			return err
		}
	}

	summary := cmd.OutOrStdout()
	if opts.OutputFile == "-" {
		summary = cmd.ErrOrStderr()
	}
	printSummary(summary, result)

	if opts.Strict && !result.Satisfied {
		return fmt.Errorf("no %d-anonymous assignment found (smallest group has %d rows)", result.K, result.MinGroupSize)
	}
	return nil
}

func writeDataset(cmd *cobra.Command, engine *export.ExportEngine, data export.Dataset, format export.ExportFormat, path string, options export.ExportOptions) error {
	if path == "-" {
		return engine.Export(cmd.Context(), data, format, cmd.OutOrStdout(), options)
	}
	return engine.ExportToFile(cmd.Context(), data, format, path, options)
}

func printSummary(w io.Writer, result *privacy.Result) {
	fmt.Fprintf(w, "Run %s\n", result.RunID)
	fmt.Fprintf(w, "k=%d satisfied=%t groups=%d smallest=%d\n",
		result.K, result.Satisfied, result.Grouped.Len(), result.MinGroupSize)
	fmt.Fprintf(w, "Loss: %.4f (cell %.4f, equivalence %.4f)\n",
		result.Loss, result.LossBreakdown.CellLoss, result.LossBreakdown.EquivalenceLoss)

	columns := make([]string, 0, len(result.Assignment))
	for column := range result.Assignment {
		columns = append(columns, column)
	}
	sort.Strings(columns)
	for _, column := range columns {
		bins := result.Assignment[column]
		bounds := make([]string, len(bins))
		for i, b := range bins {
			bounds[i] = table.FormatNumber(b)
		}
		fmt.Fprintf(w, "  %s: %d bins [%s]\n", column, bins.Count(), strings.Join(bounds, ", "))
	}
}
