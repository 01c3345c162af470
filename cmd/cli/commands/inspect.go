package commands

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"

	"github.com/inferloop/kano/internal/table"
	"github.com/inferloop/kano/pkg/constants"
)

type InspectOptions struct {
	InputFile string
	Format    string
}

// ColumnInfo describes one column of an inspected table.
type ColumnInfo struct {
	Name     string     `json:"name"`
	Kind     table.Kind `json:"kind"`
	Distinct int        `json:"distinct"`
	Min      *float64   `json:"min,omitempty"`
	Max      *float64   `json:"max,omitempty"`
}

type InspectReport struct {
	Rows           int          `json:"rows"`
	Columns        []ColumnInfo `json:"columns"`
	NumericColumns []string     `json:"numeric_columns"`
}

func NewInspectCmd(g *Globals) *cobra.Command {
	opts := &InspectOptions{}

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show the columns of a CSV file and which can be generalized",
		Example: `  kano-cli inspect --input people.csv
  kano-cli inspect -i people.csv --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd, g, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.InputFile, "input", "i", "", "Input CSV file, - for stdin (required)")
	cmd.Flags().StringVarP(&opts.Format, "format", "f", "table", "Output format: table or json")
	cmd.MarkFlagRequired("input")

	return cmd
}

func runInspect(cmd *cobra.Command, g *Globals, opts *InspectOptions) error {
	t, err := g.loadTable(cmd.Context(), opts.InputFile, cmd.InOrStdin())
	if err != nil {
		return err
	}
	report := inspectTable(t)

	out := cmd.OutOrStdout()
	switch opts.Format {
	case constants.OutputFormatJSON:
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(report)
	case "table":
		fmt.Fprintf(out, "Rows: %d\n\n", report.Rows)
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "COLUMN\tKIND\tDISTINCT\tMIN\tMAX")
		for _, c := range report.Columns {
			lo, hi := "-", "-"
			if c.Min != nil {
				lo, hi = table.FormatNumber(*c.Min), table.FormatNumber(*c.Max)
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", c.Name, c.Kind, c.Distinct, lo, hi)
		}
		return w.Flush()
	default:
		return fmt.Errorf("unsupported format %q", opts.Format)
	}
}

func inspectTable(t *table.Table) InspectReport {
	report := InspectReport{Rows: t.Len(), NumericColumns: []string{}}

	for _, name := range t.Columns() {
		col, _ := t.Column(name)
		info := ColumnInfo{Name: name, Kind: col.Kind()}

		distinct := make(map[string]struct{}, col.Len())
		for i := 0; i < col.Len(); i++ {
			distinct[col.Value(i)] = struct{}{}
		}
		info.Distinct = len(distinct)

		if col.Kind() == table.KindNumeric && col.Len() > 0 {
			numbers := col.Numbers()
			lo, hi := floats.Min(numbers), floats.Max(numbers)
			info.Min, info.Max = &lo, &hi
			report.NumericColumns = append(report.NumericColumns, name)
		}
		report.Columns = append(report.Columns, info)
	}
	return report
}
