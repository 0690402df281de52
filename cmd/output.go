package cmd

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/JakeFAU/embedctl/internal/oembed"
)

// Output formats accepted by list commands.
const (
	formatTable = "table"
	formatCSV   = "csv"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

func success(w io.Writer, msg string) {
	fmt.Fprintf(w, "Success: %s\n", msg)
}

func warning(w io.Writer, msg string) {
	fmt.Fprintf(w, "Warning: %s\n", msg)
}

// warn prints a warning and returns errWarned so the command exits 0 without further output.
func warn(cmd *cobra.Command, msg string) error {
	warning(cmd.ErrOrStderr(), msg)
	return errWarned
}

func printError(w io.Writer, err error) {
	fmt.Fprintf(w, "Error: %s\n", err.Error())
}

// listOptions are the --field, --fields and --format flags of list commands.
type listOptions struct {
	field  string
	fields []string
	format string
}

func (o *listOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.field, "field", "", "display the value of a single field")
	cmd.Flags().StringSliceVar(&o.fields, "fields", nil, "limit the output to specific fields")
	cmd.Flags().StringVar(&o.format, "format", formatTable, "render output in a particular format (table, csv, json, yaml)")
}

// display renders items. Each item maps field names to values; defaults selects the
// fields shown when --fields is absent.
func (o listOptions) display(w io.Writer, items []map[string]string, defaults []string) error {
	if o.field != "" {
		if !slices.Contains(defaults, o.field) {
			return fmt.Errorf("Invalid field: %s.", o.field) //nolint:staticcheck // user-facing message
		}
		for _, item := range items {
			fmt.Fprintln(w, item[o.field])
		}
		return nil
	}

	fields := defaults
	if len(o.fields) > 0 {
		fields = make([]string, 0, len(o.fields))
		for _, f := range o.fields {
			f = strings.TrimSpace(f)
			if !slices.Contains(defaults, f) {
				return fmt.Errorf("Invalid field: %s.", f) //nolint:staticcheck // user-facing message
			}
			fields = append(fields, f)
		}
	}

	switch o.format {
	case formatTable:
		return writeTable(w, items, fields)
	case formatCSV:
		return writeCSV(w, items, fields)
	case formatJSON:
		return writeJSON(w, items, fields)
	case formatYAML:
		return writeYAML(w, items, fields)
	default:
		return fmt.Errorf("Invalid format: %s", o.format) //nolint:staticcheck // user-facing message
	}
}

func writeTable(w io.Writer, items []map[string]string, fields []string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(fields, "\t"))
	for _, item := range items {
		values := make([]string, len(fields))
		for i, f := range fields {
			values[i] = item[f]
		}
		fmt.Fprintln(tw, strings.Join(values, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("write table: %w", err)
	}
	return nil
}

func writeCSV(w io.Writer, items []map[string]string, fields []string) error {
	cw := csv.NewWriter(w)
	records := make([][]string, 0, len(items)+1)
	records = append(records, fields)
	for _, item := range items {
		record := make([]string, len(fields))
		for i, f := range fields {
			record[i] = item[f]
		}
		records = append(records, record)
	}
	if err := cw.WriteAll(records); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

func writeJSON(w io.Writer, items []map[string]string, fields []string) error {
	docs := make([]oembed.Data, 0, len(items))
	for _, item := range items {
		doc := make(oembed.Data, 0, len(fields))
		for _, f := range fields {
			doc = append(doc, oembed.Field{Key: f, Value: item[f]})
		}
		docs = append(docs, doc)
	}
	out, err := json.Marshal(docs)
	if err != nil {
		return fmt.Errorf("write json: %w", err)
	}
	if _, err := fmt.Fprintln(w, string(out)); err != nil {
		return fmt.Errorf("write json: %w", err)
	}
	return nil
}

func writeYAML(w io.Writer, items []map[string]string, fields []string) error {
	seq := &yaml.Node{Kind: yaml.SequenceNode}
	for _, item := range items {
		m := &yaml.Node{Kind: yaml.MappingNode}
		for _, f := range fields {
			m.Content = append(m.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Value: f},
				&yaml.Node{Kind: yaml.ScalarNode, Value: item[f], Style: yaml.DoubleQuotedStyle},
			)
		}
		seq.Content = append(seq.Content, m)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(seq); err != nil {
		return fmt.Errorf("write yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("write yaml: %w", err)
	}
	return nil
}
