package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/srg/mbitmore/internal/characteristic"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// tableCmd represents the table command
var tableCmd = &cobra.Command{
	Use:   "table",
	Short: "Print the characteristic table",
	Long: `Print the characteristic table exposed by the service.

Every characteristic UUID is derived from the base UUID by replacing its
bytes 2..3 with the characteristic's 16-bit suffix.`,
	Args: cobra.NoArgs,
	RunE: runTable,
}

var (
	tableFormat   string
	tableBaseUUID string
)

func init() {
	tableCmd.Flags().StringVarP(&tableFormat, "format", "f", "table", "Output format (table, json)")
	tableCmd.Flags().StringVar(&tableBaseUUID, "base-uuid", characteristic.DefaultBaseUUID, "Base UUID the service and characteristic UUIDs are derived from")
}

func runTable(cmd *cobra.Command, _ []string) error {
	if err := validateFormat(tableFormat); err != nil {
		return err
	}

	table, err := characteristic.NewTable(tableBaseUUID)
	if err != nil {
		return err
	}

	cmd.SilenceUsage = true

	out := cmd.OutOrStdout()
	if tableFormat == "json" {
		return writeJSON(out, tableDocument(table))
	}
	return writeTable(out, table)
}

func writeTable(w io.Writer, table *characteristic.Table) error {
	heading(w).Fprintf(w, "SERVICE %s\n", table.ServiceText())

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "IDX\tNAME\tUUID\tCAP\tPROPERTIES")
	for _, d := range table.Descriptors() {
		capacity := fmt.Sprintf("%d", d.Capacity)
		if d.Variable {
			capacity = "<=" + capacity
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
			d.Index, d.Name, d.Text, capacity, strings.Join(d.PropertyNames(), ","))
	}
	return tw.Flush()
}

// tableDocument keeps keys in declaration order so JSON output is stable to diff.
func tableDocument(table *characteristic.Table) *orderedmap.OrderedMap[string, any] {
	doc := orderedmap.New[string, any]()
	doc.Set("service", table.ServiceText())
	doc.Set("base", table.BaseUUID().String())

	chars := make([]*orderedmap.OrderedMap[string, any], 0, table.Count())
	for _, d := range table.Descriptors() {
		c := orderedmap.New[string, any]()
		c.Set("index", int(d.Index))
		c.Set("name", d.Name)
		c.Set("uuid", d.Text)
		c.Set("capacity", d.Capacity)
		c.Set("variable", d.Variable)
		c.Set("properties", d.PropertyNames())
		chars = append(chars, c)
	}
	doc.Set("characteristics", chars)
	return doc
}
