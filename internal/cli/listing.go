package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/roach88/hrsync/internal/ir"
	"github.com/roach88/hrsync/internal/query"
)

// printPage writes one page as an aligned table of the given attributes,
// followed by a paging footer.
func printPage(w io.Writer, page query.Page, attrs ...string) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.ToUpper(strings.Join(append([]string{ir.AttrID}, attrs...), "\t")))
	for _, e := range page.Items {
		printRow(tw, e, attrs)
	}
	tw.Flush()

	pages := 1
	if page.PageSize > 0 && page.Total > 0 {
		pages = (page.Total + page.PageSize - 1) / page.PageSize
	}
	fmt.Fprintf(w, "page %d/%d, %d total (revision %d)\n", page.Page, pages, page.Total, page.Revision)
}

// printEntity writes a single entity as an aligned table.
func printEntity(w io.Writer, e ir.Entity, attrs ...string) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.ToUpper(strings.Join(append([]string{ir.AttrID}, attrs...), "\t")))
	printRow(tw, e, attrs)
	tw.Flush()
}

func printRow(w io.Writer, e ir.Entity, attrs []string) {
	cells := []string{e.ID}
	for _, a := range attrs {
		cells = append(cells, cell(e.Get(a)))
	}
	fmt.Fprintln(w, strings.Join(cells, "\t"))
}

// cell renders one attribute for table output.
func cell(v ir.IRValue) string {
	if arr, ok := v.(ir.IRArray); ok {
		parts := make([]string, len(arr))
		for i, elem := range arr {
			parts[i] = ir.Text(elem)
		}
		return strings.Join(parts, ",")
	}
	if s := ir.Text(v); s != "" {
		return s
	}
	return "-"
}
