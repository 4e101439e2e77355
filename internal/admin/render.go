package admin

import (
	"fmt"
	"io"
	"text/tabwriter"

	"attendkiosk/internal/backend"
)

// RenderTable writes one query page as an aligned text table. The footer
// total comes from the server, not from the page length.
func RenderTable(w io.Writer, page backend.RecordsPage) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIMESTAMP\tCOMPANY\tSTUDENT\tLAT\tLON\tSTATUS\tSCORE")
	for _, r := range page.Data {
		score := "-"
		if r.Score != nil {
			score = fmt.Sprintf("%.2f", *r.Score)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.5f\t%.5f\t%s\t%s\n",
			r.Timestamp.Format("2006-01-02 15:04:05"),
			r.CompanyID,
			r.StudentIdentity(),
			r.Location.Lat,
			r.Location.Lon,
			r.Status,
			score,
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\nShowing %d of %d record(s)\n", len(page.Data), page.Total)
	return err
}
