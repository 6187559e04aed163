package formatter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/desertthunder/mixtape/internal/models"
)

// HistoryTable renders transfer records as an aligned table, newest first as given.
func HistoryTable(records []*models.TransferRecord) []byte {
	var buf bytes.Buffer
	if len(records) == 0 {
		buf.WriteString("No transfers recorded\n")
		return buf.Bytes()
	}

	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tPLAYLIST\tROUTE\tSTATUS\tRESULT\tATTEMPTS")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s -> %s\t%s\t%d of %d\t%d\n",
			r.CreatedAt.Local().Format(time.DateTime),
			r.SourcePlaylistName,
			r.SourceService,
			r.TargetService,
			r.Status,
			r.Transferred(),
			r.TracksTotal,
			r.Attempts,
		)
	}
	w.Flush()
	return buf.Bytes()
}

// HistoryJSON renders transfer records as indented JSON.
func HistoryJSON(records []*models.TransferRecord) ([]byte, error) {
	if records == nil {
		records = []*models.TransferRecord{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode history: %w", err)
	}
	return append(data, '\n'), nil
}
