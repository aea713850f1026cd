package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/five82/melinda/internal/ui"
	"github.com/five82/melinda/pkg/melinda"
)

var textStyles = ui.GetTheme(ui.DefaultTheme).Styles()

func stateLabel(state melinda.QueueItemState) string {
	return textStyles.StateBadge(state)
}

// writeRecord prints a record in the conventional line-per-field layout.
func writeRecord(w io.Writer, rec melinda.Record) error {
	var b strings.Builder
	fmt.Fprintf(&b, "LDR    %s\n", rec.Leader)
	for _, f := range rec.Fields {
		if len(f.Subfields) == 0 {
			fmt.Fprintf(&b, "%-3s    %s\n", f.Tag, f.Value)
			continue
		}
		fmt.Fprintf(&b, "%-3s %s%s ", f.Tag, indicator(f.Ind1), indicator(f.Ind2))
		for _, sf := range f.Subfields {
			fmt.Fprintf(&b, "$%s %s ", sf.Code, sf.Value)
		}
		b.WriteString("\n")
	}
	_, err := io.WriteString(w, strings.ReplaceAll(b.String(), " \n", "\n"))
	return err
}

func indicator(ind string) string {
	if ind == "" {
		return " "
	}
	return ind
}

func writeRecordResult(w io.Writer, action string, res melinda.RecordResult) error {
	switch {
	case res.Conflict():
		fmt.Fprintf(w, "%s: conflict (%d)\n", action, res.Status)
	case res.RecordID != "":
		fmt.Fprintf(w, "%s: record %s (%d)\n", action, res.RecordID, res.Status)
	default:
		fmt.Fprintf(w, "%s: done (%d)\n", action, res.Status)
	}
	return writeRaw(w, res.Payload)
}

// writeReadResult prints the record, or the status and raw body when the
// backend answered without one.
func writeReadResult(w io.Writer, res melinda.ReadResult) error {
	if res.Status == 0 || res.Status == 200 || res.Status == 201 {
		return writeRecord(w, res.Record)
	}
	label := "accepted"
	if res.Conflict() {
		label = "conflict"
	}
	fmt.Fprintf(w, "read: %s (%d)\n", label, res.Status)
	return writeRaw(w, res.Payload)
}

// writeBulkResult prints the job metadata, or the status and raw body for a
// 202 or 409 answer.
func writeBulkResult(w io.Writer, action string, res melinda.BulkResult) error {
	switch {
	case res.Conflict():
		fmt.Fprintf(w, "%s: conflict (%d)\n", action, res.Status)
	case res.Accepted():
		fmt.Fprintf(w, "%s: accepted (%d)\n", action, res.Status)
	default:
		return writeBulkMetadata(w, res.Metadata)
	}
	return writeRaw(w, res.Payload)
}

func writeRaw(w io.Writer, payload json.RawMessage) error {
	if len(payload) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(payload, &v); err != nil {
		_, err = fmt.Fprintln(w, string(payload))
		return err
	}
	return printJSON(w, v)
}

func writeJobStatus(w io.Writer, s melinda.JobStatus) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Correlation ID:\t%s\n", s.CorrelationID)
	fmt.Fprintf(tw, "State:\t%s\n", stateLabel(s.QueueItemState))
	fmt.Fprintf(tw, "Modified:\t%s\n", dash(s.ModificationTime))
	if n := s.HandledRecords(); n >= 0 {
		fmt.Fprintf(tw, "Records:\t%d\n", n)
	}
	return tw.Flush()
}

func writeBulkMetadata(w io.Writer, m melinda.BulkMetadata) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Correlation ID:\t%s\n", m.CorrelationID)
	fmt.Fprintf(tw, "State:\t%s\n", stateLabel(m.QueueItemState))
	fmt.Fprintf(tw, "Cataloger:\t%s\n", dash(m.Cataloger))
	fmt.Fprintf(tw, "Operation:\t%s\n", dash(m.Operation))
	fmt.Fprintf(tw, "Content type:\t%s\n", dash(m.ContentType))
	fmt.Fprintf(tw, "Created:\t%s\n", dash(m.CreationTime))
	fmt.Fprintf(tw, "Modified:\t%s\n", dash(m.ModificationTime))
	fmt.Fprintf(tw, "Handled:\t%d\n", len(m.HandledIDs))
	fmt.Fprintf(tw, "Rejected:\t%d\n", len(m.RejectedIDs))
	if m.ErrorMessage != "" {
		fmt.Fprintf(tw, "Error:\t%s\n", m.ErrorMessage)
	}
	return tw.Flush()
}

func writeBulkList(w io.Writer, items []melinda.BulkMetadata) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CORRELATION ID\tSTATE\tOPERATION\tCATALOGER\tMODIFIED\tHANDLED\tREJECTED")
	for _, m := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%d\n",
			m.CorrelationID, m.QueueItemState, dash(m.Operation), dash(m.Cataloger),
			dash(m.ModificationTime), len(m.HandledIDs), len(m.RejectedIDs))
	}
	return tw.Flush()
}

func writeLogItems(w io.Writer, items []melinda.LogItem) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CORRELATION ID\tTYPE\tSEQ\tCATALOGER\tDATABASE ID\tCREATED\tPROTECTED")
	for _, item := range items {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\t%t\n",
			item.CorrelationID, dash(item.LogItemType), item.BlobSequence, dash(item.Cataloger),
			dash(item.DatabaseID), dash(item.CreationTime), item.Protected)
	}
	return tw.Flush()
}

func writeLines(w io.Writer, lines []string) error {
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func dash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
