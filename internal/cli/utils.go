// Package cli formats command output for the compilatio CLI.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/hyperjump/compilatio/internal/compilatio"
	"github.com/hyperjump/compilatio/internal/models"
	"github.com/hyperjump/compilatio/internal/submission"
	"github.com/hyperjump/compilatio/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

const rule = "─────────────────────────────────────────────────────────"

// ParseOutputFormat validates a --output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputText, OutputJSON:
		return OutputFormat(s), nil
	}
	return "", fmt.Errorf("unknown output format %q; use text or json", s)
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteSubmission writes one ledger record.
func WriteSubmission(w io.Writer, sub *models.Submission, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, sub)
	}
	fmt.Fprintf(w, "id:               %d\n", sub.ID)
	fmt.Fprintf(w, "cm:               %d\n", sub.CM)
	fmt.Fprintf(w, "userid:           %d\n", sub.UserID)
	fmt.Fprintf(w, "filename:         %s\n", sub.Filename)
	fmt.Fprintf(w, "attempt:          %d\n", sub.Attempt)
	fmt.Fprintf(w, "status:           %s\n", sub.StatusCode)
	if sub.ExternalID != "" {
		fmt.Fprintf(w, "externalid:       %s\n", sub.ExternalID)
	}
	if sub.StatusCode == string(compilatio.StatusComplete) {
		fmt.Fprintf(w, "similarity:       %.2f%%\n", sub.SimilarityScore)
	}
	if sub.ReportURL != "" {
		fmt.Fprintf(w, "report:           %s\n", sub.ReportURL)
	}
	if !sub.TimeSubmitted.IsZero() {
		fmt.Fprintf(w, "submitted:        %s\n", sub.TimeSubmitted.Format(time.RFC3339))
	}
	if sub.ErrorResponse != "" {
		fmt.Fprintf(w, "error:            %s\n", sub.ErrorResponse)
	}
	return nil
}

// WriteSubmissions writes ledger records one per line.
func WriteSubmissions(w io.Writer, subs []*models.Submission, format OutputFormat) error {
	if format == OutputJSON {
		if subs == nil {
			subs = []*models.Submission{}
		}
		return WriteJSON(w, map[string]any{"submissions": subs})
	}
	if len(subs) == 0 {
		fmt.Fprintln(w, "No submissions.")
		return nil
	}
	fmt.Fprintf(w, "%-6s %-6s %-8s %-22s %7s  %s\n", "ID", "CM", "USER", "STATUS", "SCORE", "FILE")
	for _, s := range subs {
		score := "-"
		if s.StatusCode == string(compilatio.StatusComplete) {
			score = fmt.Sprintf("%.1f%%", s.SimilarityScore)
		}
		fmt.Fprintf(w, "%-6d %-6d %-8d %-22s %7s  %s\n",
			s.ID, s.CM, s.UserID, s.StatusCode, score, utils.Truncate(s.Filename, 40))
	}
	return nil
}

// WriteDocument writes a remote document and its analysis status.
func WriteDocument(w io.Writer, doc *compilatio.Document, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, doc)
	}
	p, st := doc.Properties, doc.Status
	fmt.Fprintf(w, "id:          %s\n", p.ID)
	fmt.Fprintf(w, "filename:    %s\n", p.Filename)
	fmt.Fprintf(w, "filetype:    %s\n", p.Filetype)
	fmt.Fprintf(w, "uploaded:    %s\n", p.Date)
	fmt.Fprintf(w, "words:       %d\n", p.WordCount)
	fmt.Fprintf(w, "length:      %d\n", p.TextLength)
	fmt.Fprintf(w, "indexed:     %t\n", p.Indexed)
	fmt.Fprintf(w, "status:      %s\n", st.Status)
	if st.Indice != "" {
		fmt.Fprintf(w, "similarity:  %s%%\n", st.Indice)
	}
	if st.StartDate != "" {
		fmt.Fprintf(w, "started:     %s\n", st.StartDate)
	}
	if st.FinishDate != "" {
		fmt.Fprintf(w, "finished:    %s\n", st.FinishDate)
	}
	return nil
}

// WriteNews writes service announcements in lang, falling back to English.
func WriteNews(w io.Writer, news []compilatio.ServiceInfo, lang string, format OutputFormat) error {
	if format == OutputJSON {
		if news == nil {
			news = []compilatio.ServiceInfo{}
		}
		return WriteJSON(w, map[string]any{"news": news})
	}
	if len(news) == 0 {
		fmt.Fprintln(w, "No announcements.")
		return nil
	}
	for _, n := range news {
		msg := n.Message(lang)
		if msg == "" {
			msg = n.Message("en")
		}
		fmt.Fprintln(w, rule)
		fmt.Fprintf(w, "[%s] #%s", n.Type, n.ID)
		if !n.BeginDisplayOn.IsZero() {
			fmt.Fprintf(w, " from %s", n.BeginDisplayOn.Format(time.DateTime))
		}
		if !n.EndDisplayOn.IsZero() {
			fmt.Fprintf(w, " until %s", n.EndDisplayOn.Format(time.DateTime))
		}
		fmt.Fprintln(w)
		if msg != "" {
			fmt.Fprintf(w, "%s\n", utils.Truncate(msg, 400))
		}
	}
	return nil
}

// WriteFileTypes writes the accepted file types.
func WriteFileTypes(w io.Writer, types []compilatio.FileType, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, map[string]any{"file_types": types})
	}
	for _, t := range types {
		fmt.Fprintf(w, "%-6s %-34s %s\n", t.Type, t.Title, t.Mimetype)
	}
	return nil
}

// WriteSyncResult writes the summary of a sync run.
func WriteSyncResult(w io.Writer, r submission.SyncResult, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, r)
	}
	fmt.Fprintf(w, "run %s: %d checked, %d completed, %d failed\n", r.RunID, r.Checked, r.Completed, r.Failed)
	return nil
}

// WriteQuotas writes the account quotas and upload limit.
func WriteQuotas(w io.Writer, q compilatio.AccountQuotas, size compilatio.FileMaxSize, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, map[string]any{"quotas": q.Quotas, "max_size": size})
	}
	fmt.Fprintf(w, "space:              %d (free %d, used %d)\n", q.Quotas.Space, q.Quotas.Freespace, q.Quotas.UsedSpace)
	fmt.Fprintf(w, "credits:            %d (remaining %d, used %d)\n", q.Quotas.Credits, q.Quotas.RemainingCredits, q.Quotas.UsedCredits)
	fmt.Fprintf(w, "max upload size:    %d Mo (%d bytes)\n", size.Mo, size.Octets)
	return nil
}
