package compilatio

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

const compilatioTimestampLayout = "2006-01-02 15:04:05"

// envelope is the wrapper every /api endpoint answers with.
type envelope struct {
	Status *struct {
		Code    *int    `json:"code"`
		Message *string `json:"message"`
	} `json:"status"`
	Data json.RawMessage `json:"data"`
}

// Document is a remote document snapshot together with its derived analysis status.
type Document struct {
	Properties DocumentProperties `json:"documentProperties"`
	Status     DocumentStatus     `json:"documentStatus"`
}

// DocumentProperties is the subset of the remote document the connector keeps.
type DocumentProperties struct {
	ID         string `json:"idDocument"`
	Title      string `json:"title"`
	Filename   string `json:"filename"`
	Filetype   string `json:"filetype"`
	Date       string `json:"date"`
	TextLength int    `json:"textLength"`
	WordCount  int    `json:"wordCount"`
	Indexed    bool   `json:"indexed"`
}

// Analysis is the remote similarity job attached to a document.
type Analysis struct {
	State   string  `json:"state"`
	Metrics Metrics `json:"metrics"`
}

// Metrics holds the start and end timestamps of an analysis.
type Metrics struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// LightReport is the summary of a finished analysis.
type LightReport struct {
	PlagiarismPercent json.Number `json:"plagiarism_percent"`
}

type remoteDocument struct {
	ID           string                  `json:"id"`
	Title        string                  `json:"title"`
	Filename     string                  `json:"filename"`
	UploadDate   string                  `json:"upload_date"`
	Length       int                     `json:"length"`
	WordsCount   int                     `json:"words_count"`
	Indexed      bool                    `json:"indexed"`
	Analyses     map[string]*Analysis    `json:"analyses"`
	LightReports map[string]*LightReport `json:"light_reports"`
}

func (d remoteDocument) properties() DocumentProperties {
	return DocumentProperties{
		ID:         d.ID,
		Title:      d.Title,
		Filename:   d.Filename,
		Filetype:   filetype(d.Filename),
		Date:       d.UploadDate,
		TextLength: d.Length,
		WordCount:  d.WordsCount,
		Indexed:    d.Indexed,
	}
}

// filetype returns the segment following the first dot of name.
func filetype(name string) string {
	parts := strings.SplitN(name, ".", 3)
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

// AccountQuotas describes storage and credit quotas of the account.
type AccountQuotas struct {
	Quotas Quotas `json:"quotas"`
}

// Quotas are the individual quota counters.
type Quotas struct {
	Space            int64 `json:"space"`
	Freespace        int64 `json:"freespace"`
	UsedSpace        int64 `json:"usedSpace"`
	Credits          int64 `json:"credits"`
	RemainingCredits int64 `json:"remainingCredits"`
	UsedCredits      int64 `json:"usedCredits"`
}

// FileMaxSize is the largest accepted upload expressed in several units.
type FileMaxSize struct {
	Bits   int64 `json:"bits"`
	Octets int64 `json:"octets"`
	Ko     int64 `json:"Ko"`
	Mo     int64 `json:"Mo"`
}

// FileType is one accepted extension/MIME type pair.
type FileType struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Mimetype string `json:"mimetype"`
}

// PluginConfiguration is reported to the service so support can see what is deployed.
type PluginConfiguration struct {
	RuntimeVersion string
	HostVersion    string
	PluginVersion  string
	Language       string
	CronFrequency  int
}

// ServiceInfo is a service announcement shown to administrators.
type ServiceInfo struct {
	ID             string            `json:"id"`
	Type           string            `json:"type"`
	Messages       map[string]string `json:"messages"`
	BeginDisplayOn time.Time         `json:"begin_display_on"`
	EndDisplayOn   time.Time         `json:"end_display_on"`
}

// Message returns the announcement text for lang, or "" when absent.
func (s ServiceInfo) Message(lang string) string {
	return s.Messages[lang]
}

type remoteServiceInfo struct {
	ID      flexString        `json:"id"`
	Level   flexString        `json:"level"`
	Message map[string]string `json:"message"`
	Metrics Metrics           `json:"metrics"`
}

// flexString accepts both JSON strings and numbers.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	if string(b) == "null" {
		*f = ""
		return nil
	}
	*f = flexString(b)
	return nil
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	if t, err := time.ParseInLocation(compilatioTimestampLayout, value, time.Local); err == nil {
		return t
	}
	return time.Time{}
}
