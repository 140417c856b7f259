package compilatio

import "fmt"

// StatusCode is the coarse lifecycle state of a document's analysis.
type StatusCode string

const (
	StatusNotStarted StatusCode = "ANALYSE_NOT_STARTED"
	StatusInQueue    StatusCode = "ANALYSE_IN_QUEUE"
	StatusProcessing StatusCode = "ANALYSE_PROCESSING"
	StatusCrashed    StatusCode = "ANALYSE_CRASHED"
	StatusComplete   StatusCode = "ANALYSE_COMPLETE"
)

// Terminal reports whether no further remote transition is expected.
func (s StatusCode) Terminal() bool {
	return s == StatusComplete || s == StatusCrashed
}

// DocumentStatus is derived from the analysis record, never stored remotely.
type DocumentStatus struct {
	Status      StatusCode `json:"status"`
	Cost        string     `json:"cost"`
	Indice      string     `json:"indice"`
	Progression string     `json:"progression"`
	StartDate   string     `json:"startDate"`
	FinishDate  string     `json:"finishDate"`
}

// MapStatus projects the remote analysis state onto a DocumentStatus.
// analysis is nil when no analysis was ever started. report is only read for
// finished analyses.
func MapStatus(analysis *Analysis, report *LightReport) (DocumentStatus, error) {
	if analysis == nil {
		return DocumentStatus{Status: StatusNotStarted, Cost: "1"}, nil
	}
	switch analysis.State {
	case "waiting":
		return DocumentStatus{Status: StatusInQueue, Cost: "1"}, nil
	case "running", "degraded":
		return DocumentStatus{
			Status:    StatusProcessing,
			Cost:      "1",
			StartDate: analysis.Metrics.Start,
		}, nil
	case "crashed", "aborted", "canceled":
		return DocumentStatus{
			Status:    StatusCrashed,
			Cost:      "0",
			StartDate: analysis.Metrics.Start,
		}, nil
	case "finished":
		if report == nil || report.PlagiarismPercent == "" {
			return DocumentStatus{}, ErrLightReportMissing
		}
		return DocumentStatus{
			Status:      StatusComplete,
			Cost:        "1",
			Indice:      report.PlagiarismPercent.String(),
			Progression: "100",
			StartDate:   analysis.Metrics.Start,
			FinishDate:  analysis.Metrics.End,
		}, nil
	}
	return DocumentStatus{}, fmt.Errorf("%w: %q", ErrUnknownAnalysisState, analysis.State)
}
