package compilatio

import (
	"errors"
	"testing"
)

func TestMapStatus(t *testing.T) {
	metrics := Metrics{Start: "2019-04-10 09:00:00", End: "2019-04-10 09:05:00"}
	tests := []struct {
		name     string
		analysis *Analysis
		report   *LightReport
		want     DocumentStatus
	}{
		{
			name: "no analysis",
			want: DocumentStatus{Status: StatusNotStarted, Cost: "1"},
		},
		{
			name:     "waiting",
			analysis: &Analysis{State: "waiting", Metrics: metrics},
			want:     DocumentStatus{Status: StatusInQueue, Cost: "1"},
		},
		{
			name:     "running",
			analysis: &Analysis{State: "running", Metrics: metrics},
			want:     DocumentStatus{Status: StatusProcessing, Cost: "1", StartDate: metrics.Start},
		},
		{
			name:     "degraded",
			analysis: &Analysis{State: "degraded", Metrics: metrics},
			want:     DocumentStatus{Status: StatusProcessing, Cost: "1", StartDate: metrics.Start},
		},
		{
			name:     "crashed",
			analysis: &Analysis{State: "crashed", Metrics: metrics},
			want:     DocumentStatus{Status: StatusCrashed, Cost: "0", StartDate: metrics.Start},
		},
		{
			name:     "aborted",
			analysis: &Analysis{State: "aborted", Metrics: metrics},
			want:     DocumentStatus{Status: StatusCrashed, Cost: "0", StartDate: metrics.Start},
		},
		{
			name:     "canceled",
			analysis: &Analysis{State: "canceled", Metrics: metrics},
			want:     DocumentStatus{Status: StatusCrashed, Cost: "0", StartDate: metrics.Start},
		},
		{
			name:     "finished",
			analysis: &Analysis{State: "finished", Metrics: metrics},
			report:   &LightReport{PlagiarismPercent: "37"},
			want: DocumentStatus{
				Status:      StatusComplete,
				Cost:        "1",
				Indice:      "37",
				Progression: "100",
				StartDate:   metrics.Start,
				FinishDate:  metrics.End,
			},
		},
		{
			name:     "report ignored before completion",
			analysis: &Analysis{State: "running", Metrics: metrics},
			report:   &LightReport{PlagiarismPercent: "12"},
			want:     DocumentStatus{Status: StatusProcessing, Cost: "1", StartDate: metrics.Start},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MapStatus(tt.analysis, tt.report)
			if err != nil {
				t.Fatalf("MapStatus() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("MapStatus() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestMapStatus_FinishedWithoutLightReport(t *testing.T) {
	_, err := MapStatus(&Analysis{State: "finished"}, nil)
	if !errors.Is(err, ErrLightReportMissing) {
		t.Fatalf("err = %v, want ErrLightReportMissing", err)
	}
	_, err = MapStatus(&Analysis{State: "finished"}, &LightReport{})
	if !errors.Is(err, ErrLightReportMissing) {
		t.Fatalf("err = %v, want ErrLightReportMissing for empty percent", err)
	}
}

func TestMapStatus_UnknownState(t *testing.T) {
	_, err := MapStatus(&Analysis{State: "exploded"}, nil)
	if !errors.Is(err, ErrUnknownAnalysisState) {
		t.Fatalf("err = %v, want ErrUnknownAnalysisState", err)
	}
}

func TestStatusCode_Terminal(t *testing.T) {
	for _, s := range []StatusCode{StatusComplete, StatusCrashed} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []StatusCode{StatusNotStarted, StatusInQueue, StatusProcessing} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}
