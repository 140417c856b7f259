package compilatio

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hyperjump/compilatio/internal/compilatio/compilatiotest"
)

const testContent = "Test d'un upload de fichier avec l'API REST -- Test Unitaire"

func newTestClient(t *testing.T, key string) (*Client, *compilatiotest.Server) {
	t.Helper()
	fake := compilatiotest.NewServer("test-key")
	t.Cleanup(fake.Close)
	c, err := NewClient(key, fake.URL)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	return c, fake
}

func TestNewClient_BaseURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://app.compilatio.net", "https://app.compilatio.net"},
		{"https://app.compilatio.net/", "https://app.compilatio.net"},
		{"app.compilatio.net", "https://app.compilatio.net"},
		{"http://localhost:8080/prefix/", "http://localhost:8080/prefix"},
	}
	for _, tt := range tests {
		c, err := NewClient("k", tt.in)
		if err != nil {
			t.Fatalf("NewClient(%q) returned error: %v", tt.in, err)
		}
		if c.BaseURL() != tt.want {
			t.Errorf("BaseURL() = %q, want %q", c.BaseURL(), tt.want)
		}
	}

	if _, err := NewClient("k", "   "); err == nil {
		t.Error("expected error for empty base URL")
	}
}

func TestClient_Configured(t *testing.T) {
	c, err := NewClient("", DefaultBaseURL)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	if c.Configured() {
		t.Error("client without key should not be configured")
	}
	c, _ = NewClient("abc", DefaultBaseURL)
	if !c.Configured() {
		t.Error("client with key should be configured")
	}
}

func TestSendDocAndGetDoc(t *testing.T) {
	c, fake := newTestClient(t, "test-key")
	ctx := context.Background()

	id, err := c.SendDoc(ctx, "Title--UnitTest", "Unit_test.txt", testContent)
	if err != nil {
		t.Fatalf("SendDoc returned error: %v", err)
	}
	if len(id) != 40 {
		t.Fatalf("id = %q, want 40 hex characters", id)
	}
	stored, ok := fake.Doc(id)
	if !ok {
		t.Fatalf("document %s not stored", id)
	}
	if stored.Content != testContent || stored.Title != "Title--UnitTest" {
		t.Errorf("stored = %+v", stored)
	}

	doc, err := c.GetDoc(ctx, id)
	if err != nil {
		t.Fatalf("GetDoc returned error: %v", err)
	}
	p := doc.Properties
	if p.ID != id {
		t.Errorf("ID = %q, want %q", p.ID, id)
	}
	if p.Filename != "Unit_test.txt" || p.Filetype != "txt" {
		t.Errorf("filename/filetype = %q/%q", p.Filename, p.Filetype)
	}
	if p.WordCount != 11 {
		t.Errorf("WordCount = %d, want 11", p.WordCount)
	}
	if p.TextLength != len(testContent) {
		t.Errorf("TextLength = %d, want %d", p.TextLength, len(testContent))
	}
	if p.Date == "" {
		t.Error("expected upload date")
	}
	if doc.Status.Status != StatusNotStarted {
		t.Errorf("Status = %s, want %s", doc.Status.Status, StatusNotStarted)
	}
}

func TestSendDoc_Validation(t *testing.T) {
	c, fake := newTestClient(t, "test-key")
	ctx := context.Background()

	_, err := c.SendDoc(ctx, "", "a.txt", "content")
	if err == nil || err.Error() != "Invalid parameter : 'title' is empty" {
		t.Fatalf("err = %v", err)
	}
	_, err = c.SendDoc(ctx, "title", "", "content")
	if err == nil || err.Error() != "Invalid parameter : 'filename' is empty" {
		t.Fatalf("err = %v", err)
	}
	_, err = c.SendDoc(ctx, "title", "a.txt", "")
	if err == nil || err.Error() != "Invalid parameter : 'content' is empty" {
		t.Fatalf("err = %v", err)
	}
	if got := len(fake.Requests()); got != 0 {
		t.Errorf("validation failures sent %d requests", got)
	}
}

func TestDocumentOperations_EmptyID(t *testing.T) {
	c, _ := newTestClient(t, "test-key")
	ctx := context.Background()
	want := "Invalid parameter : 'document's ID' is empty"

	checks := map[string]error{}
	_, checks["GetDoc"] = c.GetDoc(ctx, "")
	_, checks["GetReportURL"] = c.GetReportURL(ctx, "")
	checks["DeleteDoc"] = c.DeleteDoc(ctx, "")
	checks["StartAnalysis"] = c.StartAnalysis(ctx, "")
	_, checks["GetIndexingState"] = c.GetIndexingState(ctx, "")
	checks["SetIndexingState"] = c.SetIndexingState(ctx, "", true)

	for name, err := range checks {
		if err == nil || err.Error() != want {
			t.Errorf("%s: err = %v, want %q", name, err, want)
		}
		if !IsParamError(err) {
			t.Errorf("%s: expected *ParamError, got %T", name, err)
		}
	}
}

func TestGetDoc_AnalysisLifecycle(t *testing.T) {
	c, fake := newTestClient(t, "test-key")
	ctx := context.Background()
	id := fake.AddDocument("essay.pdf", "some words here")

	if err := c.StartAnalysis(ctx, id); err != nil {
		t.Fatalf("StartAnalysis returned error: %v", err)
	}
	doc, err := c.GetDoc(ctx, id)
	if err != nil {
		t.Fatalf("GetDoc returned error: %v", err)
	}
	if doc.Status.Status != StatusInQueue {
		t.Fatalf("Status = %s, want %s", doc.Status.Status, StatusInQueue)
	}

	fake.SetAnalysis(id, "finished", 23)
	doc, err = c.GetDoc(ctx, id)
	if err != nil {
		t.Fatalf("GetDoc returned error: %v", err)
	}
	if doc.Status.Status != StatusComplete {
		t.Fatalf("Status = %s, want %s", doc.Status.Status, StatusComplete)
	}
	if doc.Status.Progression != "100" || doc.Status.Indice != "23" {
		t.Errorf("status = %+v", doc.Status)
	}
	if doc.Status.StartDate == "" || doc.Status.FinishDate == "" {
		t.Errorf("expected start and finish dates, got %+v", doc.Status)
	}

	url, err := c.GetReportURL(ctx, id)
	if err != nil {
		t.Fatalf("GetReportURL returned error: %v", err)
	}
	if !strings.HasSuffix(url, "/api/report/redirect/"+id) {
		t.Errorf("report url = %q", url)
	}
}

func TestGetDoc_FinishedWithoutReport(t *testing.T) {
	c, fake := newTestClient(t, "test-key")
	id := fake.AddDocument("essay.pdf", "text")
	fake.SetAnalysis(id, "finished", nil)

	_, err := c.GetDoc(context.Background(), id)
	if !errors.Is(err, ErrLightReportMissing) {
		t.Fatalf("err = %v, want ErrLightReportMissing", err)
	}
}

func TestAPIErrorsAreVerbatim(t *testing.T) {
	c, fake := newTestClient(t, "test-key")
	ctx := context.Background()

	_, err := c.GetDoc(ctx, "unknown")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %T %v, want *APIError", err, err)
	}
	if apiErr.Code != http.StatusNotFound || err.Error() != "Not Found" {
		t.Errorf("got %d %q", apiErr.Code, err.Error())
	}

	if err := c.StartAnalysis(ctx, "unknown"); err == nil || err.Error() != "Invalid document id" {
		t.Errorf("StartAnalysis err = %v", err)
	}

	id := fake.AddDocument("a.txt", "abc")
	if _, err := c.GetReportURL(ctx, id); err == nil || err.Error() != "Bad Request" {
		t.Errorf("GetReportURL err = %v", err)
	}
}

func TestAuthentication(t *testing.T) {
	ctx := context.Background()

	c, _ := newTestClient(t, "")
	if _, err := c.GetAccountExpirationDate(ctx); err == nil || err.Error() != compilatiotest.MessageAuthRequired {
		t.Errorf("missing key err = %v", err)
	}

	c, _ = newTestClient(t, "wrong")
	if _, err := c.GetAccountExpirationDate(ctx); err == nil || err.Error() != compilatiotest.MessageInvalidKey {
		t.Errorf("wrong key err = %v", err)
	}
}

func TestAuthHeaderSent(t *testing.T) {
	tokens := make(chan string, 1)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokens <- r.Header.Get("X-Auth-Token")
		_, _ = w.Write([]byte(`{"status":{"code":200,"message":"OK"},"data":{"url":"u"}}`))
	}))
	defer ts.Close()

	c, err := NewClient("secret", ts.URL)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	if _, err := c.GetReportURL(context.Background(), "abc"); err != nil {
		t.Fatalf("GetReportURL returned error: %v", err)
	}
	if got := <-tokens; got != "secret" {
		t.Errorf("X-Auth-Token = %q, want secret", got)
	}
}

func TestStatusNotFound(t *testing.T) {
	bodies := []string{
		`not json`,
		`{}`,
		`{"status":{"code":200}}`,
		`{"status":{"message":"OK"}}`,
	}
	for _, body := range bodies {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(body))
		}))
		c, err := NewClient("k", ts.URL)
		if err != nil {
			t.Fatalf("NewClient returned error: %v", err)
		}
		err = c.DeleteDoc(context.Background(), "abc")
		if !errors.Is(err, ErrStatusNotFound) {
			t.Errorf("body %q: err = %v, want ErrStatusNotFound", body, err)
		}
		ts.Close()
	}
}

func TestIndexingState(t *testing.T) {
	c, fake := newTestClient(t, "test-key")
	ctx := context.Background()
	id := fake.AddDocument("a.txt", "abc")

	indexed, err := c.GetIndexingState(ctx, id)
	if err != nil {
		t.Fatalf("GetIndexingState returned error: %v", err)
	}
	if indexed {
		t.Fatal("new document should not be indexed")
	}
	if err := c.SetIndexingState(ctx, id, true); err != nil {
		t.Fatalf("SetIndexingState returned error: %v", err)
	}
	if indexed, _ = c.GetIndexingState(ctx, id); !indexed {
		t.Fatal("document should be indexed")
	}

	if err := c.DeleteDoc(ctx, id); err == nil || err.Error() != compilatiotest.MessageIndexedDelete {
		t.Fatalf("DeleteDoc on indexed document err = %v", err)
	}
	if err := c.SetIndexingState(ctx, id, false); err != nil {
		t.Fatalf("SetIndexingState returned error: %v", err)
	}
	if err := c.DeleteDoc(ctx, id); err != nil {
		t.Fatalf("DeleteDoc returned error: %v", err)
	}
	if _, ok := fake.Doc(id); ok {
		t.Error("document still present after delete")
	}
}
