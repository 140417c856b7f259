package compilatio

import (
	"context"
	"testing"
	"time"
)

func TestGetAllowedFileTypes(t *testing.T) {
	c, fake := newTestClient(t, "test-key")
	fake.SetExtensions(map[string][]string{
		"txt":  {"text/plain"},
		"doc":  {"application/msword", "application/vnd.ms-office"},
		"abc":  {"application/x-abc"},
		"":     {"ignored/empty"},
		"html": {""},
	})

	types, err := c.GetAllowedFileTypes(context.Background())
	if err != nil {
		t.Fatalf("GetAllowedFileTypes returned error: %v", err)
	}
	want := []FileType{
		{Type: "abc", Title: "ABC", Mimetype: "application/x-abc"},
		{Type: "doc", Title: "Microsoft Word", Mimetype: "application/msword"},
		{Type: "doc", Title: "Microsoft Word", Mimetype: "application/vnd.ms-office"},
		{Type: "txt", Title: "Plain Text File", Mimetype: "text/plain"},
	}
	if len(types) != len(want) {
		t.Fatalf("got %d types, want %d: %+v", len(types), len(want), types)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("types[%d] = %+v, want %+v", i, types[i], want[i])
		}
	}
	for _, ft := range types {
		if ft.Type == "" || ft.Title == "" || ft.Mimetype == "" {
			t.Errorf("incomplete entry %+v", ft)
		}
	}

	if !AllowsExtension(types, ".TXT") {
		t.Error("expected .TXT to be allowed")
	}
	if AllowsExtension(types, "exe") {
		t.Error("exe should not be allowed")
	}
}

func TestGetAllowedFileTypes_NoAuthNeeded(t *testing.T) {
	c, _ := newTestClient(t, "")
	types, err := c.GetAllowedFileTypes(context.Background())
	if err != nil {
		t.Fatalf("GetAllowedFileTypes returned error: %v", err)
	}
	if len(types) == 0 {
		t.Fatal("expected default extensions")
	}
}

func TestGetAccountExpirationDate(t *testing.T) {
	c, fake := newTestClient(t, "test-key")
	const end = "2030-01-31T00:00:00+00:00"
	fake.SetExpiration(end)

	got, err := c.GetAccountExpirationDate(context.Background())
	if err != nil {
		t.Fatalf("GetAccountExpirationDate returned error: %v", err)
	}
	if got != end {
		t.Errorf("expiration = %q, want %q", got, end)
	}
}

func TestPostConfiguration(t *testing.T) {
	c, fake := newTestClient(t, "test-key")
	ctx := context.Background()

	cfg := PluginConfiguration{
		RuntimeVersion: "go1.24",
		HostVersion:    "4.1",
		PluginVersion:  "2019071000",
		Language:       "en",
		CronFrequency:  15,
	}
	if err := c.PostConfiguration(ctx, cfg); err != nil {
		t.Fatalf("PostConfiguration returned error: %v", err)
	}
	posted := fake.Configurations()
	if len(posted) != 1 {
		t.Fatalf("got %d configurations, want 1", len(posted))
	}
	if posted[0]["moodle_version"] != "4.1" || posted[0]["cron_frequency"] != float64(15) {
		t.Errorf("payload = %v", posted[0])
	}

	tests := []struct {
		mutate func(*PluginConfiguration)
		want   string
	}{
		{func(p *PluginConfiguration) { p.RuntimeVersion = "" }, "Invalid parameter : 'PHP version' is empty"},
		{func(p *PluginConfiguration) { p.HostVersion = "" }, "Invalid parameter : 'Moodle version' is empty"},
		{func(p *PluginConfiguration) { p.PluginVersion = "" }, "Invalid parameter : 'Plugin version' is empty"},
		{func(p *PluginConfiguration) { p.Language = "" }, "Invalid parameter : 'Language' is empty"},
		{func(p *PluginConfiguration) { p.CronFrequency = 0 }, "Invalid parameter : 'CRON frequency' is empty"},
	}
	for _, tt := range tests {
		bad := cfg
		tt.mutate(&bad)
		err := c.PostConfiguration(ctx, bad)
		if err == nil || err.Error() != tt.want {
			t.Errorf("err = %v, want %q", err, tt.want)
		}
	}
	if got := len(fake.Configurations()); got != 1 {
		t.Errorf("invalid configurations reached the service: %d", got)
	}
}

func TestGetTechnicalNews(t *testing.T) {
	c, fake := newTestClient(t, "test-key")
	fake.SetNews([]map[string]any{
		{
			"id":      7,
			"level":   "1",
			"message": map[string]string{"fr": "Bonjour", "en": "Hello"},
			"metrics": map[string]string{"start": "2019-04-10T09:00:00+00:00", "end": "2019-04-11 10:00:00"},
		},
		{"id": "8", "level": 4},
		{"id": "9", "level": "2"},
	})

	news, err := c.GetTechnicalNews(context.Background())
	if err != nil {
		t.Fatalf("GetTechnicalNews returned error: %v", err)
	}
	if len(news) != 3 {
		t.Fatalf("got %d news, want 3", len(news))
	}
	if news[0].ID != "7" || news[0].Type != "info" {
		t.Errorf("news[0] = %+v", news[0])
	}
	if news[0].Message("en") != "Hello" || news[0].Message("de") != "" {
		t.Errorf("messages = %v", news[0].Messages)
	}
	if len(news[0].Messages) != len(newsLanguages) {
		t.Errorf("expected one entry per language, got %v", news[0].Messages)
	}
	if !news[0].BeginDisplayOn.Equal(time.Date(2019, 4, 10, 9, 0, 0, 0, time.UTC)) {
		t.Errorf("begin = %v", news[0].BeginDisplayOn)
	}
	if news[0].EndDisplayOn.IsZero() {
		t.Error("expected end display date")
	}
	if news[1].Type != "critical" || news[2].Type != "warning" {
		t.Errorf("types = %q, %q", news[1].Type, news[2].Type)
	}
	for _, r := range fake.Requests() {
		if r == "GET /api/service-info/list" {
			return
		}
	}
	t.Error("news endpoint not requested")
}

func TestStaticAccountValues(t *testing.T) {
	c, err := NewClient("k", DefaultBaseURL)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	size := c.GetAllowedFileMaxSize()
	if size.Mo != 20 || size.Ko != 20000 || size.Octets != 20000000 || size.Bits != 160000000 {
		t.Errorf("max size = %+v", size)
	}
	q := c.GetQuotas().Quotas
	if q.Space != 100000000 || q.Credits != 100000 || q.UsedCredits != 0 {
		t.Errorf("quotas = %+v", q)
	}
}
