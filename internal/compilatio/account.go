package compilatio

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// newsLanguages are the locales service announcements are published in.
var newsLanguages = []string{"fr", "es", "en", "it", "de"}

const maxFileSizeMo = 20

// extensionNames maps accepted extensions to a human readable file kind.
var extensionNames = map[string]string{
	"doc":  "Microsoft Word",
	"docx": "Microsoft Word",
	"xls":  "Microsoft Excel",
	"xlsx": "Microsoft Excel",
	"ppt":  "Microsoft Powerpoint",
	"pptx": "Microsoft Powerpoint",

	"xml":   "XML File",
	"xhtml": "Web Page",
	"htm":   "Web Page",
	"html":  "Web Page",

	"csv": "Comma Separated Values File",

	"odt": "OpenDocument Text",
	"ods": "OpenDocument Sheet",
	"odp": "OpenDocument Presentation",

	"pdf": "Adobe Portable Document File",
	"rtf": "Rich Text File",
	"txt": "Plain Text File",
	"tex": "LaTeX source File",
}

// GetQuotas returns the account quotas. The REST API has no quota endpoint yet, so
// the values are fixed.
func (c *Client) GetQuotas() AccountQuotas {
	return AccountQuotas{Quotas: Quotas{
		Space:            100000000,
		Freespace:        100000000,
		UsedSpace:        0,
		Credits:          100000,
		RemainingCredits: 100000,
		UsedCredits:      0,
	}}
}

// GetAccountExpirationDate returns the end of the subscription validity period.
func (c *Client) GetAccountExpirationDate(ctx context.Context) (string, error) {
	var data struct {
		Subscription struct {
			ValidityPeriod struct {
				End string `json:"end"`
			} `json:"validity_period"`
		} `json:"subscription"`
	}
	err := c.call(ctx, request{
		op:     "get account expiration date",
		method: http.MethodGet,
		path:   "/api/subscription/api-key",
	}, http.StatusOK, &data)
	if err != nil {
		return "", err
	}
	return data.Subscription.ValidityPeriod.End, nil
}

// PostConfiguration reports the deployment versions to the service.
func (c *Client) PostConfiguration(ctx context.Context, cfg PluginConfiguration) error {
	if err := ValidateString(cfg.RuntimeVersion, "PHP version"); err != nil {
		return err
	}
	if err := ValidateString(cfg.HostVersion, "Moodle version"); err != nil {
		return err
	}
	if err := ValidateString(cfg.PluginVersion, "Plugin version"); err != nil {
		return err
	}
	if err := ValidateString(cfg.Language, "Language"); err != nil {
		return err
	}
	if err := ValidateInt(cfg.CronFrequency, "CRON frequency"); err != nil {
		return err
	}
	body, err := jsonBody(map[string]any{
		"php_version":               cfg.RuntimeVersion,
		"moodle_version":            cfg.HostVersion,
		"compilatio_plugin_version": cfg.PluginVersion,
		"language":                  cfg.Language,
		"cron_frequency":            cfg.CronFrequency,
	})
	if err != nil {
		return fmt.Errorf("post configuration: %w", err)
	}
	return c.call(ctx, request{
		op:     "post configuration",
		method: http.MethodPost,
		path:   "/api/moodle-configuration/add",
		body:   body,
	}, http.StatusOK, nil)
}

// GetTechnicalNews returns the latest service announcements.
func (c *Client) GetTechnicalNews(ctx context.Context) ([]ServiceInfo, error) {
	var data struct {
		ServiceInfos []remoteServiceInfo `json:"service_infos"`
	}
	err := c.call(ctx, request{
		op:     "get technical news",
		method: http.MethodGet,
		path:   "/api/service-info/list",
		query:  url.Values{"limit": []string{"5"}},
	}, http.StatusOK, &data)
	if err != nil {
		return nil, err
	}

	infos := make([]ServiceInfo, 0, len(data.ServiceInfos))
	for _, info := range data.ServiceInfos {
		messages := make(map[string]string, len(newsLanguages))
		for _, lang := range newsLanguages {
			messages[lang] = info.Message[lang]
		}
		infos = append(infos, ServiceInfo{
			ID:             string(info.ID),
			Type:           newsType(string(info.Level)),
			Messages:       messages,
			BeginDisplayOn: parseTime(info.Metrics.Start),
			EndDisplayOn:   parseTime(info.Metrics.End),
		})
	}
	return infos, nil
}

func newsType(level string) string {
	switch level {
	case "1":
		return "info"
	case "4":
		return "critical"
	default:
		return "warning"
	}
}

// GetAllowedFileMaxSize returns the largest accepted upload. The REST API does not
// expose it, so the service-wide 20 Mo limit is used.
func (c *Client) GetAllowedFileMaxSize() FileMaxSize {
	return FileMaxSize{
		Bits:   maxFileSizeMo * 1000000 * 8,
		Octets: maxFileSizeMo * 1000000,
		Ko:     maxFileSizeMo * 1000,
		Mo:     maxFileSizeMo,
	}
}

// GetAllowedFileTypes returns every accepted extension/MIME pair, sorted.
func (c *Client) GetAllowedFileTypes(ctx context.Context) ([]FileType, error) {
	req := request{
		op:     "get allowed file types",
		method: http.MethodGet,
		path:   "/public_api/file/allowed-extensions",
	}
	raw, code, err := c.send(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", req.op, err)
	}
	if code >= 400 {
		return nil, fmt.Errorf("%s: api returned status %d", req.op, code)
	}
	var extensions map[string][]string
	if err := json.Unmarshal(raw, &extensions); err != nil {
		return nil, fmt.Errorf("%s: decode response: %w", req.op, err)
	}
	return buildFileTypes(extensions), nil
}

func buildFileTypes(extensions map[string][]string) []FileType {
	var list []FileType
	for ext, mimes := range extensions {
		if ext == "" {
			continue
		}
		title, ok := extensionNames[ext]
		if !ok {
			title = strings.ToUpper(ext)
		}
		for _, mime := range mimes {
			if mime == "" {
				continue
			}
			list = append(list, FileType{Type: ext, Title: title, Mimetype: mime})
		}
	}
	sort.Slice(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		if a.Title != b.Title {
			return a.Title < b.Title
		}
		return a.Mimetype < b.Mimetype
	})
	return list
}

// AllowsExtension reports whether ext (with or without leading dot) is in types.
func AllowsExtension(types []FileType, ext string) bool {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, t := range types {
		if t.Type == ext {
			return true
		}
	}
	return false
}
