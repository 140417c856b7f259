package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/compilatio/internal/compilatio"
	"github.com/hyperjump/compilatio/internal/models"
	"github.com/hyperjump/compilatio/internal/storage"
	"github.com/hyperjump/compilatio/internal/submission"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	total, err := s.storage.CountSubmissions(ctx)
	if err != nil {
		s.logger.Error("health: count submissions failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	byStatus, err := s.storage.CountByStatus(ctx)
	if err != nil {
		s.logger.Error("health: count by status failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := map[string]interface{}{
		"status":                "ok",
		"submissions":           total,
		"submissions_by_status": byStatus,
		"compilatio_configured": s.config.Compilatio.Configured(),
		"analysis_auto_start":   s.config.Analysis.AutoStart,
	}
	if size, err := storage.DatabaseSize(s.config.Storage.DatabasePath); err == nil {
		resp["database_size_bytes"] = size
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var input models.SubmissionInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("submit request", zap.Int64("cm", input.CM), zap.Int64("userid", input.UserID), zap.String("filename", input.Filename))
	sub, err := s.submissions.Submit(r.Context(), input)
	if err != nil {
		s.respondErr(w, "submit", err)
		return
	}
	s.respondJSON(w, http.StatusCreated, sub)
}

func (s *Server) handleListSubmissions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := storage.Filter{StatusCode: q.Get("status")}
	var err error
	if filter.CM, err = queryInt(q.Get("cm")); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid cm")
		return
	}
	if filter.UserID, err = queryInt(q.Get("userid")); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid userid")
		return
	}
	offset, err := queryInt(q.Get("offset"))
	if err != nil || offset < 0 {
		s.respondError(w, http.StatusBadRequest, "invalid offset")
		return
	}
	limit, err := queryInt(q.Get("limit"))
	if err != nil || limit < 0 {
		s.respondError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	if limit == 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	subs, err := s.storage.ListSubmissions(r.Context(), filter, int(offset), int(limit))
	if err != nil {
		s.respondErr(w, "list submissions", err)
		return
	}
	if subs == nil {
		subs = []*models.Submission{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"submissions": subs})
}

func (s *Server) handleGetSubmission(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	sub, err := s.storage.GetSubmission(r.Context(), id)
	if err != nil {
		s.respondErr(w, "get submission", err)
		return
	}
	s.respondJSON(w, http.StatusOK, sub)
}

func (s *Server) handleRefreshSubmission(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	sub, err := s.submissions.Refresh(r.Context(), id)
	if err != nil {
		s.respondErr(w, "refresh submission", err)
		return
	}
	s.respondJSON(w, http.StatusOK, sub)
}

func (s *Server) handleStartSubmissionAnalysis(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	sub, err := s.submissions.StartAnalysis(r.Context(), id)
	if err != nil {
		s.respondErr(w, "start analysis", err)
		return
	}
	s.respondJSON(w, http.StatusAccepted, sub)
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	result, err := s.submissions.SyncPending(r.Context())
	if err != nil {
		s.respondErr(w, "sync", err)
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.client.GetDoc(r.Context(), chi.URLParam(r, "docID"))
	if err != nil {
		s.respondErr(w, "get document", err)
		return
	}
	s.respondJSON(w, http.StatusOK, doc)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "docID")
	s.logger.Debug("delete document request", zap.String("id", id))
	if err := s.client.DeleteDoc(r.Context(), id); err != nil {
		s.respondErr(w, "delete document", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleReportURL(w http.ResponseWriter, r *http.Request) {
	url, err := s.client.GetReportURL(r.Context(), chi.URLParam(r, "docID"))
	if err != nil {
		s.respondErr(w, "get report url", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"url": url})
}

func (s *Server) handleStartAnalysis(w http.ResponseWriter, r *http.Request) {
	if err := s.client.StartAnalysis(r.Context(), chi.URLParam(r, "docID")); err != nil {
		s.respondErr(w, "start analysis", err)
		return
	}
	s.respondJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

func (s *Server) handleGetIndexing(w http.ResponseWriter, r *http.Request) {
	indexed, err := s.client.GetIndexingState(r.Context(), chi.URLParam(r, "docID"))
	if err != nil {
		s.respondErr(w, "get indexing state", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]bool{"indexed": indexed})
}

func (s *Server) handleSetIndexing(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Indexed any `json:"indexed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	indexed, err := compilatio.ParseIndexingState(body.Indexed)
	if err != nil {
		s.respondErr(w, "set indexing state", err)
		return
	}
	if err := s.client.SetIndexingState(r.Context(), chi.URLParam(r, "docID"), indexed); err != nil {
		s.respondErr(w, "set indexing state", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]bool{"indexed": indexed})
}

func (s *Server) handleQuotas(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.client.GetQuotas())
}

func (s *Server) handleExpiration(w http.ResponseWriter, r *http.Request) {
	end, err := s.client.GetAccountExpirationDate(r.Context())
	if err != nil {
		s.respondErr(w, "get expiration date", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"expiration_date": end})
}

func (s *Server) handleNews(w http.ResponseWriter, r *http.Request) {
	news, err := s.client.GetTechnicalNews(r.Context())
	if err != nil {
		s.respondErr(w, "get technical news", err)
		return
	}
	if news == nil {
		news = []compilatio.ServiceInfo{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"news": news})
}

func (s *Server) handleMaxSize(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.client.GetAllowedFileMaxSize())
}

func (s *Server) handleFileTypes(w http.ResponseWriter, r *http.Request) {
	types, err := s.client.GetAllowedFileTypes(r.Context())
	if err != nil {
		s.respondErr(w, "get allowed file types", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"file_types": types})
}

// handleConfiguration accepts the raw configuration payload so that missing or
// mistyped fields are reported with the same messages the client uses.
func (s *Server) handleConfiguration(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	cfg, err := pluginConfiguration(body)
	if err != nil {
		s.respondErr(w, "post configuration", err)
		return
	}
	if err := s.client.PostConfiguration(r.Context(), cfg); err != nil {
		s.respondErr(w, "post configuration", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

func pluginConfiguration(body map[string]any) (compilatio.PluginConfiguration, error) {
	var cfg compilatio.PluginConfiguration
	fields := []struct {
		key  string
		name string
		dest *string
	}{
		{"php_version", "PHP version", &cfg.RuntimeVersion},
		{"moodle_version", "Moodle version", &cfg.HostVersion},
		{"compilatio_plugin_version", "Plugin version", &cfg.PluginVersion},
		{"language", "Language", &cfg.Language},
	}
	for _, f := range fields {
		v := body[f.key]
		if err := compilatio.ValidateString(v, f.name); err != nil {
			return cfg, err
		}
		*f.dest = v.(string)
	}
	freq := body["cron_frequency"]
	if err := compilatio.ValidateInt(freq, "CRON frequency"); err != nil {
		return cfg, err
	}
	n, err := freq.(json.Number).Int64()
	if err != nil {
		return cfg, &compilatio.ParamError{Name: "CRON frequency", Reason: "not an int"}
	}
	cfg.CronFrequency = int(n)
	return cfg, nil
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		s.logger.Error("encode response failed", zap.Error(err))
		status = http.StatusInternalServerError
		buf.Reset()
		buf.WriteString(`{"error":"internal error"}` + "\n")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

// respondErr maps domain errors to HTTP statuses. Service errors keep the message the
// remote service sent.
func (s *Server) respondErr(w http.ResponseWriter, op string, err error) {
	var apiErr *compilatio.APIError
	switch {
	case compilatio.IsParamError(err), errors.Is(err, compilatio.ErrInvalidIndexingState),
		errors.Is(err, submission.ErrUnsupportedType), errors.Is(err, models.ErrInvalidInput):
		s.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, submission.ErrTooLarge):
		s.respondError(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, storage.ErrNotFound):
		s.respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, submission.ErrNotUploaded):
		s.respondError(w, http.StatusConflict, err.Error())
	case errors.As(err, &apiErr):
		s.logger.Warn(op+" rejected by compilatio", zap.Int("code", apiErr.Code), zap.String("message", apiErr.Message))
		s.respondJSON(w, http.StatusBadGateway, map[string]interface{}{"error": apiErr.Message, "code": apiErr.Code})
	default:
		s.logger.Error(op+" failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		s.respondError(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}

func queryInt(v string) (int64, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.ParseInt(v, 10, 64)
}
