// Package compilatiotest provides an in-memory Compilatio REST service for tests.
package compilatiotest

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// MessageAuthRequired is answered when no API key is sent.
	MessageAuthRequired = "Authentication Required"
	// MessageInvalidKey is answered when the API key is wrong.
	MessageInvalidKey = "Invalid API key"
	// MessageIndexedDelete is answered when deleting an indexed document.
	MessageIndexedDelete = "You can't remove an indexed document, please remove it from your references database before"
)

// Document is the fake's view of an uploaded document.
type Document struct {
	ID         string
	Title      string
	Filename   string
	Content    string
	UploadDate string
	Indexed    bool
	State      string
	Start      string
	End        string
	Percent    any
}

// Server is a running fake service. The zero value is not usable; call NewServer.
type Server struct {
	*httptest.Server

	mu         sync.Mutex
	apiKey     string
	extensions map[string][]string
	news       []map[string]any
	expiration string
	docs       map[string]*Document
	requests   []string
	configs    []map[string]any
}

// NewServer starts a fake accepting apiKey.
func NewServer(apiKey string) *Server {
	s := &Server{
		apiKey: apiKey,
		docs:   make(map[string]*Document),
		extensions: map[string][]string{
			"pdf":  {"application/pdf"},
			"txt":  {"text/plain"},
			"docx": {"application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
			"html": {"text/html"},
		},
		expiration: "2027-08-31T23:59:59+02:00",
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/document/{$}", s.auth(s.handleUpload))
	mux.HandleFunc("GET /api/document/{id}", s.auth(s.handleGet))
	mux.HandleFunc("PATCH /api/document/{id}", s.auth(s.handlePatch))
	mux.HandleFunc("DELETE /api/document/{id}", s.auth(s.handleDelete))
	mux.HandleFunc("GET /api/document/{id}/report-url", s.auth(s.handleReportURL))
	mux.HandleFunc("POST /api/analysis/{$}", s.auth(s.handleAnalysis))
	mux.HandleFunc("GET /api/subscription/api-key", s.auth(s.handleSubscription))
	mux.HandleFunc("POST /api/moodle-configuration/add", s.auth(s.handleConfiguration))
	mux.HandleFunc("GET /api/service-info/list", s.auth(s.handleNews))
	mux.HandleFunc("GET /public_api/file/allowed-extensions", s.handleExtensions)
	s.Server = httptest.NewServer(s.record(mux))
	return s
}

// SetAPIKey changes the key the fake accepts.
func (s *Server) SetAPIKey(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apiKey = key
}

// SetExtensions replaces the allowed extension table.
func (s *Server) SetExtensions(ext map[string][]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.extensions = ext
}

// SetNews replaces the service announcements.
func (s *Server) SetNews(news []map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.news = news
}

// SetExpiration changes the subscription end date.
func (s *Server) SetExpiration(end string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expiration = end
}

// Requests returns "METHOD path" for every request received.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

// Configurations returns the configuration payloads posted so far.
func (s *Server) Configurations() []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]map[string]any(nil), s.configs...)
}

// Doc returns a copy of a stored document.
func (s *Server) Doc(id string) (Document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[id]
	if !ok {
		return Document{}, false
	}
	return *d, true
}

// AddDocument stores a document directly and returns its id.
func (s *Server) AddDocument(filename, content string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addLocked("", filename, content)
}

// SetAnalysis forces the analysis state of a document. percent is only reported for
// finished analyses; pass nil to omit the light report.
func (s *Server) SetAnalysis(id, state string, percent any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[id]
	if !ok {
		return
	}
	d.State = state
	d.Start = "2019-04-10T09:00:00+00:00"
	if state == "finished" {
		d.End = "2019-04-10T09:05:00+00:00"
	}
	d.Percent = percent
}

func (s *Server) addLocked(title, filename, content string) string {
	sum := sha1.Sum([]byte(uuid.NewString()))
	id := hex.EncodeToString(sum[:])
	s.docs[id] = &Document{
		ID:         id,
		Title:      title,
		Filename:   filename,
		Content:    content,
		UploadDate: time.Now().UTC().Format(time.RFC3339),
	}
	return id
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, r.Method+" "+r.URL.Path)
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("X-Auth-Token")
		s.mu.Lock()
		want := s.apiKey
		s.mu.Unlock()
		switch {
		case key == "":
			writeStatus(w, http.StatusUnauthorized, MessageAuthRequired, nil)
		case key != want:
			writeStatus(w, http.StatusForbidden, MessageInvalidKey, nil)
		default:
			next(w, r)
		}
	}
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeStatus(w, http.StatusBadRequest, "Bad Request", nil)
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		writeStatus(w, http.StatusBadRequest, "Bad Request", nil)
		return
	}
	defer file.Close()
	content, err := io.ReadAll(file)
	if err != nil {
		writeStatus(w, http.StatusBadRequest, "Bad Request", nil)
		return
	}
	s.mu.Lock()
	id := s.addLocked(r.FormValue("title"), r.FormValue("filename"), string(content))
	s.mu.Unlock()
	writeStatus(w, http.StatusCreated, "Created", map[string]any{
		"document": map[string]any{"id": id},
	})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[r.PathValue("id")]
	if !ok {
		writeStatus(w, http.StatusNotFound, "Not Found", nil)
		return
	}
	doc := map[string]any{
		"id":          d.ID,
		"title":       d.Title,
		"filename":    d.Filename,
		"upload_date": d.UploadDate,
		"length":      len(d.Content),
		"words_count": len(strings.Fields(d.Content)),
		"indexed":     d.Indexed,
	}
	if d.State != "" {
		doc["analyses"] = map[string]any{
			"anasim": map[string]any{
				"state":   d.State,
				"metrics": map[string]any{"start": d.Start, "end": d.End},
			},
		}
		if d.State == "finished" && d.Percent != nil {
			doc["light_reports"] = map[string]any{
				"anasim": map[string]any{"plagiarism_percent": d.Percent},
			}
		}
	}
	writeStatus(w, http.StatusOK, "OK", map[string]any{"document": doc})
}

func (s *Server) handlePatch(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Indexed *bool `json:"indexed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Indexed == nil {
		writeStatus(w, http.StatusBadRequest, "Bad Request", nil)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[r.PathValue("id")]
	if !ok {
		writeStatus(w, http.StatusNotFound, "Not Found", nil)
		return
	}
	d.Indexed = *body.Indexed
	writeStatus(w, http.StatusOK, "OK", nil)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := r.PathValue("id")
	d, ok := s.docs[id]
	if !ok {
		writeStatus(w, http.StatusNotFound, "Not Found", nil)
		return
	}
	if d.Indexed {
		writeStatus(w, http.StatusBadRequest, MessageIndexedDelete, nil)
		return
	}
	delete(s.docs, id)
	writeStatus(w, http.StatusOK, "OK", nil)
}

func (s *Server) handleReportURL(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[r.PathValue("id")]
	if !ok {
		writeStatus(w, http.StatusNotFound, "Not Found", nil)
		return
	}
	if d.State != "finished" {
		writeStatus(w, http.StatusBadRequest, "Bad Request", nil)
		return
	}
	writeStatus(w, http.StatusOK, "OK", map[string]any{
		"url": s.URL + "/api/report/redirect/" + d.ID,
	})
}

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	var body struct {
		DocID      string `json:"doc_id"`
		RecipeName string `json:"recipe_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeStatus(w, http.StatusBadRequest, "Bad Request", nil)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[body.DocID]
	if !ok {
		writeStatus(w, http.StatusBadRequest, "Invalid document id", nil)
		return
	}
	d.State = "waiting"
	writeStatus(w, http.StatusCreated, "Created", nil)
}

func (s *Server) handleSubscription(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeStatus(w, http.StatusOK, "OK", map[string]any{
		"subscription": map[string]any{
			"validity_period": map[string]any{"end": s.expiration},
		},
	})
}

func (s *Server) handleConfiguration(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeStatus(w, http.StatusBadRequest, "Bad Request", nil)
		return
	}
	s.mu.Lock()
	s.configs = append(s.configs, body)
	s.mu.Unlock()
	writeStatus(w, http.StatusOK, "OK", nil)
}

func (s *Server) handleNews(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	infos := s.news
	if infos == nil {
		infos = []map[string]any{}
	}
	writeStatus(w, http.StatusOK, "OK", map[string]any{"service_infos": infos})
}

func (s *Server) handleExtensions(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.extensions)
}

func writeStatus(w http.ResponseWriter, code int, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	payload := map[string]any{
		"status": map[string]any{"code": code, "message": message},
	}
	if data != nil {
		payload["data"] = data
	}
	_ = json.NewEncoder(w).Encode(payload)
}
