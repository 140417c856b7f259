package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/compilatio/internal/models"
)

func (s *Server) handlePrivacyMetadata(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"items": s.privacy.Metadata()})
}

func (s *Server) handleContextsForUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.pathID(w, r, "userID")
	if !ok {
		return
	}
	contexts, err := s.privacy.ContextsForUser(r.Context(), userID)
	if err != nil {
		s.respondErr(w, "contexts for user", err)
		return
	}
	if contexts == nil {
		contexts = []models.Context{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"contexts": contexts})
}

func (s *Server) handleUsersInContext(w http.ResponseWriter, r *http.Request) {
	c, ok := s.pathContext(w, r)
	if !ok {
		return
	}
	users, err := s.privacy.UsersInContext(r.Context(), c)
	if err != nil {
		s.respondErr(w, "users in context", err)
		return
	}
	if users == nil {
		users = []int64{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"context": c, "userids": users})
}

func (s *Server) handleExportUserData(w http.ResponseWriter, r *http.Request) {
	c, ok := s.pathContext(w, r)
	if !ok {
		return
	}
	userID, ok := s.pathID(w, r, "userID")
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := s.privacy.ExportUserData(r.Context(), userID, c, &buf); err != nil {
		s.respondErr(w, "export user data", err)
		return
	}
	if buf.Len() == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleDeleteForContext(w http.ResponseWriter, r *http.Request) {
	c, ok := s.pathContext(w, r)
	if !ok {
		return
	}
	s.logger.Info("privacy delete for context", zap.Stringer("level", c.Level), zap.Int64("instanceid", c.InstanceID))
	if err := s.privacy.DeleteForContext(r.Context(), c); err != nil {
		s.respondErr(w, "delete for context", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleDeleteForUser(w http.ResponseWriter, r *http.Request) {
	c, ok := s.pathContext(w, r)
	if !ok {
		return
	}
	userID, ok := s.pathID(w, r, "userID")
	if !ok {
		return
	}
	s.logger.Info("privacy delete for user", zap.Int64("userid", userID), zap.Int64("instanceid", c.InstanceID))
	if err := s.privacy.DeleteForUser(r.Context(), userID, c); err != nil {
		s.respondErr(w, "delete for user", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleDeleteForUsers(w http.ResponseWriter, r *http.Request) {
	c, ok := s.pathContext(w, r)
	if !ok {
		return
	}
	var body struct {
		UserIDs []int64 `json:"userids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.privacy.DeleteForUsers(r.Context(), c, body.UserIDs); err != nil {
		s.respondErr(w, "delete for users", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// pathContext reads a context from the {level}/{instanceID} route parameters. The level
// is either a name such as "module" or its numeric value.
func (s *Server) pathContext(w http.ResponseWriter, r *http.Request) (models.Context, bool) {
	raw := chi.URLParam(r, "level")
	level, err := models.ParseContextLevel(raw)
	if err != nil {
		n, convErr := strconv.Atoi(raw)
		if convErr != nil {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return models.Context{}, false
		}
		level = models.ContextLevel(n)
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "instanceID"), 10, 64)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid instanceID")
		return models.Context{}, false
	}
	return models.Context{Level: level, InstanceID: id}, true
}
