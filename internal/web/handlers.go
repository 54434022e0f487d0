package web

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/JonMunkholm/viewkit/internal/catalog"
	"github.com/JonMunkholm/viewkit/internal/logging"
	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"
)

// handleDashboard renders the list of registered views.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	s.writeHTML(w, r, layout("Views", dashboard(s.catalog)))
}

// viewSummary is the JSON form of a catalog definition.
type viewSummary struct {
	Key         string   `json:"key"`
	Group       string   `json:"group"`
	Label       string   `json:"label"`
	Columns     []string `json:"columns"`
	PageSize    int      `json:"page_size,omitempty"`
	Checkboxes  bool     `json:"checkboxes"`
	HasForm     bool     `json:"has_form"`
	SchemaTable string   `json:"schema_table,omitempty"`
}

// handleListViews returns all views ordered by group.
func (s *Server) handleListViews(w http.ResponseWriter, r *http.Request) {
	defs := s.catalog.All()
	out := make([]viewSummary, len(defs))
	for i, def := range defs {
		cols := make([]string, len(def.Columns))
		for j, c := range def.Columns {
			cols[j] = c.Title
		}
		out[i] = viewSummary{
			Key:         def.Key,
			Group:       def.Group,
			Label:       def.Label,
			Columns:     cols,
			PageSize:    def.PageSize,
			Checkboxes:  def.Checkbox,
			HasForm:     def.HasForm(),
			SchemaTable: def.SchemaTable,
		}
	}
	writeJSON(w, out)
}

// handleCloseSession drops a view or form session.
func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	s.sessions.remove(chi.URLParam(r, "sessionID"))
	w.WriteHeader(http.StatusNoContent)
}

// definition looks up the {viewKey} URL parameter.
func (s *Server) definition(r *http.Request) (catalog.Definition, error) {
	key := chi.URLParam(r, "viewKey")
	def, ok := s.catalog.Get(key)
	if !ok {
		return catalog.Definition{}, fmt.Errorf("%w: %q", errViewNotFound, key)
	}
	return def, nil
}

// session looks up the {sessionID} URL parameter and locks the session.
// The caller must call the returned unlock function.
func (s *Server) session(r *http.Request, form bool) (*session, func(), error) {
	sess, err := s.sessions.get(chi.URLParam(r, "sessionID"))
	if err != nil {
		return nil, nil, err
	}
	// A grid session ID used on a form route, or the reverse, is not found.
	if (form && sess.engine == nil) || (!form && sess.grid == nil) {
		return nil, nil, errSessionNotFound
	}
	sess.mu.Lock()
	logging.FromContext(r.Context()).Debug("session", "id", sess.id, "view", sess.def.Key)
	return sess, sess.mu.Unlock, nil
}

// writeHTML renders c fully before writing, so a render failure can still
// become an error response.
func (s *Server) writeHTML(w http.ResponseWriter, r *http.Request, c templ.Component) {
	var buf bytes.Buffer
	if err := c.Render(r.Context(), &buf); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := buf.WriteTo(w); err != nil {
		logging.FromContext(r.Context()).Warn("write response", "error", err)
	}
}
