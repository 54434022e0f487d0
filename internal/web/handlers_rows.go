package web

// handlers_rows.go edits the records of a table view session. Edits change
// the session's grid only; the backing table is never written.
//
// Browser routes address a row by its position on the rendered page and
// return the re-rendered grid. JSON routes address rows by the view's
// unique key, which finds visible (not filtered out) rows only.

import (
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/JonMunkholm/viewkit/internal/catalog"
	"github.com/JonMunkholm/viewkit/internal/grid"
	"github.com/JonMunkholm/viewkit/internal/logging"
	"github.com/JonMunkholm/viewkit/internal/validate"
	"github.com/go-chi/chi/v5"
)

// rowKey maps each unique key column of a view to its displayed value.
type rowKey map[string]string

// keyMatcher matches records whose unique key columns display as the values
// get returns.
func keyMatcher(def catalog.Definition, get func(string) string) grid.Filter {
	return func(rec grid.Record) bool {
		for _, k := range def.UniqueKey {
			if grid.FormatValue(rec[k]) != get(k) {
				return false
			}
		}
		return true
	}
}

// lookupRow returns a handle to the visible row with key.
func lookupRow(sess *session, key rowKey) (*grid.RowHandle, error) {
	def := sess.def
	if len(def.UniqueKey) == 0 {
		return nil, fmt.Errorf("%w: view %q has no unique key", errBadRequest, def.Key)
	}
	for _, k := range def.UniqueKey {
		if _, ok := key[k]; !ok {
			return nil, fmt.Errorf("%w: key column %q missing", errBadRequest, k)
		}
	}
	h, ok := sess.grid.Lookup(keyMatcher(def, func(k string) string { return key[k] }))
	if !ok {
		return nil, fmt.Errorf("%w: no %s row matches %v", errRecordNotFound, def.Key, map[string]string(key))
	}
	return h, nil
}

// lookupRows resolves every key before anything is edited, so a missing
// row leaves the grid untouched.
func lookupRows(sess *session, keys []rowKey) ([]*grid.RowHandle, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("%w: no rows specified", errBadRequest)
	}
	handles := make([]*grid.RowHandle, 0, len(keys))
	for _, key := range keys {
		h, err := lookupRow(sess, key)
		if err != nil {
			return nil, err
		}
		handles = append(handles, h)
	}
	return handles, nil
}

// cellValue converts the text of an edited cell to the value type of its
// column. Empty text clears the cell.
func cellValue(cols []grid.Column, property, raw string) (any, error) {
	i := slices.IndexFunc(cols, func(c grid.Column) bool { return c.Property == property })
	if property == "" || i < 0 {
		return nil, fmt.Errorf("%w: %q", grid.ErrInvalidColumn, property)
	}
	col := cols[i]

	switch col.Type {
	case grid.TypeNumber, grid.TypeDate, grid.TypeBool:
		raw = validate.CleanValue(raw)
	default:
		raw = strings.TrimSpace(raw)
	}
	if raw == "" {
		return nil, nil
	}

	switch col.Type {
	case grid.TypeNumber:
		if n, _, ok := validate.ParseNumber(raw); ok {
			return n, nil
		}
	case grid.TypeDate:
		if d, ok := validate.ParseDate(raw); ok {
			return d, nil
		}
	case grid.TypeBool:
		if b, ok := validate.ParseBool(raw); ok {
			return b, nil
		}
	default:
		return raw, nil
	}
	return nil, fmt.Errorf("%w: %q is not a valid %s for %s", errBadRequest, raw, col.Type, col.Title)
}

// cellValues converts a property -> text map with cellValue.
func cellValues(cols []grid.Column, in map[string]string) (map[string]any, error) {
	if len(in) == 0 {
		return nil, fmt.Errorf("%w: no columns specified", errBadRequest)
	}
	out := make(map[string]any, len(in))
	for prop, raw := range in {
		v, err := cellValue(cols, prop, raw)
		if err != nil {
			return nil, err
		}
		out[prop] = v
	}
	return out, nil
}

// rerender runs fn and, when fn re-rendered the grid, clears the highlight
// of the rows whose overlay the re-render closed.
func rerender(g *grid.Grid, fn func() error) error {
	open := openRows(g)
	version := g.Version()
	err := fn()
	if g.Version() != version {
		for _, h := range open {
			_ = h.Highlight("")
		}
	}
	return err
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", errBadRequest, err)
	}
	return nil
}

// handleUpdateRow merges the posted form values into the row at {pos}.
func (s *Server) handleUpdateRow(w http.ResponseWriter, r *http.Request) {
	sess, unlock, err := s.session(r, false)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer unlock()

	if err := r.ParseForm(); err != nil {
		s.respondError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	pos, err := intArg(chi.URLParam(r, "pos"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	in := make(map[string]string, len(r.PostForm))
	for k := range r.PostForm {
		in[k] = r.PostForm.Get(k)
	}
	fields, err := cellValues(sess.grid.Columns(), in)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	h, err := sess.grid.HandleAt(pos)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := rerender(sess.grid, func() error { return h.Update(fields) }); err != nil {
		s.respondError(w, r, err)
		return
	}
	s.writeHTML(w, r, sess.grid.Component())
}

// handleDeleteRow removes the row at {pos}.
func (s *Server) handleDeleteRow(w http.ResponseWriter, r *http.Request) {
	sess, unlock, err := s.session(r, false)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer unlock()

	pos, err := intArg(chi.URLParam(r, "pos"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	h, err := sess.grid.HandleAt(pos)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := rerender(sess.grid, h.Remove); err != nil {
		s.respondError(w, r, err)
		return
	}

	logging.FromContext(r.Context()).Info("row deleted", "view", sess.def.Key, "session", sess.id, "pos", pos)
	s.writeHTML(w, r, sess.grid.Component())
}

// handleUpdateCell sets one column of the row with the given key.
func (s *Server) handleUpdateCell(w http.ResponseWriter, r *http.Request) {
	sess, unlock, err := s.session(r, false)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer unlock()

	var req struct {
		Key    rowKey `json:"key"`
		Column string `json:"column"`
		Value  string `json:"value"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	v, err := cellValue(sess.grid.Columns(), req.Column, req.Value)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	h, err := lookupRow(sess, req.Key)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := rerender(sess.grid, func() error { return h.Update(map[string]any{req.Column: v}) }); err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, map[string]any{"updated": 1, "row": h.Snapshot()})
}

// handleBulkEdit sets one column across several rows.
func (s *Server) handleBulkEdit(w http.ResponseWriter, r *http.Request) {
	sess, unlock, err := s.session(r, false)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer unlock()

	var req struct {
		Keys   []rowKey `json:"keys"`
		Column string   `json:"column"`
		Value  string   `json:"value"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	v, err := cellValue(sess.grid.Columns(), req.Column, req.Value)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	handles, err := lookupRows(sess, req.Keys)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	err = rerender(sess.grid, func() error {
		for _, h := range handles {
			if err := h.Update(map[string]any{req.Column: v}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	logging.FromContext(r.Context()).Info("rows edited",
		"view", sess.def.Key,
		"session", sess.id,
		"column", req.Column,
		"count", len(handles),
	)
	writeJSON(w, map[string]int{"updated": len(handles)})
}

// handleDeleteRows removes the rows with the given keys.
func (s *Server) handleDeleteRows(w http.ResponseWriter, r *http.Request) {
	sess, unlock, err := s.session(r, false)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer unlock()

	var req struct {
		Keys []rowKey `json:"keys"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	handles, err := lookupRows(sess, req.Keys)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	deleted := 0
	err = rerender(sess.grid, func() error {
		for _, h := range handles {
			// Duplicate keys resolve to one record; its later handles are no-ops.
			if !h.Valid() {
				continue
			}
			if err := h.Remove(); err != nil {
				return err
			}
			deleted++
		}
		return nil
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	logging.FromContext(r.Context()).Info("rows deleted", "view", sess.def.Key, "session", sess.id, "count", deleted)
	writeJSON(w, map[string]int{"deleted": deleted})
}

// handleReplaceRow swaps the row with the given key for a new record.
// Columns missing from the new record are empty.
func (s *Server) handleReplaceRow(w http.ResponseWriter, r *http.Request) {
	sess, unlock, err := s.session(r, false)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer unlock()

	var req struct {
		Key rowKey            `json:"key"`
		Row map[string]string `json:"row"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	fields, err := cellValues(sess.grid.Columns(), req.Row)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	h, err := lookupRow(sess, req.Key)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := rerender(sess.grid, func() error { return h.Replace(grid.Record(fields)) }); err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, map[string]any{"replaced": 1, "row": h.Snapshot()})
}

// handleAppendRows adds new records to the view.
func (s *Server) handleAppendRows(w http.ResponseWriter, r *http.Request) {
	sess, unlock, err := s.session(r, false)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer unlock()

	var req struct {
		Rows []map[string]string `json:"rows"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	if len(req.Rows) == 0 {
		s.respondError(w, r, fmt.Errorf("%w: no rows specified", errBadRequest))
		return
	}

	cols := sess.grid.Columns()
	recs := make([]grid.Record, 0, len(req.Rows))
	for _, row := range req.Rows {
		fields, err := cellValues(cols, row)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		recs = append(recs, grid.Record(fields))
	}
	_ = rerender(sess.grid, func() error {
		sess.grid.Append(recs...)
		return nil
	})

	logging.FromContext(r.Context()).Info("rows appended", "view", sess.def.Key, "session", sess.id, "count", len(recs))
	writeJSON(w, map[string]int{"appended": len(recs), "visible": sess.grid.Len()})
}
