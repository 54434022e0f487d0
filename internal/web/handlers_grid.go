package web

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/viewkit/internal/grid"
	"github.com/JonMunkholm/viewkit/internal/logging"
	"github.com/JonMunkholm/viewkit/internal/view"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/text/cases"
)

// Grid actions beyond the ones the grid links itself.
const (
	actionFilter     = "filter"
	actionCheckAll   = "check-all"
	actionUncheckAll = "uncheck-all"
	actionRefresh    = "refresh"
	actionClearSort  = "clear-sort"
)

// rowOpenClass marks rows whose detail overlay is open.
const rowOpenClass = "row-open"

// handleViewPage opens a new table view session.
func (s *Server) handleViewPage(w http.ResponseWriter, r *http.Request) {
	def, err := s.definition(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	sess := &session{id: uuid.New(), def: def}
	g, err := def.NewGrid(r.Context(), s.gridConfig(sess.id))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	sess.grid = g
	sess.events = gridEvents(sess)
	s.sessions.add(sess)

	logging.FromContext(r.Context()).Info("view opened", "view", def.Key, "session", sess.id, "rows", g.Len())
	s.writeHTML(w, r, layout(def.Label, viewPage(sess)))
}

// gridConfig is the application-wide base for every grid.
func (s *Server) gridConfig(id uuid.UUID) grid.Config {
	return grid.Config{
		PageSize:      s.cfg.Grid.PageSize,
		CheckboxField: s.cfg.Grid.CheckboxField,
		EmptyText:     "No rows to show",
		Link: func(action string, arg int) string {
			return fmt.Sprintf("/api/grid/%s/%s?arg=%d", id, action, arg)
		},
		Compare: grid.CompareOptions{
			NullsLast:  s.cfg.Grid.NullsLast,
			EmptyLast:  s.cfg.Grid.EmptyLast,
			Locale:     s.cfg.Grid.Language(),
			IgnoreCase: true,
			Numeric:    true,
		},
		Templates: s.templates,
		Bus:       s.bus,
		Logger:    slog.Default().With("session", id.String()),
	}
}

// gridEvents binds the grid actions of a session. The base bindings are
// shared with every view; the grid's own bindings override them.
func gridEvents(sess *session) view.Events {
	g := sess.grid
	base := view.Events{
		actionRefresh: func(ctx context.Context, _ string) error {
			rows, err := sess.def.Load(ctx)
			if err != nil {
				return err
			}
			g.SetRows(rows)
			return nil
		},
		actionClearSort: func(context.Context, string) error {
			g.ClearSort()
			return nil
		},
	}

	return view.Events{
		grid.ActionSort: func(_ context.Context, arg string) error {
			col, err := intArg(arg)
			if err != nil {
				return err
			}
			return g.SortByColumn(col)
		},
		grid.ActionPage: func(_ context.Context, arg string) error {
			page, err := intArg(arg)
			if err != nil {
				return err
			}
			return g.GoToPage(page)
		},
		grid.ActionToggle: func(_ context.Context, arg string) error {
			pos, err := intArg(arg)
			if err != nil {
				return err
			}
			_, err = g.ToggleCheckedAt(pos)
			return err
		},
		actionCheckAll: func(context.Context, string) error {
			return g.SetAllChecked(true)
		},
		actionUncheckAll: func(context.Context, string) error {
			return g.SetAllChecked(false)
		},
		actionFilter: func(_ context.Context, q string) error {
			g.SetFilter(textFilter(g.Columns(), q))
			return nil
		},
	}.Include(base)
}

// openRows returns handles to the rows that currently show an overlay. A
// re-render drops the overlays, so their highlight has to go with them.
func openRows(g *grid.Grid) []*grid.RowHandle {
	var open []*grid.RowHandle
	for pos := range g.PageRows() {
		if _, ok := g.ChildOverlay(pos); !ok {
			continue
		}
		if h, err := g.HandleAt(pos); err == nil {
			open = append(open, h)
		}
	}
	return open
}

func intArg(arg string) (int, error) {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("%w: argument %q is not an integer", errBadRequest, arg)
	}
	return n, nil
}

// textFilter matches records where any column's displayed text contains q,
// compared case-folded. An empty query matches everything.
func textFilter(cols []grid.Column, q string) grid.Filter {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil
	}
	fold := cases.Fold()
	needle := fold.String(q)
	return func(rec grid.Record) bool {
		for _, c := range cols {
			if c.Property == "" {
				continue
			}
			if strings.Contains(fold.String(grid.FormatValue(rec[c.Property])), needle) {
				return true
			}
		}
		return false
	}
}

// handleGridAction dispatches {action} to the session's events and returns
// the re-rendered grid.
func (s *Server) handleGridAction(w http.ResponseWriter, r *http.Request) {
	sess, unlock, err := s.session(r, false)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer unlock()

	action := chi.URLParam(r, "action")
	arg := r.FormValue("arg")
	if action == actionFilter {
		arg = r.FormValue("q")
	}

	err = rerender(sess.grid, func() error {
		return sess.events.Dispatch(r.Context(), action, arg)
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.writeHTML(w, r, sess.grid.Component())
}

// handleCreateOverlay opens the record detail beneath the row at {pos}.
func (s *Server) handleCreateOverlay(w http.ResponseWriter, r *http.Request) {
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
	if err := sess.grid.CreateChildOverlay(pos, recordDetail(sess, pos, h.Snapshot())); err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := h.Highlight(rowOpenClass); err != nil {
		s.respondError(w, r, err)
		return
	}
	s.writeHTML(w, r, sess.grid.Component())
}

// handleRemoveOverlay closes the record detail beneath the row at {pos}.
func (s *Server) handleRemoveOverlay(w http.ResponseWriter, r *http.Request) {
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
	if err := sess.grid.RemoveChildOverlay(pos); err != nil {
		s.respondError(w, r, err)
		return
	}
	if h, err := sess.grid.HandleAt(pos); err == nil {
		_ = h.Highlight("")
	}
	s.writeHTML(w, r, sess.grid.Component())
}

// handleCheckedRows exports the checked records as CSV, or as JSON when the
// client asks for it.
func (s *Server) handleCheckedRows(w http.ResponseWriter, r *http.Request) {
	sess, unlock, err := s.session(r, false)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer unlock()

	recs, err := sess.grid.CheckedRecords()
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		writeJSON(w, map[string]any{
			"view":  sess.def.Key,
			"count": len(recs),
			"rows":  recs,
		})
		return
	}

	cols := sess.grid.Columns()
	filename := fmt.Sprintf("%s_selected_%s.csv", sess.def.Key, time.Now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))

	cw := csv.NewWriter(w)
	header := make([]string, 0, len(cols))
	for _, c := range cols {
		if c.Property != "" {
			header = append(header, c.Title)
		}
	}
	// Headers are sent with the first write; later failures can only be logged.
	if err := cw.Write(header); err != nil {
		logging.FromContext(r.Context()).Warn("export checked rows", "error", err)
		return
	}
	for _, rec := range recs {
		row := make([]string, 0, len(header))
		for _, c := range cols {
			if c.Property != "" {
				row = append(row, grid.FormatValue(rec[c.Property]))
			}
		}
		if err := cw.Write(row); err != nil {
			logging.FromContext(r.Context()).Warn("export checked rows", "error", err)
			return
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		logging.FromContext(r.Context()).Warn("export checked rows", "error", err)
	}
}
