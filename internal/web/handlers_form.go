package web

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"slices"

	"github.com/JonMunkholm/viewkit/internal/grid"
	"github.com/JonMunkholm/viewkit/internal/logging"
	"github.com/JonMunkholm/viewkit/internal/render"
	"github.com/JonMunkholm/viewkit/internal/validate"
	"github.com/JonMunkholm/viewkit/internal/view"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// handleFormPage opens a new form session. Query parameters naming the
// view's unique key prefill the form from that record.
//
// Schema-derived rules load in the background; the page renders at once
// with the declared rules and picks up generated fields when setup settles.
func (s *Server) handleFormPage(w http.ResponseWriter, r *http.Request) {
	def, err := s.definition(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if !def.HasForm() {
		s.respondError(w, r, fmt.Errorf("%w: %q", errNoForm, def.Key))
		return
	}

	logger := logging.FromContext(r.Context()).With("view", def.Key)
	id := uuid.New()
	engine, err := def.Compile(validate.Options{
		Registry:               s.rules,
		RequireAcknowledgement: s.cfg.Validation.RequireAcknowledgement,
		OnSchemaError: func(err error) {
			logger.Warn("schema setup failed, using declared rules only", "table", def.SchemaTable, "error", err)
		},
		Bus:    s.bus,
		Logger: logger.With("session", id.String()),
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	sess := &session{
		id:     id,
		def:    def,
		engine: engine,
		loader: view.NewLoader(def.Key, s.bus),
		values: url.Values{},
	}

	if err := s.prefill(r.Context(), sess, r.URL.Query()); err != nil {
		s.respondError(w, r, err)
		return
	}

	if def.SchemaTable != "" && s.schemas != nil {
		// Setup outlives the request; it is bounded by its own timeout.
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Validation.SchemaTimeout)
		setup, err := engine.LoadSchema(ctx, s.schemas, def.SchemaTable)
		if err != nil {
			cancel()
			s.respondError(w, r, err)
			return
		}
		sess.loader.Track(context.Background(), setup)
		go func() {
			<-setup.Done()
			cancel()
		}()
	}

	s.sessions.add(sess)
	logger.Info("form opened", "session", sess.id, "fields", len(engine.Fields()))
	s.writeHTML(w, r, layout(def.Label, formPage(sess)))
}

// prefill copies the record matching every unique key in q into the form
// values. Without a complete key the form starts empty.
func (s *Server) prefill(ctx context.Context, sess *session, q url.Values) error {
	def := sess.def
	if len(def.UniqueKey) == 0 {
		return nil
	}
	for _, k := range def.UniqueKey {
		if !q.Has(k) {
			return nil
		}
	}

	rows, err := def.Load(ctx)
	if err != nil {
		return err
	}
	i := slices.IndexFunc(rows, keyMatcher(def, q.Get))
	if i < 0 {
		return fmt.Errorf("%w: no %s record matches %s", errRecordNotFound, def.Key, q.Encode())
	}

	rec := rows[i]
	for _, f := range sess.engine.Fields() {
		col := f
		if c, ok := def.RuleColumns[f]; ok {
			col = c
		}
		if v, ok := rec[col]; ok {
			sess.values.Set(f, grid.FormatValue(v))
		}
	}
	return nil
}

// handleFormBody re-renders the field list, e.g. once schema setup settled.
func (s *Server) handleFormBody(w http.ResponseWriter, r *http.Request) {
	sess, unlock, err := s.session(r, true)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer unlock()

	s.writeHTML(w, r, formBody(sess))
}

// handleValidateField validates one field and returns its feedback. A
// reformatted value replaces the input out of band.
func (s *Server) handleValidateField(w http.ResponseWriter, r *http.Request) {
	sess, unlock, err := s.session(r, true)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer unlock()

	if err := r.ParseForm(); err != nil {
		s.respondError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	name := chi.URLParam(r, "field")
	value := r.PostForm.Get(name)

	res, err := sess.engine.ValidateField(name, value, validate.FormValues(r.PostForm))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	reformatted := res != nil && res.Reformatted != "" && res.Reformatted != value
	if reformatted {
		value = res.Reformatted
	}
	sess.values.Set(name, value)

	if wantsJSON(r) && !isHTMX(r) {
		writeJSON(w, fieldResponse{Field: name, Value: value, Result: res})
		return
	}
	body := fieldFeedback(name, res, false)
	if reformatted {
		body = render.Join(body, fieldInput(sess, name, value, true))
	}
	s.writeHTML(w, r, body)
}

type fieldResponse struct {
	Field  string           `json:"field"`
	Value  string           `json:"value"`
	Result *validate.Result `json:"result"`
}

// handleResolveGroup resolves a group's indicator when focus leaves it.
func (s *Server) handleResolveGroup(w http.ResponseWriter, r *http.Request) {
	sess, unlock, err := s.session(r, true)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer unlock()

	group := chi.URLParam(r, "group")
	sev, err := sess.engine.ResolveGroup(group)
	if err != nil {
		s.respondError(w, r, fmt.Errorf("group %q: %w", group, err))
		return
	}

	if wantsJSON(r) && !isHTMX(r) {
		writeJSON(w, map[string]any{"group": group, "severity": sev})
		return
	}
	s.writeHTML(w, r, groupIndicator(group, sev, false))
}

// handleSubmit validates the whole form.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	s.validateAll(w, r, false)
}

// handleAcknowledge accepts the current warnings and validates again.
func (s *Server) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	s.validateAll(w, r, true)
}

// reportResponse is the JSON form of a validation report.
type reportResponse struct {
	Outcome  string                       `json:"outcome"`
	Severity validate.Severity            `json:"severity"`
	Fields   map[string]*validate.Result  `json:"fields"`
	Groups   map[string]validate.Severity `json:"groups"`
}

func (s *Server) validateAll(w http.ResponseWriter, r *http.Request, ack bool) {
	sess, unlock, err := s.session(r, true)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer unlock()

	if err := r.ParseForm(); err != nil {
		s.respondError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	for name, vs := range r.PostForm {
		sess.values[name] = vs
	}

	if ack {
		sess.engine.Acknowledge()
	}
	report, err := sess.engine.ValidateAll(validate.FormValues(r.PostForm))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	logging.FromContext(r.Context()).Info("form validated",
		"view", sess.def.Key,
		"session", sess.id,
		"outcome", report.Outcome.String(),
		"severity", report.Severity.String(),
		"acknowledged", ack,
	)

	if wantsJSON(r) && !isHTMX(r) {
		writeJSON(w, reportResponse{
			Outcome:  report.Outcome.String(),
			Severity: report.Severity,
			Fields:   report.Fields,
			Groups:   report.Groups,
		})
		return
	}
	s.writeHTML(w, r, reportView(sess, report))
}

// formState is the JSON snapshot of a form session.
type formState struct {
	View    string                       `json:"view"`
	State   view.State                   `json:"state"`
	Schema  string                       `json:"schema"`
	Pending int                          `json:"pending"`
	Error   string                       `json:"error,omitempty"`
	Fields  []string                     `json:"fields"`
	Groups  map[string]validate.Severity `json:"groups"`
}

// handleFormState reports setup progress and the displayed group indicators.
func (s *Server) handleFormState(w http.ResponseWriter, r *http.Request) {
	sess, unlock, err := s.session(r, true)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer unlock()

	e := sess.engine
	st := formState{
		View:    sess.def.Key,
		State:   sess.loader.State(),
		Schema:  e.SchemaState().String(),
		Pending: sess.loader.Pending(),
		Fields:  e.Fields(),
		Groups:  make(map[string]validate.Severity),
	}
	if err := sess.loader.Err(); err != nil {
		st.Error = MapError(err).Message
	}
	for _, g := range e.Groups() {
		st.Groups[g] = e.Displayed(g)
	}
	writeJSON(w, st)
}
