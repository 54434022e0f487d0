package web

// pages.go holds the HTML components of the web UI. Full pages wrap their
// body in layout; everything else is a fragment swapped in by HTMX.

import (
	"context"
	"fmt"
	"io"
	"net/url"

	"github.com/JonMunkholm/viewkit/internal/catalog"
	"github.com/JonMunkholm/viewkit/internal/grid"
	"github.com/JonMunkholm/viewkit/internal/render"
	"github.com/JonMunkholm/viewkit/internal/validate"
	"github.com/JonMunkholm/viewkit/internal/view"
	"github.com/a-h/templ"
)

const htmxSrc = "https://unpkg.com/htmx.org@2.0.4"

// htmxConfig makes HTMX swap error responses so alerts reach the page.
const htmxConfig = `{"responseHandling":[{"code":"204","swap":false},{"code":"...","swap":true}]}`

// out remembers the first write error so markup can be written without
// checking every call.
type out struct {
	w   io.Writer
	err error
}

func (o *out) print(s string) {
	if o.err == nil {
		_, o.err = io.WriteString(o.w, s)
	}
}

func (o *out) printf(format string, args ...any) {
	if o.err == nil {
		_, o.err = fmt.Fprintf(o.w, format, args...)
	}
}

func (o *out) component(ctx context.Context, c templ.Component) {
	if o.err == nil && c != nil {
		o.err = c.Render(ctx, o.w)
	}
}

func esc(s string) string { return templ.EscapeString(s) }

func layout(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		o := &out{w: w}
		o.print(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		o.printf(`<title>%s</title>`, esc(title))
		o.printf(`<meta name="htmx-config" content='%s'>`, htmxConfig)
		o.print(`<link rel="stylesheet" href="/static/app.css">`)
		o.printf(`<script src="%s"></script>`, htmxSrc)
		o.print(`<script src="/static/app.js" defer></script>`)
		o.print(`</head><body>`)
		o.component(ctx, body)
		o.print(`</body></html>`)
		return o.err
	})
}

func header(crumbs ...string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		o := &out{w: w}
		o.print(`<header class="topbar"><a href="/">Views</a>`)
		for _, c := range crumbs {
			o.printf(` <span class="sep">/</span> %s`, esc(c))
		}
		o.print(`</header><div id="alerts" class="alerts"></div>`)
		return o.err
	})
}

func dashboard(c *catalog.Catalog) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		o := &out{w: w}
		o.component(ctx, header())
		o.print(`<main class="dashboard">`)
		if c.Count() == 0 {
			o.print(`<p class="empty">No views registered.</p>`)
		}
		for _, group := range c.Groups() {
			o.printf(`<section class="view-group"><h2>%s</h2><ul>`, esc(group))
			for _, def := range c.ByGroup(group) {
				o.printf(`<li><a href="/view/%s">%s</a>`, url.PathEscape(def.Key), esc(def.Label))
				if def.HasForm() {
					o.printf(` <a class="form-link" href="/form/%s">New entry</a>`, url.PathEscape(def.Key))
				}
				o.print(`</li>`)
			}
			o.print(`</ul></section>`)
		}
		o.print(`</main>`)
		return o.err
	})
}

// viewPage is the table view with its toolbar. Toolbar actions post to the
// session and replace the grid.
func viewPage(sess *session) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		o := &out{w: w}
		base := "/api/grid/" + sess.id.String()
		target := fmt.Sprintf(` hx-target="#grid-%s" hx-swap="outerHTML"`, esc(sess.def.Key))

		o.component(ctx, header(sess.def.Group, sess.def.Label))
		o.printf(`<main class="view" data-overlay-url="%s/overlay/">`, base)
		o.print(`<div class="toolbar">`)
		o.printf(`<input type="search" name="q" placeholder="Filter rows" hx-post="%s/%s" hx-trigger="input changed delay:300ms, search"%s>`,
			base, actionFilter, target)
		o.printf(`<button hx-post="%s/%s"%s>Clear sort</button>`, base, actionClearSort, target)
		o.printf(`<button hx-post="%s/%s"%s>Reload</button>`, base, actionRefresh, target)
		if sess.grid.CheckboxMode() {
			o.printf(`<button hx-post="%s/%s"%s>Select all</button>`, base, actionCheckAll, target)
			o.printf(`<button hx-post="%s/%s"%s>Select none</button>`, base, actionUncheckAll, target)
			o.printf(`<a class="button" href="%s/checked">Export selected</a>`, base)
		}
		if sess.def.HasForm() {
			o.printf(`<a class="button" href="/form/%s">New entry</a>`, url.PathEscape(sess.def.Key))
		}
		o.print(`</div>`)
		o.component(ctx, sess.grid.Component())
		o.print(`</main>`)
		return o.err
	})
}

// recordDetail is the child overlay at page position pos listing every
// column of a record, with an edit link when the view has a form and a
// unique key, and a button deleting the row from the view.
func recordDetail(sess *session, pos int, rec grid.Record) templ.Component {
	def := sess.def
	items := make([]templ.Component, 0, len(def.Columns)+2)
	items = append(items, render.Safe(`<dl class="record-detail">`))
	for _, c := range def.Columns {
		if c.Property == "" {
			continue
		}
		items = append(items,
			render.Safe(`<dt>`), render.Text(c.Title), render.Safe(`</dt><dd>`),
			render.Text(grid.FormatValue(rec[c.Property])), render.Safe(`</dd>`))
	}
	items = append(items, render.Safe(`</dl>`))

	if def.HasForm() && len(def.UniqueKey) > 0 {
		q := url.Values{}
		for _, k := range def.UniqueKey {
			q.Set(k, grid.FormatValue(rec[k]))
		}
		href := "/form/" + url.PathEscape(def.Key) + "?" + q.Encode()
		items = append(items, render.Safe(fmt.Sprintf(`<a class="button" href="%s">Edit</a>`, esc(href))))
	}
	items = append(items, render.Safe(fmt.Sprintf(
		`<button type="button" class="danger" hx-delete="/api/grid/%s/rows/%d" hx-target="#grid-%s" hx-swap="outerHTML" hx-confirm="Delete this row from the view?">Delete row</button>`,
		sess.id, pos, esc(def.Key))))
	return render.Join(items...)
}

func formPage(sess *session) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		o := &out{w: w}
		base := "/api/form/" + sess.id.String()

		o.component(ctx, header(sess.def.Group, sess.def.Label, "Form"))
		o.printf(`<main class="form"><form id="form-%s" hx-post="%s/submit" hx-target="#form-result" hx-swap="innerHTML">`,
			sess.id, base)
		o.component(ctx, formBody(sess))
		o.print(`<div class="actions"><button type="submit">Validate</button></div>`)
		o.print(`<div id="form-result" class="form-result"></div>`)
		o.print(`</form></main>`)
		return o.err
	})
}

// formBody renders the fields grouped by indicator. While schema setup is
// pending it polls itself so generated fields appear once ready.
func formBody(sess *session) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		o := &out{w: w}
		e := sess.engine
		base := "/api/form/" + sess.id.String()

		o.print(`<div id="form-body"`)
		switch sess.loader.State() {
		case view.StateLoading:
			o.printf(` class="loading" hx-get="%s/body" hx-trigger="load delay:500ms" hx-swap="outerHTML"`, base)
		case view.StateError:
			o.print(` class="degraded"`)
		}
		o.print(`>`)
		if sess.loader.State() == view.StateError {
			o.print(`<p class="notice">Table metadata is unavailable; only the built-in checks apply.</p>`)
		}

		for _, g := range e.Groups() {
			o.printf(`<fieldset class="group" data-group="%s" hx-post="%s/group/%s" hx-trigger="groupleave" hx-target="#group-%s-status" hx-swap="outerHTML">`,
				esc(g), base, url.PathEscape(g), esc(g))
			o.printf(`<legend>%s `, esc(g))
			o.component(ctx, groupIndicator(g, e.Displayed(g), false))
			o.print(`</legend>`)
			for _, f := range e.Members(g) {
				o.component(ctx, fieldRow(sess, f))
			}
			o.print(`</fieldset>`)
		}

		var loose []string
		for _, f := range e.Fields() {
			if e.GroupOf(f) == "" {
				loose = append(loose, f)
			}
		}
		if len(loose) > 0 {
			o.print(`<fieldset class="ungrouped"><legend>Other</legend>`)
			for _, f := range loose {
				o.component(ctx, fieldRow(sess, f))
			}
			o.print(`</fieldset>`)
		}
		o.print(`</div>`)
		return o.err
	})
}

func fieldRow(sess *session, name string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		o := &out{w: w}
		class := "field"
		if sess.engine.Generated(name) {
			class += " generated"
		}
		o.printf(`<div class="%s"><label for="f-%s">%s</label>`, class, esc(name), esc(name))
		o.component(ctx, fieldInput(sess, name, sess.values.Get(name), false))
		if n, ok := sess.engine.MaxLength(name); ok {
			o.printf(`<small class="hint">Up to %d characters</small>`, n)
		}
		o.component(ctx, fieldFeedback(name, nil, false))
		o.print(`</div>`)
		return o.err
	})
}

// fieldInput is the input for one field. It validates on change and swaps
// the field's feedback; oob re-renders it after a reformat.
func fieldInput(sess *session, name, value string, oob bool) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		o := &out{w: w}
		o.printf(`<input id="f-%s" name="%s" value="%s" hx-post="/api/form/%s/field/%s" hx-trigger="change" hx-target="#fb-%s" hx-swap="outerHTML"`,
			esc(name), esc(name), esc(value), sess.id, url.PathEscape(name), esc(name))
		if oob {
			o.print(` hx-swap-oob="true"`)
		}
		o.print(`>`)
		return o.err
	})
}

// fieldFeedback shows a field's last result. oob marks it for an
// out-of-band swap by id.
func fieldFeedback(name string, res *validate.Result, oob bool) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		o := &out{w: w}
		sev := validate.SeverityNone
		help := ""
		if res != nil {
			sev, help = res.Severity, res.Help
		}
		o.printf(`<div id="fb-%s" class="feedback sev-%s"`, esc(name), sev)
		if oob {
			o.print(` hx-swap-oob="true"`)
		}
		o.printf(`>%s</div>`, esc(help))
		return o.err
	})
}

var severityLabels = map[validate.Severity]string{
	validate.SeverityNone:    "",
	validate.SeveritySuccess: "OK",
	validate.SeverityWarning: "Check",
	validate.SeverityError:   "Fix",
}

func groupIndicator(group string, sev validate.Severity, oob bool) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		o := &out{w: w}
		o.printf(`<span id="group-%s-status" class="indicator sev-%s"`, esc(group), sev)
		if oob {
			o.print(` hx-swap-oob="true"`)
		}
		o.printf(`>%s</span>`, severityLabels[sev])
		return o.err
	})
}

var outcomeText = map[validate.Outcome]string{
	validate.Valid:                "All checks passed.",
	validate.Invalid:              "Some fields need to be fixed.",
	validate.NeedsAcknowledgement: "Some fields have warnings. Review them or save anyway.",
}

// reportView renders a full validation pass: the verdict in place, plus
// out-of-band updates for every indicator and field feedback.
func reportView(sess *session, report *validate.Report) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		o := &out{w: w}
		o.printf(`<div class="report outcome-%s">%s`, report.Outcome, outcomeText[report.Outcome])
		if report.Outcome == validate.NeedsAcknowledgement {
			o.printf(`<button type="button" hx-post="/api/form/%s/ack" hx-include="#form-%s" hx-target="#form-result" hx-swap="innerHTML">Save anyway</button>`,
				sess.id, sess.id)
		}
		o.print(`</div>`)

		for _, g := range sess.engine.Groups() {
			o.component(ctx, groupIndicator(g, report.Groups[g], true))
		}
		for _, f := range sess.engine.Fields() {
			o.component(ctx, fieldFeedback(f, report.Fields[f], true))
		}
		return o.err
	})
}

func errorAlert(msg UserMessage) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		o := &out{w: w}
		o.printf(`<div class="alert alert-error" role="alert"><strong>%s</strong>`, esc(msg.Message))
		if msg.Action != "" {
			o.printf(` <span class="alert-action">%s</span>`, esc(msg.Action))
		}
		o.printf(` <code>%s</code></div>`, esc(msg.Code))
		return o.err
	})
}
