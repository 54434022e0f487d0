package web

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (c client) sendJSON(method, path string, body any) *httptest.ResponseRecorder {
	c.t.Helper()
	b, err := json.Marshal(body)
	require.NoError(c.t, err)
	req := httptest.NewRequest(method, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	c.s.Router().ServeHTTP(rec, req)
	return rec
}

const (
	acmeID   = "001A000001aBcDeIAK"
	globexID = "001A000001aBcDfIAK"
	hooliID  = "001A000001aBcDiIAK"
)

func customerKey(id string) map[string]string {
	return map[string]string{"account_id_casesafe": id}
}

func TestRows_DeleteAtPosition(t *testing.T) {
	c := client{t, newTestServer(t)}
	id := c.open("/view/anrok_transactions")
	base := "/api/grid/" + id

	rec := c.htmx(http.MethodPost, base+"/overlay/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `hx-delete="/api/grid/`+id+`/rows/1"`)

	rec = c.htmx(http.MethodDelete, base+"/rows/0", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.NotContains(t, body, "txn_0001")
	assert.Contains(t, body, "txn_0002")
	assert.Contains(t, body, "Page 1 of 2")
	// The re-render closed the overlay on the next row, and its highlight.
	assert.NotContains(t, body, "grid-child")
	assert.NotContains(t, body, rowOpenClass)

	rec = c.do(http.MethodDelete, base+"/rows/9", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "GRD003", decodeError(t, rec).Code)
}

func TestRows_UpdateAtPosition(t *testing.T) {
	c := client{t, newTestServer(t)}
	id := c.open("/view/anrok_transactions")
	base := "/api/grid/" + id

	rec := c.htmx(http.MethodPost, base+"/refresh", nil)
	voided := strings.Count(rec.Body.String(), "badge-void")

	rec = c.htmx(http.MethodPatch, base+"/rows/0", url.Values{
		"Customer name": {"Acme Holdings"},
		"Void":          {"yes"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Acme Holdings")
	assert.Equal(t, voided+1, strings.Count(rec.Body.String(), "badge-void"))

	rec = c.do(http.MethodPatch, base+"/rows/0", url.Values{"Sales amount": {"lots"}}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "REQ003", decodeError(t, rec).Code)

	rec = c.do(http.MethodPatch, base+"/rows/0", url.Values{"nope": {"x"}}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "GRD005", decodeError(t, rec).Code)
}

func TestRows_UpdateCell(t *testing.T) {
	c := client{t, newTestServer(t)}
	id := c.open("/view/sfdc_customers")
	base := "/api/grid/" + id

	rec := c.sendJSON(http.MethodPost, base+"/rows/cell", map[string]any{
		"key":    customerKey(globexID),
		"column": "billing_state",
		"value":  " OR ",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		Updated int            `json:"updated"`
		Row     map[string]any `json:"row"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Updated)
	assert.Equal(t, "OR", resp.Row["billing_state"])
	assert.Equal(t, "Globex", resp.Row["account_name"])

	rec = c.sendJSON(http.MethodPost, base+"/rows/cell", map[string]any{
		"key":    customerKey("missing"),
		"column": "billing_state",
		"value":  "OR",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "SES004", decodeError(t, rec).Code)

	rec = c.sendJSON(http.MethodPost, base+"/rows/cell", map[string]any{
		"key":    map[string]string{"account_name": "Globex"},
		"column": "billing_state",
		"value":  "OR",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "REQ003", decodeError(t, rec).Code)
}

func TestRows_BulkEdit(t *testing.T) {
	c := client{t, newTestServer(t)}
	id := c.open("/view/sfdc_customers")
	base := "/api/grid/" + id

	rec := c.sendJSON(http.MethodPost, base+"/rows/bulk", map[string]any{
		"keys":   []map[string]string{customerKey(acmeID), customerKey(hooliID)},
		"column": "type",
		"value":  "Reseller",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp["updated"])

	rec = c.htmx(http.MethodPost, base+"/filter", url.Values{"q": {"reseller"}})
	body := rec.Body.String()
	assert.Contains(t, body, "Acme Corp")
	assert.Contains(t, body, "Hooli")
	assert.NotContains(t, body, "Globex")

	// A missing key fails the whole edit.
	rec = c.sendJSON(http.MethodPost, base+"/rows/bulk", map[string]any{
		"keys":   []map[string]string{customerKey(acmeID), customerKey("missing")},
		"column": "type",
		"value":  "Churned",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = c.htmx(http.MethodPost, base+"/filter", url.Values{"q": {"churned"}})
	assert.NotContains(t, rec.Body.String(), "Acme Corp")

	rec = c.sendJSON(http.MethodPost, base+"/rows/bulk", map[string]any{"column": "type", "value": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "REQ003", decodeError(t, rec).Code)
}

func TestRows_DeleteByKey(t *testing.T) {
	c := client{t, newTestServer(t)}
	id := c.open("/view/sfdc_customers")
	base := "/api/grid/" + id

	rec := c.sendJSON(http.MethodPost, base+"/rows/delete", map[string]any{
		"keys": []map[string]string{customerKey(acmeID), customerKey(acmeID), customerKey(globexID)},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp["deleted"])

	rec = c.sendJSON(http.MethodPost, base+"/rows/delete", map[string]any{
		"keys": []map[string]string{customerKey(acmeID)},
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "SES004", decodeError(t, rec).Code)

	// Edits stay in the session; a refresh reloads the source rows.
	rec = c.htmx(http.MethodPost, base+"/refresh", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Acme Corp")
}

func TestRows_AppendAndReplace(t *testing.T) {
	c := client{t, newTestServer(t)}
	id := c.open("/view/sfdc_price_book")
	base := "/api/grid/" + id

	rec := c.sendJSON(http.MethodPost, base+"/rows", map[string]any{
		"rows": []map[string]string{
			{"product_code": "NEW-1", "product_name": "Widget", "list_price": "$1,200.50"},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var appended map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &appended))
	assert.Equal(t, 1, appended["appended"])
	assert.Equal(t, 7, appended["visible"])

	rec = c.sendJSON(http.MethodPost, base+"/rows", map[string]any{
		"rows": []map[string]string{{"list_price": "cheap"}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = c.sendJSON(http.MethodPut, base+"/rows", map[string]any{
		"key": map[string]string{"product_code": "NEW-1"},
		"row": map[string]string{"product_code": "NEW-2", "product_name": "Gadget", "list_price": "99"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var replaced struct {
		Row map[string]any `json:"row"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &replaced))
	assert.Equal(t, "Gadget", replaced.Row["product_name"])

	rec = c.sendJSON(http.MethodPut, base+"/rows", map[string]any{
		"key": map[string]string{"product_code": "NEW-1"},
		"row": map[string]string{"product_name": "Ghost"},
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "SES004", decodeError(t, rec).Code)
}
