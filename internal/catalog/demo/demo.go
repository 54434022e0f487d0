// Package demo registers the sample views served by cmd/server: Salesforce
// customers and price book entries plus Anrok tax transactions.
//
// With a database the rows come from the tables of the same name; without
// one, from built-in sample data.
package demo

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"io"
	"time"

	"github.com/JonMunkholm/viewkit/internal/catalog"
	"github.com/JonMunkholm/viewkit/internal/grid"
	"github.com/JonMunkholm/viewkit/internal/render"
	"github.com/JonMunkholm/viewkit/internal/schema"
	"github.com/JonMunkholm/viewkit/internal/store"
	"github.com/JonMunkholm/viewkit/internal/validate"
	"github.com/a-h/templ"
	"github.com/jackc/pgx/v5/pgtype"
)

//go:embed rules/*.yaml
var rulesFS embed.FS

// TemplateVoidBadge renders the Anrok void flag.
const TemplateVoidBadge = "void_badge"

// Register adds the demo definitions to c. db may be nil.
func Register(c *catalog.Catalog, db store.DBTX) {
	for _, def := range Definitions() {
		if db != nil {
			def.Source = store.NewPgStore(db, def.Key, properties(def.Columns))
		}
		c.Register(def)
	}
}

// Definitions returns the demo definitions backed by sample data.
func Definitions() []catalog.Definition {
	return []catalog.Definition{
		{
			Key:   "sfdc_customers",
			Group: "SFDC",
			Label: "Customers",
			Columns: []grid.Column{
				{Title: "Account ID", Property: "account_id_casesafe", Sortable: true},
				{Title: "Account", Property: "account_name", Sortable: true},
				{Title: "Type", Property: "type", Sortable: true},
				{Title: "Email", Property: "billing_email"},
				{Title: "State", Property: "billing_state", Sortable: true, Class: "narrow"},
				{Title: "Last Activity", Property: "last_activity", Type: grid.TypeDate, Sortable: true},
			},
			Checkbox:    true,
			UniqueKey:   []string{"account_id_casesafe"},
			Source:      store.NewMemory(sampleCustomers()),
			Rules:       mustRules("sfdc_customers"),
			SchemaTable: "sfdc_customers",
		},
		{
			Key:   "sfdc_price_book",
			Group: "SFDC",
			Label: "Price Book",
			Columns: []grid.Column{
				{Title: "Price Book", Property: "price_book_name", Sortable: true},
				{Title: "Product", Property: "product_name", Sortable: true},
				{Title: "Code", Property: "product_code", Sortable: true},
				{Title: "List Price", Property: "list_price", Type: grid.TypeNumber, Sortable: true,
					Format: func(v any, _ grid.Record) string {
						if s := grid.FormatValue(v); s != "" {
							return "$" + s
						}
						return ""
					}},
			},
			UniqueKey:   []string{"product_code"},
			Source:      store.NewMemory(samplePriceBook()),
			Rules:       mustRules("sfdc_price_book"),
			SchemaTable: "sfdc_price_book",
		},
		{
			Key:   "anrok_transactions",
			Group: "Anrok",
			Label: "Transactions",
			Columns: []grid.Column{
				{Title: "Transaction ID", Property: "Transaction ID", Sortable: true},
				{Title: "Customer", Property: "Customer name", Sortable: true},
				{Title: "Invoice Date", Property: "Invoice date", Type: grid.TypeDate, Sortable: true},
				{Title: "Sales", Property: "Sales amount", Type: grid.TypeNumber, Sortable: true},
				{Title: "Tax", Property: "Tax amount", Type: grid.TypeNumber, Sortable: true},
				{Title: "Void", Property: "Void", Type: grid.TypeBool, Template: TemplateVoidBadge},
			},
			PageSize:  5,
			Checkbox:  true,
			UniqueKey: []string{"Transaction ID"},
			Source:    store.NewMemory(sampleTransactions()),
		},
	}
}

// RegisterTemplates adds the cell templates the demo columns reference.
func RegisterTemplates(r *render.Registry) {
	r.Register(TemplateVoidBadge, func(data any) templ.Component {
		return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
			cell, _ := data.(grid.CellContext)
			void := false
			switch v := cell.Value.(type) {
			case bool:
				void = v
			case pgtype.Bool:
				void = v.Valid && v.Bool
			}
			if void {
				_, err := io.WriteString(w, `<span class="badge badge-void">Void</span>`)
				return err
			}
			return nil
		})
	})
}

func properties(cols []grid.Column) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.Property
	}
	return out
}

func mustRules(key string) validate.Spec {
	data, err := rulesFS.ReadFile("rules/" + key + ".yaml")
	if err != nil {
		panic(fmt.Sprintf("demo rules %s: %v", key, err))
	}
	spec, err := validate.LoadSpec(bytes.NewReader(data))
	if err != nil {
		panic(fmt.Sprintf("demo rules %s: %v", key, err))
	}
	return spec
}

// Schema returns the column metadata of the demo tables, used when no
// database is configured.
func Schema() schema.Static {
	text := func(name string, maxLen int, nullable bool) schema.Column {
		return schema.Column{Name: name, DataType: "character varying", MaxLength: maxLen, Nullable: nullable}
	}
	return schema.Static{
		"sfdc_customers": {
			Name: "sfdc_customers",
			Columns: []schema.Column{
				{Name: "id", DataType: "uuid", HasDefault: true},
				text("account_id_casesafe", 18, false),
				text("account_name", 80, false),
				text("type", 40, true),
				text("billing_email", 120, true),
				text("billing_phone", 40, true),
				{Name: "billing_state", DataType: "character", MaxLength: 2, Nullable: true},
				text("billing_postal", 10, true),
				{Name: "last_activity", DataType: "date", Nullable: true},
				{Name: "created_at", DataType: "timestamp with time zone", HasDefault: true},
			},
		},
		"sfdc_price_book": {
			Name: "sfdc_price_book",
			Columns: []schema.Column{
				{Name: "id", DataType: "uuid", HasDefault: true},
				text("price_book_name", 80, true),
				text("product_name", 120, false),
				text("product_code", 20, false),
				text("product_id_casesafe", 18, true),
				{Name: "list_price", DataType: "numeric", Nullable: true},
			},
		},
		"anrok_transactions": {
			Name: "anrok_transactions",
			Columns: []schema.Column{
				text("Transaction ID", 64, false),
				text("Customer name", 120, true),
				{Name: "Invoice date", DataType: "date", Nullable: true},
				{Name: "Sales amount", DataType: "numeric", Nullable: true},
				{Name: "Tax amount", DataType: "numeric", Nullable: true},
				{Name: "Void", DataType: "boolean", Nullable: true},
			},
		},
	}
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func sampleCustomers() []grid.Record {
	return []grid.Record{
		{"account_id_casesafe": "001A000001aBcDeIAK", "account_name": "Acme Corp", "type": "Customer", "billing_email": "ap@acme.example", "billing_state": "CA", "last_activity": day("2025-03-14")},
		{"account_id_casesafe": "001A000001aBcDfIAK", "account_name": "Globex", "type": "Prospect", "billing_email": "billing@globex.example", "billing_state": "TX", "last_activity": day("2025-01-02")},
		{"account_id_casesafe": "001A000001aBcDgIAK", "account_name": "Initech", "type": "Customer", "billing_email": "", "billing_state": "NY", "last_activity": nil},
		{"account_id_casesafe": "001A000001aBcDhIAK", "account_name": "Umbrella", "type": "Partner", "billing_email": "finance@umbrella.example", "billing_state": "WA", "last_activity": day("2024-11-30")},
		{"account_id_casesafe": "001A000001aBcDiIAK", "account_name": "Hooli", "type": "Customer", "billing_email": "ar@hooli.example", "billing_state": "CA", "last_activity": day("2025-02-20")},
		{"account_id_casesafe": "001A000001aBcDjIAK", "account_name": "Stark Industries", "type": "Customer", "billing_email": "pay@stark.example", "billing_state": "NY", "last_activity": day("2025-03-01")},
		{"account_id_casesafe": "001A000001aBcDkIAK", "account_name": "Wayne Enterprises", "type": "Prospect", "billing_email": "", "billing_state": "NJ", "last_activity": nil},
		{"account_id_casesafe": "001A000001aBcDlIAK", "account_name": "Soylent", "type": "", "billing_email": "ops@soylent.example", "billing_state": "OR", "last_activity": day("2024-08-09")},
		{"account_id_casesafe": "001A000001aBcDmIAK", "account_name": "Vandelay Industries", "type": "Customer", "billing_email": "art@vandelay.example", "billing_state": "NY", "last_activity": day("2025-03-10")},
		{"account_id_casesafe": "001A000001aBcDnIAK", "account_name": "Cyberdyne", "type": "Partner", "billing_email": "it@cyberdyne.example", "billing_state": "CA", "last_activity": day("2024-12-24")},
		{"account_id_casesafe": "001A000001aBcDoIAK", "account_name": "Tyrell", "type": "Customer", "billing_email": "ap@tyrell.example", "billing_state": "CO", "last_activity": day("2025-01-18")},
		{"account_id_casesafe": "001A000001aBcDpIAK", "account_name": "Massive Dynamic", "type": "Prospect", "billing_email": "", "billing_state": "MA", "last_activity": nil},
	}
}

func samplePriceBook() []grid.Record {
	return []grid.Record{
		{"price_book_name": "Standard", "product_name": "Platform License", "product_code": "PLT-100", "list_price": 12000.0},
		{"price_book_name": "Standard", "product_name": "Support Plan", "product_code": "SUP-200", "list_price": 2400.0},
		{"price_book_name": "Standard", "product_name": "Onboarding", "product_code": "SRV-300", "list_price": 5000.0},
		{"price_book_name": "Partner", "product_name": "Platform License", "product_code": "PLT-100-P", "list_price": 9600.0},
		{"price_book_name": "Partner", "product_name": "Extra Seats", "product_code": "SEAT-10", "list_price": 49.99},
		{"price_book_name": "", "product_name": "Legacy Add-on", "product_code": "LEG-001", "list_price": nil},
	}
}

func sampleTransactions() []grid.Record {
	return []grid.Record{
		{"Transaction ID": "txn_0001", "Customer name": "Acme Corp", "Invoice date": day("2025-01-05"), "Sales amount": 12000.0, "Tax amount": 1050.0, "Void": false},
		{"Transaction ID": "txn_0002", "Customer name": "Globex", "Invoice date": day("2025-01-09"), "Sales amount": 2400.0, "Tax amount": 198.0, "Void": false},
		{"Transaction ID": "txn_0003", "Customer name": "Initech", "Invoice date": day("2025-01-12"), "Sales amount": 5000.0, "Tax amount": 443.75, "Void": true},
		{"Transaction ID": "txn_0004", "Customer name": "Hooli", "Invoice date": day("2025-02-01"), "Sales amount": 9600.0, "Tax amount": 0.0, "Void": false},
		{"Transaction ID": "txn_0005", "Customer name": "Umbrella", "Invoice date": day("2025-02-03"), "Sales amount": 499.9, "Tax amount": 50.61, "Void": false},
		{"Transaction ID": "txn_0006", "Customer name": "Stark Industries", "Invoice date": day("2025-02-14"), "Sales amount": 24000.0, "Tax amount": 2130.0, "Void": false},
		{"Transaction ID": "txn_0007", "Customer name": "Cyberdyne", "Invoice date": day("2025-02-28"), "Sales amount": 7200.0, "Tax amount": 0.0, "Void": true},
		{"Transaction ID": "txn_0008", "Customer name": "Tyrell", "Invoice date": day("2025-03-03"), "Sales amount": 3100.0, "Tax amount": 89.9, "Void": false},
	}
}
