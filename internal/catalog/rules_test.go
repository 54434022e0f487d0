package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/JonMunkholm/viewkit/internal/validate"
	"github.com/google/go-cmp/cmp"
)

func writeRules(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadRules(t *testing.T) {
	dir := t.TempDir()
	writeRules(t, dir, "customers.yaml", "name{main}: required\nnote?: recommended\n")
	writeRules(t, dir, "unrelated.yaml", "x: required\n")

	c := New()
	c.Register(Definition{Key: "customers", Rules: validate.SpecFromMap(map[string]string{"old": "required"})})
	c.Register(Definition{Key: "orders"})

	loaded, err := c.LoadRules(dir, validate.DefaultRegistry())
	if err != nil {
		t.Fatalf("LoadRules: %v", err)
	}
	if diff := cmp.Diff([]string{"customers"}, loaded); diff != "" {
		t.Errorf("loaded mismatch (-want +got):\n%s", diff)
	}

	def, _ := c.Get("customers")
	e, err := def.Compile(validate.Options{})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if diff := cmp.Diff([]string{"name", "note"}, e.Fields()); diff != "" {
		t.Errorf("fields mismatch (-want +got):\n%s", diff)
	}
	if orders, _ := c.Get("orders"); orders.HasForm() {
		t.Error("orders gained a form without a rules file")
	}
}

func TestLoadRules_UnknownRule(t *testing.T) {
	dir := t.TempDir()
	writeRules(t, dir, "customers.yaml", "name: required|telepathy\n")

	c := New()
	c.Register(Definition{Key: "customers"})

	_, err := c.LoadRules(dir, validate.DefaultRegistry())
	if !errors.Is(err, validate.ErrUnknownRule) {
		t.Fatalf("LoadRules error = %v, want ErrUnknownRule", err)
	}
	if def, _ := c.Get("customers"); def.HasForm() {
		t.Error("failed override was applied")
	}
}

func TestLoadRules_MissingDir(t *testing.T) {
	c := New()
	c.Register(Definition{Key: "customers"})

	loaded, err := c.LoadRules(filepath.Join(t.TempDir(), "absent"), nil)
	if err != nil || len(loaded) != 0 {
		t.Errorf("LoadRules = %v, %v; want nothing loaded", loaded, err)
	}
}
