package validate

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseKey(t *testing.T) {
	tests := []struct {
		raw     string
		want    Key
		wantErr bool
	}{
		{raw: "email", want: Key{Field: "email"}},
		{raw: "email?", want: Key{Field: "email", Optional: true}},
		{raw: "street{address}", want: Key{Field: "street", Group: "address"}},
		{raw: "state?{address}", want: Key{Field: "state", Group: "address", Optional: true}},
		{raw: "state{address}?", want: Key{Field: "state", Group: "address", Optional: true}},
		{raw: " zip { address } ", want: Key{Field: "zip", Group: "address"}},
		{raw: "", wantErr: true},
		{raw: "?", wantErr: true},
		{raw: "{g}", wantErr: true},
		{raw: "a{}", wantErr: true},
		{raw: "a{g", wantErr: true},
		{raw: "a}", wantErr: true},
		{raw: "a?{g}?", wantErr: true},
		{raw: "a{g{h}}", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseKey(tt.raw)
			if tt.wantErr {
				if !errors.Is(err, ErrSetup) {
					t.Errorf("ParseKey(%q) error = %v, want ErrSetup", tt.raw, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseKey(%q) error = %v", tt.raw, err)
			}
			if got != tt.want {
				t.Errorf("ParseKey(%q) = %+v, want %+v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestKey_String(t *testing.T) {
	k := Key{Field: "state", Group: "address", Optional: true}
	if got := k.String(); got != "state?{address}" {
		t.Errorf("String = %q, want state?{address}", got)
	}
}

func TestSpecFromMap_SortsKeys(t *testing.T) {
	spec := SpecFromMap(map[string]string{"b{g}": "ruleB", "a{g}": "ruleA"})

	want := Spec{{Key: "a{g}", Rule: "ruleA"}, {Key: "b{g}", Rule: "ruleB"}}
	if diff := cmp.Diff(want, spec); diff != "" {
		t.Errorf("Spec mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadSpec(t *testing.T) {
	doc := `
name: required
email{contact}: required|email
phone?{contact}:
  - recommended
  - maxlength
state: us_state
`
	spec, err := LoadSpec(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("LoadSpec error = %v", err)
	}

	want := Spec{
		{Key: "name", Rule: "required"},
		{Key: "email{contact}", Rule: "required|email"},
		{Key: "phone?{contact}", Rule: "recommended|maxlength"},
		{Key: "state", Rule: "us_state"},
	}
	if diff := cmp.Diff(want, spec); diff != "" {
		t.Errorf("Spec mismatch (-want +got):\n%s", diff)
	}

	if _, err := Compile(spec, Options{}); err != nil {
		t.Errorf("Compile(loaded spec) error = %v", err)
	}
}

func TestLoadSpec_Errors(t *testing.T) {
	for name, doc := range map[string]string{
		"not a mapping": "- a\n- b\n",
		"nested rule":   "a:\n  b: c\n",
		"bad yaml":      "a: [\n",
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := LoadSpec(strings.NewReader(doc)); err == nil {
				t.Error("LoadSpec should fail")
			}
		})
	}

	spec, err := LoadSpec(strings.NewReader(""))
	if err != nil || len(spec) != 0 {
		t.Errorf("LoadSpec(empty) = %v, %v; want empty spec", spec, err)
	}
}
