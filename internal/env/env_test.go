package env

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func toMap(kvs []string) map[string]string {
	m := map[string]string{}
	for _, kv := range kvs {
		i := strings.IndexByte(kv, '=')
		m[kv[:i]] = kv[i+1:]
	}
	return m
}

func TestMergePrecedenceAndExpansion(t *testing.T) {
	dir := t.TempDir()
	f1 := filepath.Join(dir, "a.env")
	f2 := filepath.Join(dir, "b.env")
	if err := os.WriteFile(f1, []byte("# base\nROOT=/srv\nMODE=file1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(f2, []byte("MODE=file2\n\nBIN=${ROOT}/bin\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	e, err := Load(false, []string{f1, f2}, []string{"LEVEL=info"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	out := e.Merge([]string{"LEVEL=debug", "PORT=5011", "ARGS=--port ${PORT} $HOME"})
	m := toMap(out)

	if m["MODE"] != "file2" {
		t.Fatalf("later file should override, got %q", m["MODE"])
	}
	if m["LEVEL"] != "debug" {
		t.Fatalf("per-target should override global, got %q", m["LEVEL"])
	}
	if m["BIN"] != "/srv/bin" {
		t.Fatalf("expected expansion, got %q", m["BIN"])
	}
	if m["ARGS"] != "--port 5011 $HOME" {
		t.Fatalf("bare $ must be preserved, got %q", m["ARGS"])
	}
	for i := 1; i < len(out); i++ {
		if out[i-1] > out[i] {
			t.Fatalf("output not sorted: %v", out)
		}
	}
}

func TestLoadFromOS(t *testing.T) {
	t.Setenv("PORTWATCH_ENV_TEST", "yes")
	e, err := Load(true, nil, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if toMap(e.Merge(nil))["PORTWATCH_ENV_TEST"] != "yes" {
		t.Fatalf("OS env not included")
	}

	e, _ = Load(false, nil, nil)
	if _, ok := toMap(e.Merge(nil))["PORTWATCH_ENV_TEST"]; ok {
		t.Fatalf("OS env leaked when disabled")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(false, []string{filepath.Join(t.TempDir(), "nope.env")}, nil); err == nil {
		t.Fatalf("expected error for missing env file")
	}
}

func TestExpandEdgeCases(t *testing.T) {
	m := Var{"A": "1"}
	cases := map[string]string{
		"${A}${A}":   "11",
		"${MISSING}": "",
		"${A":        "${A",
		"plain":      "plain",
	}
	for in, want := range cases {
		if got := expand(in, m); got != want {
			t.Fatalf("expand(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSetIgnoresEmptyKey(t *testing.T) {
	e := New()
	e.Set("", "x")
	e.Set("K", "v")
	out := e.Merge([]string{"=bad", "noequals"})
	if len(out) != 1 || out[0] != "K=v" {
		t.Fatalf("unexpected merge output %v", out)
	}
}
