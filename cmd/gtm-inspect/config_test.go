package main

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/chromedp/datalayer"
)

func TestParseFlags(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	configFile := filepath.Join(dir, "inspect.yaml")
	if err := os.WriteFile(configFile, []byte(`
url: https://example.com/
container: GTM-FILE
timeout: 5s
vars: [page_type, user.id]
push:
  event: from_file
  n: 1
format: yaml
`), 0o644); err != nil {
		t.Fatal(err)
	}
	emptyFile := filepath.Join(dir, "empty.yaml")
	if err := os.WriteFile(emptyFile, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		args []string
		want *Config
	}{
		{
			"Defaults",
			[]string{"-url", "https://example.com/"},
			&Config{URL: "https://example.com/", Wait: "gtm.load", Timeout: datalayer.DefaultPollingTimeout, Format: FormatText},
		},
		{
			"Flags",
			[]string{"-serve", "testdata", "-url", "index.html", "-wait", "", "-timeout", "2s", "-var", " a, b.c,,", "-push", `{"event":"x"}`, "-format", "json", "-v"},
			&Config{
				URL: "index.html", Serve: "testdata", Timeout: 2 * time.Second,
				Vars: []string{"a", "b.c"}, Push: datalayer.Message{"event": "x"},
				Format: FormatJSON, Verbose: true,
			},
		},
		{
			"File",
			[]string{"-config", configFile},
			&Config{
				URL: "https://example.com/", Container: "GTM-FILE", Wait: "gtm.load", Timeout: 5 * time.Second,
				Vars: []string{"page_type", "user.id"}, Push: datalayer.Message{"event": "from_file", "n": 1},
				Format: FormatYAML,
			},
		},
		{
			"FlagsOverrideFile",
			[]string{"-format", "text", "-config", configFile, "-container", "GTM-FLAG", "-var", "x"},
			&Config{
				URL: "https://example.com/", Container: "GTM-FLAG", Wait: "gtm.load", Timeout: 5 * time.Second,
				Vars: []string{"x"}, Push: datalayer.Message{"event": "from_file", "n": 1},
				Format: FormatText,
			},
		},
		{
			"EmptyFile",
			[]string{"-config", emptyFile, "-url", "https://example.com/"},
			&Config{URL: "https://example.com/", Wait: "gtm.load", Timeout: datalayer.DefaultPollingTimeout, Format: FormatText},
		},
		{
			"Remote",
			[]string{"-remote", "wss://browser:9222/devtools/browser/1", "-insecure", "-url", "https://example.com/"},
			&Config{
				URL: "https://example.com/", Wait: "gtm.load", Timeout: datalayer.DefaultPollingTimeout,
				Remote: "wss://browser:9222/devtools/browser/1", Insecure: true, Format: FormatText,
			},
		},
	}
	for _, test := range tests {
		cfg, err := parseFlags(test.args)
		if err != nil {
			t.Errorf("%s: %v", test.name, err)
			continue
		}
		if !reflect.DeepEqual(cfg, test.want) {
			t.Errorf("%s: want %+v, got %+v", test.name, test.want, cfg)
		}
	}
}

func TestParseFlagsErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	unknownFile := filepath.Join(dir, "unknown.yaml")
	if err := os.WriteFile(unknownFile, []byte("url: x\nbogus: 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		args []string
	}{
		{"NoURL", nil},
		{"Args", []string{"-url", "x", "extra"}},
		{"Format", []string{"-url", "x", "-format", "xml"}},
		{"Push", []string{"-url", "x", "-push", "{"}},
		{"ServeRemote", []string{"-serve", ".", "-remote", "ws://localhost:9222"}},
		{"MissingFile", []string{"-config", filepath.Join(dir, "nope.yaml")}},
		{"UnknownField", []string{"-config", unknownFile}},
		{"Flag", []string{"-bogus"}},
	}
	for _, test := range tests {
		if _, err := parseFlags(test.args); err == nil {
			t.Errorf("%s: want error", test.name)
		}
	}
}
