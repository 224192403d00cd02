package main

import (
	"encoding/json"
	"fmt"
	"io"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"

	"github.com/chromedp/datalayer"
)

// Report is the result of an inspection.
type Report struct {
	URL        string                 `json:"url" yaml:"url"`
	Containers []string               `json:"containers" yaml:"containers"`
	Container  string                 `json:"container,omitempty" yaml:"container,omitempty"`
	History    history                `json:"history" yaml:"history"`
	DataModel  datalayer.DataModel    `json:"dataModel,omitempty" yaml:"dataModel,omitempty"`
	Variables  map[string]interface{} `json:"variables,omitempty" yaml:"variables,omitempty"`
	Undefined  []string               `json:"undefined,omitempty" yaml:"undefined,omitempty"`
}

// history is a dataLayer history. Non-object entries, returned as nil
// messages, encode as null in every format.
type history []datalayer.Message

// MarshalYAML satisfies yaml.Marshaler.
func (h history) MarshalYAML() (interface{}, error) {
	if h == nil {
		return nil, nil
	}
	out := make([]interface{}, len(h))
	for i, msg := range h {
		if msg != nil {
			out[i] = map[string]interface{}(msg)
		}
	}
	return out, nil
}

func writeReport(w io.Writer, format string, r *Report) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	case FormatText:
		return writeText(w, r)
	}
	return fmt.Errorf("invalid format %q", format)
}

// writeText writes r as a listing for humans. Keys are sorted.
func writeText(w io.Writer, r *Report) error {
	ew := &errWriter{w: w}
	ew.printf("url: %s\n", r.URL)
	ew.printf("containers: %d\n", len(r.Containers))
	for _, id := range r.Containers {
		ew.printf("  %s\n", id)
	}

	ew.printf("history: %d\n", len(r.History))
	for i, msg := range r.History {
		ew.printf("  %d. %s\n", i, messageLine(msg))
	}

	if r.Container != "" {
		ew.printf("data model %s: %d\n", r.Container, len(r.DataModel))
		keys := maps.Keys(r.DataModel)
		slices.Sort(keys)
		for _, k := range keys {
			ew.printf("  %s = %s\n", k, jsonValue(r.DataModel[k]))
		}
	}

	if len(r.Variables) != 0 || len(r.Undefined) != 0 {
		ew.printf("variables:\n")
		names := append(maps.Keys(r.Variables), r.Undefined...)
		slices.Sort(names)
		for _, name := range names {
			v, ok := r.Variables[name]
			if !ok {
				ew.printf("  %s (undefined)\n", name)
				continue
			}
			ew.printf("  %s = %s\n", name, jsonValue(v))
		}
	}
	return ew.err
}

// messageLine formats msg as its event name followed by its other keys.
func messageLine(msg datalayer.Message) string {
	if msg == nil {
		return "(not an object)"
	}
	keys := maps.Keys(msg)
	slices.Sort(keys)
	line := msg.Event()
	if line == "" {
		line = "-"
	}
	for _, k := range keys {
		if k == "event" {
			continue
		}
		line += " " + k + "=" + jsonValue(msg[k])
	}
	return line
}

func jsonValue(v interface{}) string {
	buf, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(buf)
}

type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, v ...interface{}) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, v...)
}
