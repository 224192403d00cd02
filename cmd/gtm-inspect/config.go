package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/chromedp/datalayer"
)

// Config is the inspection configuration, read from an optional YAML file
// and the command line flags.
type Config struct {
	URL       string            `yaml:"url"`
	Serve     string            `yaml:"serve"`
	Container string            `yaml:"container"`
	Wait      string            `yaml:"wait"`
	Timeout   time.Duration     `yaml:"timeout"`
	Remote    string            `yaml:"remote"`
	Insecure  bool              `yaml:"insecure"`
	Vars      []string          `yaml:"vars"`
	Push      datalayer.Message `yaml:"push"`
	Format    string            `yaml:"format"`
	Verbose   bool              `yaml:"verbose"`
}

// Output formats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatText = "text"
)

func defaultConfig() *Config {
	return &Config{
		Wait:    "gtm.load",
		Timeout: datalayer.DefaultPollingTimeout,
		Format:  FormatText,
	}
}

// parseFlags builds the Config from args. Values from the -config file are
// applied first; flags set on the command line override them.
func parseFlags(args []string) (*Config, error) {
	fs := flag.NewFlagSet("gtm-inspect", flag.ContinueOnError)
	var (
		flags      = defaultConfig()
		configFile = fs.String("config", "", "yaml config file")
		vars       = fs.String("var", "", "comma separated variables to read from the container's data model")
		push       = fs.String("push", "", "json message to push before reading")
	)
	fs.StringVar(&flags.URL, "url", "", "page to inspect")
	fs.StringVar(&flags.Serve, "serve", "", "serve a local directory and inspect url relative to it")
	fs.StringVar(&flags.Container, "container", "", "container id (defaults to the first container on the page)")
	fs.StringVar(&flags.Wait, "wait", flags.Wait, "event to wait for before reading (empty to skip)")
	fs.DurationVar(&flags.Timeout, "timeout", flags.Timeout, "event wait timeout")
	fs.StringVar(&flags.Remote, "remote", "", "remote browser devtools websocket url")
	fs.BoolVar(&flags.Insecure, "insecure", false, "skip tls verification when connecting to -remote")
	fs.StringVar(&flags.Format, "format", flags.Format, "output format (json, yaml, text)")
	fs.BoolVar(&flags.Verbose, "v", false, "verbose logging")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() != 0 {
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}

	cfg := defaultConfig()
	if *configFile != "" {
		if err := loadConfig(*configFile, cfg); err != nil {
			return nil, err
		}
	}
	var err error
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "url":
			cfg.URL = flags.URL
		case "serve":
			cfg.Serve = flags.Serve
		case "container":
			cfg.Container = flags.Container
		case "wait":
			cfg.Wait = flags.Wait
		case "timeout":
			cfg.Timeout = flags.Timeout
		case "remote":
			cfg.Remote = flags.Remote
		case "insecure":
			cfg.Insecure = flags.Insecure
		case "format":
			cfg.Format = flags.Format
		case "v":
			cfg.Verbose = flags.Verbose
		case "var":
			cfg.Vars = splitList(*vars)
		case "push":
			cfg.Push, err = parseMessage(*push)
		}
	})
	if err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadConfig(name string, cfg *Config) error {
	buf, err := os.ReadFile(name)
	if err != nil {
		return err
	}
	dec := yaml.NewDecoder(bytes.NewReader(buf))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

func (cfg *Config) validate() error {
	switch {
	case cfg.URL == "" && cfg.Serve == "":
		return errors.New("one of -url or -serve is required")
	case cfg.Serve != "" && cfg.Remote != "":
		return errors.New("-serve cannot be used with -remote")
	}
	switch cfg.Format {
	case FormatJSON, FormatYAML, FormatText:
	default:
		return fmt.Errorf("invalid format %q", cfg.Format)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func parseMessage(s string) (datalayer.Message, error) {
	var msg datalayer.Message
	if err := json.Unmarshal([]byte(s), &msg); err != nil {
		return nil, fmt.Errorf("invalid -push message: %w", err)
	}
	return msg, nil
}
