// Package config loads and validates the proxy's runtime configuration.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is immutable once Load returns. Every field has a sensible
// default so the proxy runs unconfigured against a local LM Studio
// instance.
type Config struct {
	Listen      string
	BackendURL  string
	LogEnabled  bool
	UseV0       bool // redirect backend calls to /api/v0/* instead of /v1/*
	LoadTimeout time.Duration
	RequestTimeout time.Duration
	StreamTimeout  time.Duration
}

const (
	defaultListen      = "127.0.0.1:11434"
	defaultBackendURL  = "http://127.0.0.1:1234"
	defaultLoadSeconds = 5
	defaultReqSeconds  = 120
	defaultStrmSeconds = 30
)

// Load parses CLI flags (falling back to environment variables, then
// built-in defaults) into a Config. args is normally os.Args[1:].
func Load(args []string) (Config, error) {
	fs := flag.NewFlagSet("ollama-lmstudio-proxy", flag.ContinueOnError)

	cfg := Config{}
	fs.StringVar(&cfg.Listen, "listen", envOr("PROXY_LISTEN", defaultListen), "address to bind the HTTP listener")
	fs.StringVar(&cfg.BackendURL, "backend-url", envOr("LMSTUDIO_URL", defaultBackendURL), "base URL of the LM Studio / OpenAI-compatible backend")
	fs.StringVar(&cfg.BackendURL, "lmstudio-url", cfg.BackendURL, "alias for -backend-url")
	fs.BoolVar(&cfg.LogEnabled, "log", envBoolOr("PROXY_LOG", true), "enable request logging")
	fs.BoolVar(&cfg.UseV0, "use-v0", envBoolOr("PROXY_USE_V0", false), "redirect backend calls to /api/v0/* instead of /v1/*")

	loadSeconds := fs.Int("load-timeout-seconds", envIntOr("PROXY_LOAD_TIMEOUT_SECONDS", defaultLoadSeconds), "seconds to wait after triggering a model load before retrying")
	reqSeconds := fs.Int("request-timeout-seconds", envIntOr("PROXY_REQUEST_TIMEOUT_SECONDS", defaultReqSeconds), "seconds before a non-streaming backend call is aborted")
	strmSeconds := fs.Int("stream-timeout-seconds", envIntOr("PROXY_STREAM_TIMEOUT_SECONDS", defaultStrmSeconds), "seconds of inter-chunk idle time before a stream is aborted")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg.LoadTimeout = time.Duration(*loadSeconds) * time.Second
	cfg.RequestTimeout = time.Duration(*reqSeconds) * time.Second
	cfg.StreamTimeout = time.Duration(*strmSeconds) * time.Second

	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen address must not be empty")
	}
	if c.BackendURL == "" {
		return fmt.Errorf("backend url must not be empty")
	}
	if c.LoadTimeout <= 0 || c.RequestTimeout <= 0 || c.StreamTimeout <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
