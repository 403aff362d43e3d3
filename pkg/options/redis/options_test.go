package redis

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/spf13/pflag"
)

func TestOptionsJSONMarshal_PasswordRedacted(t *testing.T) {
	opts := NewOptions()
	opts.Password = "supersecret"

	data, err := json.Marshal(opts)
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}
	if strings.Contains(string(data), "supersecret") {
		t.Error("password should be redacted in JSON output")
	}
	if !strings.Contains(string(data), "[REDACTED]") {
		t.Error("JSON output should contain [REDACTED] placeholder")
	}
	if strings.Contains(opts.String(), "supersecret") {
		t.Error("String() should redact the password")
	}
}

func TestOptionsComplete_PasswordFromEnv(t *testing.T) {
	t.Setenv("REDIS_PASSWORD", "from-env")

	opts := NewOptions()
	if err := opts.Complete(); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if opts.Password != "from-env" {
		t.Errorf("expected password from env, got %q", opts.Password)
	}
}

func TestOptionsValidate(t *testing.T) {
	opts := NewOptions()
	if errs := opts.Validate(); len(errs) != 0 {
		t.Fatalf("default options should be valid: %v", errs)
	}

	opts.Host = ""
	opts.Port = 70000
	if errs := opts.Validate(); len(errs) != 2 {
		t.Errorf("expected 2 errors, got %v", errs)
	}
}

func TestOptionsAddFlags(t *testing.T) {
	opts := NewOptions()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	opts.AddFlags(fs, "cache")

	if err := fs.Parse([]string{"--cache.redis.host=redis.local", "--cache.redis.port=6380"}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if opts.Addr() != "redis.local:6380" {
		t.Errorf("unexpected addr %s", opts.Addr())
	}
}
