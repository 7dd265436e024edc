// Copyright 2023-2026 the termcast Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	c := Default()
	if c.Host != DefaultHost || c.Port != DefaultPort {
		t.Fatalf("Default relay: got %v:%v, want %v:%v", c.Host, c.Port, DefaultHost, DefaultPort)
	}
	if c.Password != DefaultPassword || c.Timeout != DefaultTimeout {
		t.Fatalf("Default: got %+v", c)
	}
	if c.BellOnWatcher {
		t.Fatal("Default: bell should be off")
	}
}

func TestLoadMissingFileIsFine(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load of absent file: got %v, want nil", err)
	}
	if c.Host != DefaultHost {
		t.Fatalf("Load of absent file changed defaults: %+v", c)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "termcast.yaml")
	body := "host: relay.example\nport: 4000\nbell_on_watcher: true\n"
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: got %v, want nil", err)
	}
	if c.Host != "relay.example" || c.Port != 4000 || !c.BellOnWatcher {
		t.Fatalf("Load: got %+v", c)
	}
	// Untouched keys keep their defaults.
	if c.Password != DefaultPassword || c.Timeout != DefaultTimeout {
		t.Fatalf("Load clobbered defaults: %+v", c)
	}
}

func TestEnvironmentWinsOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "termcast.yaml")
	if err := os.WriteFile(path, []byte("host: file.example\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TERMCAST_HOST", "env.example")
	t.Setenv("TERMCAST_PASSWORD", "hunter2")

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: got %v, want nil", err)
	}
	if c.Host != "env.example" {
		t.Fatalf("host: got %q, want %q", c.Host, "env.example")
	}
	if c.Password != "hunter2" {
		t.Fatalf("password: got %q, want %q", c.Password, "hunter2")
	}
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "termcast.yaml")
	if err := os.WriteFile(path, []byte("port: [not a port\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("Load of malformed file: got nil, want error")
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	var tests = []struct {
		name string
		body string
	}{
		{"empty host", "host: \"\"\n"},
		{"zero timeout", "timeout: 0\n"},
	}
	for _, tt := range tests {
		path := filepath.Join(t.TempDir(), "termcast.yaml")
		if err := os.WriteFile(path, []byte(tt.body), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := Load(path); err == nil {
			t.Errorf("%s: got nil, want error", tt.name)
		}
	}
}
