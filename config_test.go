package main

import (
	"testing"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"defaults", Config{port: 10000}, false},
		{"port too low", Config{port: 0}, true},
		{"port too high", Config{port: 70000}, true},
		{"cert without key", Config{port: 8080, tlsCert: "cert.pem"}, true},
		{"key without cert", Config{port: 8080, tlsKey: "key.pem"}, true},
		{"cert and key", Config{port: 8080, tlsCert: "cert.pem", tlsKey: "key.pem"}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestConfigScheme(t *testing.T) {
	plain := Config{}
	if plain.scheme() != "http" {
		t.Errorf("expected http, got %s", plain.scheme())
	}

	tls := Config{tlsCert: "cert.pem", tlsKey: "key.pem"}
	if tls.scheme() != "https" {
		t.Errorf("expected https, got %s", tls.scheme())
	}
}

func TestNewCmdDefaults(t *testing.T) {
	cfg := &Config{}
	cmd := newCmd(cfg)

	if err := cmd.ParseFlags(nil); err != nil {
		t.Fatalf("ParseFlags returned error: %v", err)
	}
	if cfg.port != 10000 {
		t.Errorf("expected default port 10000, got %d", cfg.port)
	}
	if cfg.bind != "0.0.0.0" {
		t.Errorf("expected default bind 0.0.0.0, got %s", cfg.bind)
	}
}
