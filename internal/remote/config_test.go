package remote

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "servers.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if len(cfg.Servers) != 0 {
		t.Errorf("default config should have no servers, got %d", len(cfg.Servers))
	}
}

func TestSaveLoadConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "servers.yaml")

	cfg := &Config{
		Servers: []ServerConfig{
			{
				ID:     "calc",
				Prefix: "calc",
				Spec: LaunchSpec{
					Command: "calc-server",
					Args:    []string{"--stdio"},
					Env:     map[string]string{"CALC_MODE": "strict"},
				},
				Enabled: true,
			},
			{
				ID:      "search",
				Spec:    LaunchSpec{Endpoint: "localhost:9200"},
				Enabled: false,
			},
		},
	}

	if err := SaveConfig(path, cfg); err != nil {
		t.Fatalf("SaveConfig() error = %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if len(loaded.Servers) != 2 {
		t.Fatalf("loaded %d servers, want 2", len(loaded.Servers))
	}
	calc, ok := loaded.Find("calc")
	if !ok {
		t.Fatal("Find(calc) should succeed")
	}
	if calc.Prefix != "calc" || calc.Spec.Command != "calc-server" || !calc.Enabled {
		t.Errorf("calc entry = %+v", calc)
	}
	if calc.Spec.Env["CALC_MODE"] != "strict" {
		t.Errorf("env = %v", calc.Spec.Env)
	}
	search, _ := loaded.Find("search")
	if search.Spec.Endpoint != "localhost:9200" || search.Enabled {
		t.Errorf("search entry = %+v", search)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "missing id",
			yaml: "servers:\n  - command: foo\n    enabled: true\n",
		},
		{
			name: "duplicate id",
			yaml: "servers:\n  - id: a\n    command: foo\n  - id: a\n    command: bar\n",
		},
		{
			name: "no command or endpoint",
			yaml: "servers:\n  - id: a\n    enabled: true\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "servers.yaml")
			if err := os.WriteFile(path, []byte(tt.yaml), 0o600); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadConfig(path); err == nil {
				t.Error("LoadConfig() should reject invalid config")
			}
		})
	}
}

func TestConfig_UpsertRemove(t *testing.T) {
	cfg := DefaultConfig()

	cfg.Upsert(ServerConfig{ID: "a", Spec: LaunchSpec{Command: "a"}})
	cfg.Upsert(ServerConfig{ID: "b", Spec: LaunchSpec{Command: "b"}})
	cfg.Upsert(ServerConfig{ID: "a", Spec: LaunchSpec{Command: "a2"}})

	if len(cfg.Servers) != 2 {
		t.Fatalf("len = %d, want 2 after upsert of existing id", len(cfg.Servers))
	}
	a, _ := cfg.Find("a")
	if a.Spec.Command != "a2" {
		t.Errorf("upsert should replace, got %q", a.Spec.Command)
	}

	if !cfg.Remove("a") {
		t.Error("Remove(a) should report true")
	}
	if cfg.Remove("a") {
		t.Error("second Remove(a) should report false")
	}
	if _, ok := cfg.Find("a"); ok {
		t.Error("removed entry should not be found")
	}
}
