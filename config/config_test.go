package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

type testConfig struct {
	Mongo struct {
		URI      string `mapstructure:"uri"`
		Database string `mapstructure:"database"`
	} `mapstructure:"mongo"`
	GridFS struct {
		Enabled    bool   `mapstructure:"enabled"`
		BucketName string `mapstructure:"bucket_name"`
	} `mapstructure:"gridfs"`
	Server struct {
		StartTimeout time.Duration `mapstructure:"start_timeout"`
	} `mapstructure:"server"`
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func TestLoadConfigWithYAML(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "mongofixtures.yml")
	writeFile(t, configPath, `
mongo:
  database: fixtures
gridfs:
  enabled: true
  bucket_name: attachments
server:
  start_timeout: 45s
`)

	var cfg testConfig
	if err := LoadConfig("mongofixtures", &cfg, WithConfigFile(configPath)); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Mongo.Database != "fixtures" {
		t.Errorf("database = %q", cfg.Mongo.Database)
	}
	if !cfg.GridFS.Enabled || cfg.GridFS.BucketName != "attachments" {
		t.Errorf("gridfs = %+v", cfg.GridFS)
	}
	if cfg.Server.StartTimeout != 45*time.Second {
		t.Errorf("start_timeout = %v", cfg.Server.StartTimeout)
	}
}

func TestLoadConfigEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "mongofixtures.yml")
	writeFile(t, configPath, "mongo:\n  uri: mongodb://file:27017\n")
	t.Setenv("MONGO_URI", "mongodb://env:27017")
	t.Setenv("GRIDFS_BUCKET_NAME", "uploads")

	var cfg testConfig
	if err := LoadConfig("mongofixtures", &cfg, WithConfigFile(configPath)); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Mongo.URI != "mongodb://env:27017" {
		t.Errorf("uri = %q, want the environment value", cfg.Mongo.URI)
	}
	if cfg.GridFS.BucketName != "uploads" {
		t.Errorf("bucket_name = %q", cfg.GridFS.BucketName)
	}
}

func TestLoadConfigEnvFile(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	writeFile(t, envPath, "MONGO_DATABASE=from_dotenv\n")
	t.Setenv("MONGO_DATABASE", "")
	os.Unsetenv("MONGO_DATABASE")

	var cfg testConfig
	if err := LoadConfig("mongofixtures", &cfg, WithConfigFile(filepath.Join(dir, "absent.yml")), WithEnvFile(envPath)); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Mongo.Database != "from_dotenv" {
		t.Errorf("database = %q", cfg.Mongo.Database)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	var cfg testConfig
	if err := LoadConfig("mongofixtures", &cfg, WithConfigFile("/nonexistent/path.yml")); err != nil {
		t.Fatalf("expected LoadConfig to succeed with missing file, got %v", err)
	}
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "mongofixtures.yml")
	writeFile(t, configPath, "mongo: [unterminated\n")

	var cfg testConfig
	if err := LoadConfig("mongofixtures", &cfg, WithConfigFile(configPath)); err == nil {
		t.Fatal("expected an error for malformed YAML")
	}
}

type mockFS struct {
	wd    string
	files map[string]bool
}

func (m *mockFS) Exists(path string) bool { return m.files[path] }
func (m *mockFS) LoadEnv(path string) error { return nil }
func (m *mockFS) Getwd() (string, error) { return m.wd, nil }

func TestResolverWalksUpToModuleRoot(t *testing.T) {
	fs := &mockFS{
		wd: "/repo/internal/store",
		files: map[string]bool{
			"/repo/go.mod":                       true,
			"/repo/testdata/mongofixtures.yml":   true,
			"/repo/.env.test":                    true,
			"/mongofixtures.yml":                 true, // above the module root
			"/repo/internal/store/unrelated.yml": true,
		},
	}
	resolver := &Resolver{FileSystem: fs}
	files := resolver.ResolveFiles("mongofixtures", LoaderConfig{})
	if files.ConfigFile != "/repo/testdata/mongofixtures.yml" {
		t.Errorf("config file = %q", files.ConfigFile)
	}
	if files.EnvFile != "/repo/.env.test" {
		t.Errorf("env file = %q", files.EnvFile)
	}
}

func TestResolverPrefersNearestDirectory(t *testing.T) {
	fs := &mockFS{
		wd: "/repo/pkg",
		files: map[string]bool{
			"/repo/go.mod":                true,
			"/repo/mongofixtures.yml":     true,
			"/repo/pkg/mongofixtures.yml": true,
		},
	}
	files := (&Resolver{FileSystem: fs}).ResolveFiles("mongofixtures", LoaderConfig{})
	if files.ConfigFile != "/repo/pkg/mongofixtures.yml" {
		t.Errorf("config file = %q", files.ConfigFile)
	}
}

func TestResolverExplicitPathsWin(t *testing.T) {
	fs := &mockFS{wd: "/repo", files: map[string]bool{"/repo/go.mod": true, "/repo/mongofixtures.yml": true}}
	files := (&Resolver{FileSystem: fs}).ResolveFiles("mongofixtures", LoaderConfig{ConfigFile: "/etc/x.yml", EnvFile: "/etc/.env"})
	if files.ConfigFile != "/etc/x.yml" || files.EnvFile != "/etc/.env" {
		t.Errorf("unexpected files: %+v", files)
	}
}

func TestGenerateEnvKeyVariants(t *testing.T) {
	tests := []struct {
		key  string
		want []string
	}{
		{"PATH", []string{"path"}},
		{"MONGO_URI", []string{"mongo_uri", "mongo.uri"}},
		{"GRIDFS_BUCKET_NAME", []string{"gridfs_bucket_name", "gridfs.bucket.name", "gridfs.bucket_name"}},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := generateEnvKeyVariants(tt.key); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("generateEnvKeyVariants(%q) = %v, want %v", tt.key, got, tt.want)
			}
		})
	}
}

func TestLoaderOptions(t *testing.T) {
	var lc LoaderConfig
	fs := &mockFS{}
	WithFileSystem(fs)(&lc)
	WithConfigFile("/path/to/config.yml")(&lc)
	WithEnvFile("/path/to/.env")(&lc)
	if lc.FileSystem == nil || lc.ConfigFile != "/path/to/config.yml" || lc.EnvFile != "/path/to/.env" {
		t.Errorf("unexpected loader config: %+v", lc)
	}
}
