package testutils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/joho/godotenv"
	"github.com/nfrund/batepapo/internal/config"
	"github.com/nfrund/batepapo/internal/logging"
)

// ConfigForTests loads the .env.test file and returns a valid config.
// Variables already exported in the environment (for example SURREAL_URL
// for integration runs) take precedence over the file.
func ConfigForTests(t *testing.T) *config.Config {
	t.Helper()

	root := ProjectRoot(t)

	env, err := godotenv.Read(filepath.Join(root, ".env.test"))
	if err != nil && !os.IsNotExist(err) {
		t.Fatalf("failed to load .env.test file: %v", err)
	}

	for key, value := range env {
		if _, set := os.LookupEnv(key); set {
			continue
		}
		t.Setenv(key, value)
	}

	logging.New()

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("failed to load test config: %v", err)
	}
	return cfg
}

// ProjectRoot walks up from the working directory to the folder holding go.mod.
func ProjectRoot(t *testing.T) string {
	t.Helper()

	path, _ := os.Getwd()
	for {
		if _, err := os.Stat(filepath.Join(path, "go.mod")); err == nil {
			return path
		}
		if path == filepath.Dir(path) {
			t.Fatalf("could not find project root with go.mod")
		}
		path = filepath.Dir(path)
	}
}
