//go:build integration
// +build integration

package integration

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/evercast/internal/config"
	"github.com/stwalsh4118/evercast/internal/db"
)

// setupTestDB creates an in-memory test database with migrations applied
func setupTestDB(t *testing.T) (*db.DB, *db.Repositories, func()) {
	t.Helper()

	database, err := db.New(":memory:")
	require.NoError(t, err, "Failed to create in-memory database")

	err = database.Migrate(migrationsPath(t))
	require.NoError(t, err, "Failed to run migrations")

	repos := db.NewRepositories(database)

	cleanup := func() {
		database.Close()
	}

	return database, repos, cleanup
}

// migrationsPath resolves the migrations directory relative to this file
// so tests work regardless of working directory
func migrationsPath(t *testing.T) string {
	t.Helper()

	_, filename, _, ok := runtime.Caller(0)
	require.True(t, ok, "Failed to get current file path")

	testDir := filepath.Dir(filename)             // test/integration
	rootDir := filepath.Dir(filepath.Dir(testDir)) // module root
	return "file://" + filepath.Join(rootDir, "migrations")
}

// testConfig returns a configuration with short timings and no D-Bus
func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Port:            8080,
			Host:            "127.0.0.1",
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    5 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		Database: config.DatabaseConfig{Path: ":memory:"},
		Logging:  config.LoggingConfig{Level: "warn"},
		Playback: config.PlaybackConfig{
			FallbackTimeout:      2 * time.Second,
			AdvanceFloor:         100 * time.Millisecond,
			DefaultSlideDuration: 45 * time.Second,
			DeepLinkDelay:        50 * time.Millisecond,
			Bumpers:              []string{"/bumpers/i1.mp4", "/bumpers/i2.mp4", "/bumpers/i3.mp4"},
			SlideBumper:          "/bumpers/news.mp4",
		},
		Session: config.SessionConfig{
			IdleTimeout:     time.Minute,
			CleanupInterval: time.Second,
		},
	}
}

// writeCatalogue writes a JSON import document and returns its path
func writeCatalogue(t *testing.T, dir string, entries []map[string]interface{}) string {
	t.Helper()

	data, err := json.Marshal(map[string]interface{}{"items": entries})
	require.NoError(t, err)

	path := filepath.Join(dir, "catalogue.json")
	require.NoError(t, os.WriteFile(path, data, 0600))
	return path
}

// doRequest sends a JSON request to handler and decodes the response into out
func doRequest(t *testing.T, handler http.Handler, method, path string, body, out interface{}) int {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if out != nil && w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
	}
	return w.Code
}
