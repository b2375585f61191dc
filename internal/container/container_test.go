package container

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"go-roi-inspector/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewContainerWithDefaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	c, err := NewContainer(cfg)
	require.NoError(t, err)
	defer c.Close()

	assert.Same(t, cfg, c.Config())
	assert.NotNil(t, c.Decoder())

	w := httptest.NewRecorder()
	c.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	// persistence is off without a database path
	_, err = c.Service().ListRuns(context.Background(), 10)
	assert.Error(t, err)
	assert.Equal(t, int64(0), c.Metrics()["batches"])
}

func TestNewContainerWithResultsDatabase(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Results.Database = filepath.Join(t.TempDir(), "db", "runs.sqlite")

	c, err := NewContainer(cfg)
	require.NoError(t, err)

	runs, err := c.Service().ListRuns(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
	assert.NoError(t, c.Close())
}

func TestNewContainerRejectsInvalidConfig(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Decode.Decoder = "magic"

	_, err = NewContainer(cfg)
	assert.Error(t, err)
}
