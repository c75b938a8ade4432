package commands

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dog-boarding/backend/internal/storage"
	"github.com/dog-boarding/backend/internal/storage/models"
	"github.com/dog-boarding/backend/internal/syncjob"
)

func setupEnv(t *testing.T, siteURL string) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("CONFIG_PATH", filepath.Join(dir, "absent.yaml"))
	t.Setenv("DATA_DIR", dir)
	t.Setenv("STORAGE_DRIVER", "sqlite")
	t.Setenv("LOG_LEVEL", "disabled")
	t.Setenv("SYNC_RETRY_DELAYS", "")
	if siteURL != "" {
		t.Setenv("EXTERNAL_SITE_URL", siteURL)
	}
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestHistory(t *testing.T) {
	dir := setupEnv(t, "")
	t.Setenv("EXTERNAL_SITE_USERNAME", "")

	ctx := context.Background()
	db, err := storage.Open(ctx, filepath.Join(dir, "dog-boarding.db"))
	require.NoError(t, err)
	logs := storage.NewSyncLogRepository(db)

	l := &models.SyncLog{StartedAt: time.Date(2024, 3, 1, 2, 0, 0, 0, time.UTC)}
	require.NoError(t, logs.Create(ctx, l))
	done := l.StartedAt.Add(90 * time.Second)
	l.Status = models.SyncStatusPartial
	l.CompletedAt = &done
	l.AppointmentsFound = 3
	l.AppointmentsFailed = 1
	l.DurationMS = 90000
	require.NoError(t, logs.Complete(ctx, l))
	require.NoError(t, db.Close())

	out, err := execute(t, "history", "--limit", "5")
	require.NoError(t, err)
	assert.Contains(t, out, l.ID)
	assert.Contains(t, out, "partial")
	assert.Contains(t, out, "1m30s")

	_, err = execute(t, "history", "--limit", "0")
	assert.Error(t, err)
}

func TestRunRequiresCredentials(t *testing.T) {
	setupEnv(t, "")
	t.Setenv("EXTERNAL_SITE_USERNAME", "")
	t.Setenv("EXTERNAL_SITE_PASSWORD", "")

	out, err := execute(t, "run")
	assert.ErrorIs(t, err, syncjob.ErrCredentialsMissing)
	assert.Empty(t, out)
}

func TestRunPrintsFailedResult(t *testing.T) {
	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer site.Close()

	setupEnv(t, site.URL)
	t.Setenv("EXTERNAL_SITE_USERNAME", "staff")
	t.Setenv("EXTERNAL_SITE_PASSWORD", "secret")

	out, err := execute(t, "run")
	require.Error(t, err)

	var res syncjob.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res), out)
	assert.Equal(t, models.SyncStatusFailed, res.Status)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "Authentication failed")
	assert.NotEmpty(t, res.SyncLogID)

	hist, err := execute(t, "history")
	require.NoError(t, err)
	assert.Contains(t, hist, res.SyncLogID)
}
