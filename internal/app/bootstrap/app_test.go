package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/port-poller/internal/config"
	"github.com/taoyao-code/port-poller/internal/snapshot"
)

func TestRunOnce_EndToEnd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("device_id") {
		case "1":
			_, _ = w.Write([]byte(`{"code":0,"data":{"list":[{"charge_status":1,"online":1,"current":0.4,"voltage":221,"power":88}]}}`))
		default:
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer srv.Close()

	dir := t.TempDir()
	cfg := &cfgpkg.Config{
		Devices: cfgpkg.DevicesConfig{IDs: []int64{1, 2}, NamePrefix: "桩"},
		API:     cfgpkg.APIConfig{BaseURL: srv.URL, Timeout: time.Second},
		Output:  cfgpkg.OutputConfig{DataDir: filepath.Join(dir, "data"), StatusFile: "status.json", HistoryFile: "history.csv"},
		History: cfgpkg.HistoryConfig{RetentionDays: 3, TimestampOffset: 8 * time.Hour},
		Metrics: cfgpkg.MetricsConfig{Enable: true, Textfile: filepath.Join(dir, "poller.prom")},
	}

	rep := RunOnce(context.Background(), cfg, zap.NewNop())
	require.NoError(t, rep.Err())
	assert.Equal(t, 1, rep.RowsAppended)

	doc, err := snapshot.ReadDocument(cfg.Output.StatusPath())
	require.NoError(t, err)
	require.Len(t, doc, 2)
	assert.Empty(t, doc[0].Error)
	assert.Equal(t, 0.4, doc[0].Ports[0].Current)
	assert.Equal(t, "Fetch failed", doc[1].Error)

	prom, err := os.ReadFile(cfg.Metrics.Textfile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), `poller_fetch_total{result="failed"} 1`)
	assert.Contains(t, string(prom), `poller_fetch_total{result="ok"} 1`)
	assert.NotContains(t, string(prom), "go_goroutines")
}
