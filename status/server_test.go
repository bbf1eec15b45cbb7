package status

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"cube/entity"
	"cube/params"
	"cube/registry"
	"cube/storage"
	"cube/syncmgr"
)

func newTestServer(t *testing.T) (*Server, *registry.Manager, *syncmgr.Manager) {
	t.Helper()
	db := storage.NewMemDB()
	log := slog.Default()

	reg, err := registry.NewManager(db, log)
	require.NoError(t, err)
	sync, err := syncmgr.NewManager(db, log)
	require.NoError(t, err)

	return NewServer(params.ChainSignet, sync, reg, log), reg, sync
}

func TestHealthz(t *testing.T) {
	srv, _, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStatusReportsNodeState(t *testing.T) {
	srv, reg, sync := newTestServer(t)

	var key entity.Key
	key[0] = 0x01
	reg.PreExecution()
	_, err := reg.RegisterAccount(key, nil, nil, nil)
	require.NoError(t, err)
	require.NoError(t, reg.ApplyChanges())

	require.NoError(t, sync.SetBitcoinSyncHeight(120))
	require.NoError(t, sync.SetRollupSyncHeight(45))
	sync.SetSynced(true)

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var snapshot Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snapshot))
	require.Equal(t, "signet", snapshot.Chain)
	require.True(t, snapshot.Synced)
	require.Equal(t, uint64(120), snapshot.BitcoinSyncHeight)
	require.Equal(t, uint64(45), snapshot.RollupSyncHeight)
	require.Equal(t, uint64(1), snapshot.Accounts)
	require.Equal(t, uint64(0), snapshot.Contracts)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
