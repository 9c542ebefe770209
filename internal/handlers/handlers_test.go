package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/payengine/internal/logger"
	"github.com/nkiryanov/payengine/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/payengine/internal/service/batch"
	"github.com/nkiryanov/payengine/internal/storage"
)

type testServer struct {
	*httptest.Server
	token    string
	accounts *storage.AccountStore
}

func newTestServer(t *testing.T) testServer {
	t.Helper()

	accounts := storage.NewAccountStore()
	transactions := storage.NewTransactionStore()
	service := batch.NewService(accounts, transactions, nil)

	tokens, err := tokenmanager.New(tokenmanager.Config{SecretKey: "test-secret"})
	require.NoError(t, err)

	srv := httptest.NewServer(NewRouter(service, accounts, tokens, logger.NewNoOp()))
	t.Cleanup(srv.Close)

	token, _, err := tokens.Issue("tests")
	require.NoError(t, err)

	return testServer{Server: srv, token: token, accounts: accounts}
}

func (s testServer) request(t *testing.T, method, path, body string, authorized bool) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, s.URL+path, reader)
	require.NoError(t, err)
	if authorized {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	return resp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

const sampleBatch = `type,client,tx,amount
deposit,1,1,1.0
deposit,2,2,2.0
deposit,1,3,2.0
withdrawal,1,4,1.5
withdrawal,2,5,3.0
`

func TestHealthzNeedsNoAuth(t *testing.T) {
	srv := newTestServer(t)

	resp := srv.request(t, http.MethodGet, "/healthz", "", false)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, readBody(t, resp), `"ok"`)
}

func TestAPIRequiresToken(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/api/accounts", "/api/stats"} {
		resp := srv.request(t, http.MethodGet, path, "", false)

		require.Equal(t, http.StatusUnauthorized, resp.StatusCode, "path %s", path)
	}
}

func TestSubmitBatch(t *testing.T) {
	t.Run("processes the body and reports counters", func(t *testing.T) {
		srv := newTestServer(t)

		resp := srv.request(t, http.MethodPost, "/api/batches", sampleBatch, true)

		require.Equal(t, http.StatusOK, resp.StatusCode)

		var report struct {
			Processed uint64 `json:"processed"`
			Skipped   uint64 `json:"skipped"`
			Aborted   bool   `json:"aborted"`
		}
		require.NoError(t, json.Unmarshal([]byte(readBody(t, resp)), &report))
		require.EqualValues(t, 4, report.Processed, "the failing withdrawal is skipped")
		require.EqualValues(t, 1, report.Skipped)
		require.False(t, report.Aborted)

		account, ok := srv.accounts.Get(1)
		require.True(t, ok)
		require.Equal(t, int64(15_000), account.Available().Raw())
	})

	t.Run("rejects bad options", func(t *testing.T) {
		srv := newTestServer(t)

		resp := srv.request(t, http.MethodPost, "/api/batches?shards=not-a-number", sampleBatch, true)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)

		resp = srv.request(t, http.MethodPost, "/api/batches?policy=explode", sampleBatch, true)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		require.Contains(t, readBody(t, resp), "validation_failed")
	})
}

func TestSnapshotAccounts(t *testing.T) {
	srv := newTestServer(t)
	srv.request(t, http.MethodPost, "/api/batches", sampleBatch, true)

	resp := srv.request(t, http.MethodGet, "/api/accounts", "", true)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Header.Get("Content-Type"), "text/csv")

	body := readBody(t, resp)
	require.Contains(t, body, "client,available,held,total,locked")
	require.Contains(t, body, "1,1.5000,0.0000,1.5000,false")
	require.Contains(t, body, "2,2.0000,0.0000,2.0000,false")
}

func TestGetAccount(t *testing.T) {
	srv := newTestServer(t)
	srv.request(t, http.MethodPost, "/api/batches", sampleBatch, true)

	t.Run("existing account", func(t *testing.T) {
		resp := srv.request(t, http.MethodGet, "/api/accounts/1", "", true)

		require.Equal(t, http.StatusOK, resp.StatusCode)

		var view struct {
			Client    uint16 `json:"client"`
			Available string `json:"available"`
			Total     string `json:"total"`
			Locked    bool   `json:"locked"`
		}
		require.NoError(t, json.Unmarshal([]byte(readBody(t, resp)), &view))
		require.Equal(t, uint16(1), view.Client)
		require.Equal(t, "1.5000", view.Available)
		require.Equal(t, "1.5000", view.Total)
		require.False(t, view.Locked)
	})

	t.Run("unknown account", func(t *testing.T) {
		resp := srv.request(t, http.MethodGet, "/api/accounts/999", "", true)

		require.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("bad client id", func(t *testing.T) {
		resp := srv.request(t, http.MethodGet, "/api/accounts/not-a-client", "", true)

		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestStats(t *testing.T) {
	srv := newTestServer(t)
	srv.request(t, http.MethodPost, "/api/batches", sampleBatch, true)

	resp := srv.request(t, http.MethodGet, "/api/stats", "", true)

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var totals batch.Totals
	require.NoError(t, json.Unmarshal([]byte(readBody(t, resp)), &totals))
	require.EqualValues(t, 1, totals.Batches)
	require.EqualValues(t, 4, totals.Processed)
	require.Equal(t, 2, totals.Accounts)
}
