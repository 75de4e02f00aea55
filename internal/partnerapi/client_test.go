package partnerapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"ConsorcioSync/internal/config"
	"ConsorcioSync/internal/model"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(url string, retries int) *Client {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return NewClient(config.AdministratorConfig{BaseURL: url, AuthToken: "tkn", Timeout: 5, RetryCount: retries}, logger)
}

func TestFetchAllFollowsPages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tkn", r.Header.Get("Authorization"))
		assert.Equal(t, "/v1/grupos", r.URL.Path)
		resp := model.PartnerPageResponse{Page: 1, Total: 3}
		switch r.URL.Query().Get("page") {
		case "1":
			next := 2
			resp.NextPage = &next
			resp.Items = []model.PartnerGroupItem{{Grupo: "164"}, {Grupo: "165"}}
		case "2":
			resp.Page = 2
			resp.Items = []model.PartnerGroupItem{{Grupo: "166"}}
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	items, err := newTestClient(srv.URL, 2).FetchAll(context.Background(), "/v1/grupos")
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "166", items[2].Grupo)
}

func TestFetchPageRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(model.PartnerPageResponse{Page: 1})
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, 2).FetchPage(context.Background(), "grupos", 1)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestFetchPageGivesUpAfterAttempts(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, 2).FetchPage(context.Background(), "grupos", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestFetchPageDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, 3).FetchPage(context.Background(), "grupos", 1)
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
