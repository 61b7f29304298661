package dispatch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courierflow/dispatch/core/dispatch/logging"
)

type memStore struct {
	records []logging.LogRecord
}

func (m *memStore) Append(_ context.Context, rec logging.LogRecord) error {
	m.records = append(m.records, rec)
	return nil
}

func (m *memStore) Query(_ context.Context, q logging.LogQuery) ([]logging.LogRecord, error) {
	var res []logging.LogRecord
	for _, r := range m.records {
		if q.OrderID != "" {
			found := false
			for _, id := range r.Orders {
				if id == q.OrderID {
					found = true
					break
				}
			}
			if !found {
				continue
			}
		}
		if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
			continue
		}
		res = append(res, r)
	}
	return res, nil
}

func (m *memStore) Close() error { return nil }

func TestLogHandler_QueryByOrder(t *testing.T) {
	store := &memStore{records: []logging.LogRecord{
		{Timestamp: time.Now(), Cycle: 1, Region: "region-0", Orders: []string{"o-1"}},
		{Timestamp: time.Now(), Cycle: 2, Region: "region-1", Orders: []string{"o-2"}},
	}}
	srv := httptest.NewServer(NewLogHandler(store, ""))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "?order_id=o-1")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var records []logging.LogRecord
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&records))
	require.Len(t, records, 1)
	assert.Equal(t, uint64(1), records[0].Cycle)
}

func TestLogHandler_TokenRequired(t *testing.T) {
	srv := httptest.NewServer(NewLogHandler(&memStore{}, "secret"))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	req.Header.Set("Authorization", "Bearer secret")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
