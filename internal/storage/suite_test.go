package storage

import (
	"context"
	"testing"
	"time"

	"proxygate/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var suiteBase = time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)

// runStorageSuite exercises the Storage contract against a fresh, empty
// backend. Every backend must pass it unchanged.
func runStorageSuite(t *testing.T, newStorage func(t *testing.T) Storage) {
	t.Run("Proxies", func(t *testing.T) {
		testProxies(t, newStorage(t))
	})
	t.Run("RequestLogs", func(t *testing.T) {
		testRequestLogs(t, newStorage(t))
	})
	t.Run("ErrorLogs", func(t *testing.T) {
		testErrorLogs(t, newStorage(t))
	})
	t.Run("DeleteLogsBefore", func(t *testing.T) {
		testDeleteLogsBefore(t, newStorage(t))
	})
	t.Run("Stats", func(t *testing.T) {
		testStats(t, newStorage(t))
	})
	t.Run("Ping", func(t *testing.T) {
		assert.NoError(t, newStorage(t).Ping(context.Background()))
	})
}

func testProxies(t *testing.T, s Storage) {
	ctx := context.Background()

	proxies, err := s.ListProxies(ctx)
	require.NoError(t, err)
	assert.Empty(t, proxies)

	added, err := s.AddProxies(ctx, []string{"http://1.1.1.1:80", "http://2.2.2.2:80", "http://1.1.1.1:80"})
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	added, err = s.AddProxies(ctx, []string{"http://2.2.2.2:80", "socks5://3.3.3.3:1080"})
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	proxies, err = s.ListProxies(ctx)
	require.NoError(t, err)
	require.Len(t, proxies, 3)
	assert.Equal(t, "http://1.1.1.1:80", proxies[0].URL)
	assert.Equal(t, "http://2.2.2.2:80", proxies[1].URL)
	assert.Equal(t, "socks5://3.3.3.3:1080", proxies[2].URL)
	assert.Less(t, proxies[0].ID, proxies[1].ID)
	assert.False(t, proxies[0].CreatedAt.IsZero())

	got, err := s.GetProxy(ctx, proxies[1].ID)
	require.NoError(t, err)
	assert.Equal(t, "http://2.2.2.2:80", got.URL)

	require.NoError(t, s.DeleteProxy(ctx, proxies[1].ID))
	assert.ErrorIs(t, s.DeleteProxy(ctx, proxies[1].ID), ErrNotFound)

	_, err = s.GetProxy(ctx, proxies[1].ID)
	assert.ErrorIs(t, err, ErrNotFound)

	// A deleted URL can be added again.
	added, err = s.AddProxies(ctx, []string{"http://2.2.2.2:80"})
	require.NoError(t, err)
	assert.Equal(t, 1, added)
}

func seedRequestLogs(t *testing.T, s Storage) []int64 {
	t.Helper()
	logs := []models.RequestLog{
		{ClientIP: "10.0.0.1", Method: "GET", Path: "/api/v1/proxies", APIKey: "pg_admin", StatusCode: 200, LatencyMs: 12, IsSuccess: true, CreatedAt: suiteBase},
		{ClientIP: "10.0.0.2", Method: "POST", Path: "/api/v1/proxies", APIKey: "pg_admin", StatusCode: 201, LatencyMs: 40, IsSuccess: true, RequestBody: `{"proxies":["1.2.3.4:80"]}`, CreatedAt: suiteBase.Add(time.Minute)},
		{ClientIP: "10.0.0.3", Method: "DELETE", Path: "/api/v1/proxies/9", APIKey: "pg_ops", StatusCode: 404, LatencyMs: 5, CreatedAt: suiteBase.Add(2 * time.Minute)},
		{ClientIP: "10.0.0.4", Method: "GET", Path: "/api/v1/request-logs", StatusCode: 401, LatencyMs: 1, CreatedAt: suiteBase.Add(3 * time.Minute)},
		{ClientIP: "10.0.0.5", Method: "post", Path: "/api/v1/proxies/test", APIKey: "pg_ops", StatusCode: 502, LatencyMs: 900, CreatedAt: suiteBase.Add(4 * time.Minute)},
	}
	ids := make([]int64, 0, len(logs))
	for i := range logs {
		id, err := s.AddRequestLog(context.Background(), &logs[i])
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return ids
}

func testRequestLogs(t *testing.T, s Storage) {
	ctx := context.Background()
	ids := seedRequestLogs(t, s)

	t.Run("default order is newest id first", func(t *testing.T) {
		logs, err := s.ListRequestLogs(ctx, models.RequestLogFilter{})
		require.NoError(t, err)
		require.Len(t, logs, 5)
		assert.Equal(t, ids[4], logs[0].ID)
		assert.Equal(t, ids[0], logs[4].ID)
	})

	t.Run("method filter is case-insensitive", func(t *testing.T) {
		f := models.RequestLogFilter{Method: "POST"}
		logs, err := s.ListRequestLogs(ctx, f)
		require.NoError(t, err)
		assert.Len(t, logs, 2)

		n, err := s.CountRequestLogs(ctx, f)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
	})

	t.Run("status code substring", func(t *testing.T) {
		logs, err := s.ListRequestLogs(ctx, models.RequestLogFilter{StatusCode: "40"})
		require.NoError(t, err)
		require.Len(t, logs, 2)
		for _, l := range logs {
			assert.Contains(t, []int{401, 404}, l.StatusCode)
		}
	})

	t.Run("combined filters", func(t *testing.T) {
		f := models.RequestLogFilter{Path: "proxies", Key: "OPS"}
		n, err := s.CountRequestLogs(ctx, f)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
	})

	t.Run("like wildcards are literal", func(t *testing.T) {
		n, err := s.CountRequestLogs(ctx, models.RequestLogFilter{Path: "%"})
		require.NoError(t, err)
		assert.Equal(t, int64(0), n)
	})

	t.Run("sort by latency ascending", func(t *testing.T) {
		logs, err := s.ListRequestLogs(ctx, models.RequestLogFilter{SortBy: "latency_ms", SortOrder: "asc"})
		require.NoError(t, err)
		require.Len(t, logs, 5)
		assert.Equal(t, int64(1), logs[0].LatencyMs)
		assert.Equal(t, int64(900), logs[4].LatencyMs)
	})

	t.Run("pagination", func(t *testing.T) {
		logs, err := s.ListRequestLogs(ctx, models.RequestLogFilter{Page: 2, Limit: 2, SortBy: "id", SortOrder: "asc"})
		require.NoError(t, err)
		require.Len(t, logs, 2)
		assert.Equal(t, ids[2], logs[0].ID)
		assert.Equal(t, ids[3], logs[1].ID)

		logs, err = s.ListRequestLogs(ctx, models.RequestLogFilter{Page: 10, Limit: 2})
		require.NoError(t, err)
		assert.Empty(t, logs)

		logs, err = s.ListRequestLogs(ctx, models.RequestLogFilter{Page: 1 << 62, Limit: 20})
		require.NoError(t, err)
		assert.Empty(t, logs)
	})

	t.Run("detail", func(t *testing.T) {
		l, err := s.GetRequestLog(ctx, ids[1])
		require.NoError(t, err)
		assert.Equal(t, "POST", l.Method)
		assert.Equal(t, "10.0.0.2", l.ClientIP)
		assert.Equal(t, "pg_admin", l.APIKey)
		assert.Equal(t, `{"proxies":["1.2.3.4:80"]}`, l.RequestBody)
		assert.True(t, l.IsSuccess)
		assert.Equal(t, 201, l.StatusCode)
		assert.True(t, l.CreatedAt.Equal(suiteBase.Add(time.Minute)), "created_at %v", l.CreatedAt)

		_, err = s.GetRequestLog(ctx, ids[4]+100)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func testErrorLogs(t *testing.T, s Storage) {
	ctx := context.Background()
	entries := []models.ErrorLog{
		{ErrorType: models.ErrorTypeProxyCheck, Message: "dial tcp: timeout", ClientID: "http://1.1.1.1:80", RequestTime: suiteBase},
		{ErrorType: models.ErrorTypePanic, Message: "boom", ErrorCode: 500, Path: "/api/v1/stats", RequestTime: suiteBase.Add(time.Hour)},
		{ErrorType: models.ErrorTypeProxyCheck, Message: "status 407", ErrorCode: 407, RequestTime: suiteBase.Add(2 * time.Hour)},
	}
	for i := range entries {
		_, err := s.AddErrorLog(ctx, &entries[i])
		require.NoError(t, err)
	}

	logs, err := s.ListErrorLogs(ctx, models.ErrorLogFilter{})
	require.NoError(t, err)
	require.Len(t, logs, 3)
	assert.Equal(t, "status 407", logs[0].Message)
	assert.Equal(t, 407, logs[0].ErrorCode)
	assert.Equal(t, "dial tcp: timeout", logs[2].Message)
	assert.Equal(t, "http://1.1.1.1:80", logs[2].ClientID)

	logs, err = s.ListErrorLogs(ctx, models.ErrorLogFilter{ErrorType: models.ErrorTypeProxyCheck})
	require.NoError(t, err)
	assert.Len(t, logs, 2)

	start := suiteBase.Add(30 * time.Minute)
	end := suiteBase.Add(90 * time.Minute)
	logs, err = s.ListErrorLogs(ctx, models.ErrorLogFilter{StartDate: &start, EndDate: &end})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "boom", logs[0].Message)
	assert.Equal(t, "/api/v1/stats", logs[0].Path)

	logs, err = s.ListErrorLogs(ctx, models.ErrorLogFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "boom", logs[0].Message)
}

func testDeleteLogsBefore(t *testing.T, s Storage) {
	ctx := context.Background()
	seedRequestLogs(t, s)
	for _, at := range []time.Time{suiteBase, suiteBase.Add(10 * time.Minute)} {
		_, err := s.AddErrorLog(ctx, &models.ErrorLog{ErrorType: "x", Message: "m", RequestTime: at})
		require.NoError(t, err)
	}

	cutoff := suiteBase.Add(2 * time.Minute)

	res, err := s.DeleteLogsBefore(ctx, cutoff, models.LogKindRequest)
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.RequestLogs)
	assert.Equal(t, int64(0), res.ErrorLogs)

	n, err := s.CountRequestLogs(ctx, models.RequestLogFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	res, err = s.DeleteLogsBefore(ctx, cutoff, models.LogKindBoth)
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.RequestLogs)
	assert.Equal(t, int64(1), res.ErrorLogs)

	logs, err := s.ListErrorLogs(ctx, models.ErrorLogFilter{})
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func testStats(t *testing.T, s Storage) {
	ctx := context.Background()
	seedRequestLogs(t, s)
	for _, typ := range []string{models.ErrorTypeProxyCheck, models.ErrorTypeProxyCheck, models.ErrorTypePanic} {
		_, err := s.AddErrorLog(ctx, &models.ErrorLog{ErrorType: typ, Message: "m", RequestTime: suiteBase.Add(time.Minute)})
		require.NoError(t, err)
	}
	// Outside the window.
	_, err := s.AddErrorLog(ctx, &models.ErrorLog{ErrorType: "old", Message: "m", RequestTime: suiteBase.AddDate(0, 0, -30)})
	require.NoError(t, err)

	stats, err := s.Stats(ctx, suiteBase, suiteBase.Add(3*time.Minute))
	require.NoError(t, err)

	assert.Equal(t, int64(4), stats.Requests.Total)
	assert.Equal(t, int64(2), stats.Requests.Successful)
	assert.InDelta(t, 50.0, stats.Requests.SuccessRate, 0.001)
	assert.InDelta(t, (12.0+40+5+1)/4, stats.Requests.AvgLatencyMs, 0.001)
	assert.Equal(t, int64(2), stats.Requests.UniqueAPIKeys)

	assert.Equal(t, int64(3), stats.Errors.Total)
	assert.Equal(t, map[string]int64{models.ErrorTypeProxyCheck: 2, models.ErrorTypePanic: 1}, stats.Errors.Breakdown)

	empty, err := s.Stats(ctx, suiteBase.AddDate(1, 0, 0), suiteBase.AddDate(1, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, int64(0), empty.Requests.Total)
	assert.Equal(t, 0.0, empty.Requests.SuccessRate)
	assert.Equal(t, 0.0, empty.Requests.AvgLatencyMs)
	assert.Empty(t, empty.Errors.Breakdown)
}
