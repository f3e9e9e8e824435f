package models

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruncateBody(t *testing.T) {
	assert.Equal(t, "short", TruncateBody("short", 10))
	assert.Equal(t, "0123456789", TruncateBody("0123456789", 10))
	assert.Equal(t, "01234"+TruncatedSuffix, TruncateBody("0123456789", 5))

	long := strings.Repeat("a", DefaultMaxBodySize+1)
	got := TruncateBody(long, 0)
	assert.Equal(t, DefaultMaxBodySize+len(TruncatedSuffix), len(got))
	assert.True(t, strings.HasSuffix(got, TruncatedSuffix))
}

func TestTruncateBody_RuneBoundary(t *testing.T) {
	// "é" is two bytes; cutting at 3 must not split the second one.
	got := TruncateBody("aéé", 4)
	assert.Equal(t, "aé"+TruncatedSuffix, got)

	got = TruncateBody("aéé", 2)
	assert.Equal(t, "a"+TruncatedSuffix, got)
}

func TestRequestLog_Sanitize(t *testing.T) {
	l := &RequestLog{
		ClientIP:     strings.Repeat("1", 80),
		RequestBody:  strings.Repeat("x", 20),
		ResponseBody: "ok",
	}
	l.Sanitize(10)

	assert.Len(t, l.ClientIP, MaxClientIPLength)
	assert.Equal(t, strings.Repeat("x", 10)+TruncatedSuffix, l.RequestBody)
	assert.Equal(t, "ok", l.ResponseBody)
}

func TestParseLogKind(t *testing.T) {
	tests := []struct {
		input   string
		want    LogKind
		wantErr bool
	}{
		{"error", LogKindError, false},
		{"REQUEST", LogKindRequest, false},
		{"both", LogKindBoth, false},
		{"", LogKindBoth, false},
		{"all", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLogKind(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.True(t, LogKindBoth.IncludesErrors())
	assert.True(t, LogKindBoth.IncludesRequests())
	assert.False(t, LogKindError.IncludesRequests())
	assert.False(t, LogKindRequest.IncludesErrors())
}

func TestRequestLogFilter_Normalize(t *testing.T) {
	f := &RequestLogFilter{Page: 0, Limit: 500, SortBy: "drop table", SortOrder: "ASC"}
	f.Normalize()

	assert.Equal(t, 1, f.Page)
	assert.Equal(t, MaxPageSize, f.Limit)
	assert.Equal(t, "id", f.SortBy)
	assert.Equal(t, "asc", f.SortOrder)
	assert.Equal(t, 0, f.Offset())

	f = &RequestLogFilter{Page: 3, SortBy: "latency_ms", SortOrder: "sideways"}
	f.Normalize()
	assert.Equal(t, DefaultPageSize, f.Limit)
	assert.Equal(t, "latency_ms", f.SortBy)
	assert.Equal(t, "desc", f.SortOrder)
	assert.Equal(t, 30, f.Offset())
}

func TestRequestLogFilter_NormalizeHugePage(t *testing.T) {
	f := &RequestLogFilter{Page: 1 << 62, Limit: 20}
	f.Normalize()

	assert.Equal(t, MaxPage, f.Page)
	assert.Positive(t, f.Offset())

	f = &RequestLogFilter{Page: MaxPage + 1, Limit: MaxPageSize}
	f.Normalize()
	assert.Positive(t, f.Offset())
	assert.Positive(t, f.Offset()+f.Limit)
}

func TestErrorLogFilter_Normalize(t *testing.T) {
	f := &ErrorLogFilter{Limit: 0, Offset: -5}
	f.Normalize()
	assert.Equal(t, 100, f.Limit)
	assert.Equal(t, 0, f.Offset)
}

func TestDefaultStatsPeriod(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	p := DefaultStatsPeriod(now)
	assert.Equal(t, time.Date(2024, 3, 3, 12, 0, 0, 0, time.UTC), p.StartDate)
	assert.Equal(t, now, p.EndDate)
}

func TestSuccessRatePercent(t *testing.T) {
	assert.Equal(t, 0.0, SuccessRatePercent(0, 0))
	assert.Equal(t, 75.0, SuccessRatePercent(3, 4))
	assert.Equal(t, 100.0, SuccessRatePercent(5, 5))
}
