package models

import (
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	DefaultMaxBodySize = 50000
	MaxClientIPLength  = 50
	TruncatedSuffix    = "... [truncated]"
)

// Error log types recorded by the service itself.
const (
	ErrorTypeProxyCheck = "proxy_check"
	ErrorTypePanic      = "panic"
	ErrorTypeServer     = "server_error"
)

// LogKind selects which log tables an operation applies to.
type LogKind string

const (
	LogKindError   LogKind = "error"
	LogKindRequest LogKind = "request"
	LogKindBoth    LogKind = "both"
)

func ParseLogKind(s string) (LogKind, error) {
	switch LogKind(strings.ToLower(strings.TrimSpace(s))) {
	case LogKindError:
		return LogKindError, nil
	case LogKindRequest:
		return LogKindRequest, nil
	case LogKindBoth, "":
		return LogKindBoth, nil
	}
	return "", fmt.Errorf("invalid log kind: %q", s)
}

// IncludesErrors reports whether k covers the error log table.
func (k LogKind) IncludesErrors() bool { return k == LogKindError || k == LogKindBoth }

// IncludesRequests reports whether k covers the request log table.
func (k LogKind) IncludesRequests() bool { return k == LogKindRequest || k == LogKindBoth }

// RequestLog is one API call as seen by the request logging middleware.
type RequestLog struct {
	ID           int64     `json:"id"`
	ClientIP     string    `json:"client_ip"`
	Method       string    `json:"method"`
	Path         string    `json:"path"`
	APIKey       string    `json:"api_key,omitempty"`
	RequestBody  string    `json:"request_body,omitempty"`
	ResponseBody string    `json:"response_body,omitempty"`
	IsSuccess    bool      `json:"is_success"`
	StatusCode   int       `json:"status_code"`
	LatencyMs    int64     `json:"latency_ms"`
	CreatedAt    time.Time `json:"created_at"`
}

// Sanitize applies the size limits enforced before a log is persisted.
func (l *RequestLog) Sanitize(maxBodySize int) {
	l.ClientIP = truncateString(l.ClientIP, MaxClientIPLength)
	l.RequestBody = TruncateBody(l.RequestBody, maxBodySize)
	l.ResponseBody = TruncateBody(l.ResponseBody, maxBodySize)
}

type ErrorLog struct {
	ID          int64     `json:"id"`
	ErrorType   string    `json:"error_type"`
	Message     string    `json:"message"`
	ErrorCode   int       `json:"error_code,omitempty"`
	Path        string    `json:"path,omitempty"`
	ClientID    string    `json:"client_id,omitempty"`
	RequestBody string    `json:"request_body,omitempty"`
	RequestTime time.Time `json:"request_time"`
}

func (l *ErrorLog) Sanitize(maxBodySize int) {
	l.RequestBody = TruncateBody(l.RequestBody, maxBodySize)
}

// TruncateBody cuts body to at most max bytes on a rune boundary and marks
// the cut. A non-positive max selects DefaultMaxBodySize.
func TruncateBody(body string, max int) string {
	if max <= 0 {
		max = DefaultMaxBodySize
	}
	if len(body) <= max {
		return body
	}
	return truncateString(body, max) + TruncatedSuffix
}

func truncateString(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// Sortable request log columns.
var requestLogSortColumns = map[string]bool{
	"id":          true,
	"created_at":  true,
	"status_code": true,
	"latency_ms":  true,
}

const (
	DefaultPageSize = 15
	MaxPageSize     = 100

	// MaxPage keeps (Page-1)*Limit within an int.
	MaxPage = math.MaxInt / MaxPageSize
)

// RequestLogFilter selects a page of request logs. Text filters are
// case-insensitive substring matches.
type RequestLogFilter struct {
	Page       int
	Limit      int
	Method     string
	Path       string
	Key        string
	StatusCode string
	SortBy     string
	SortOrder  string
}

// Normalize clamps paging values and replaces unknown sort settings with
// id descending.
func (f *RequestLogFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Page > MaxPage {
		f.Page = MaxPage
	}
	if f.Limit < 1 {
		f.Limit = DefaultPageSize
	}
	if f.Limit > MaxPageSize {
		f.Limit = MaxPageSize
	}
	if !requestLogSortColumns[f.SortBy] {
		f.SortBy = "id"
	}
	f.SortOrder = strings.ToLower(f.SortOrder)
	if f.SortOrder != "asc" {
		f.SortOrder = "desc"
	}
}

func (f *RequestLogFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}

type ErrorLogFilter struct {
	Limit     int
	Offset    int
	StartDate *time.Time
	EndDate   *time.Time
	ErrorType string
}

func (f *ErrorLogFilter) Normalize() {
	if f.Limit < 1 {
		f.Limit = 100
	}
	if f.Limit > 1000 {
		f.Limit = 1000
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}

type RequestLogListResponse struct {
	Logs       []RequestLog `json:"logs"`
	TotalCount int64        `json:"total_count"`
	Page       int          `json:"page"`
	PageSize   int          `json:"page_size"`
	HasMore    bool         `json:"has_more"`
}

type ErrorLogListResponse struct {
	Logs   []ErrorLog `json:"logs"`
	Limit  int        `json:"limit"`
	Offset int        `json:"offset"`
}

// UsageStats summarizes request and error logs over a period.
type UsageStats struct {
	Period   StatsPeriod   `json:"period"`
	Requests RequestStats  `json:"requests"`
	Errors   ErrorLogStats `json:"errors"`
}

type StatsPeriod struct {
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

type RequestStats struct {
	Total         int64   `json:"total"`
	Successful    int64   `json:"successful"`
	SuccessRate   float64 `json:"success_rate"`
	AvgLatencyMs  float64 `json:"avg_latency_ms"`
	UniqueAPIKeys int64   `json:"unique_api_keys"`
}

type ErrorLogStats struct {
	Total     int64            `json:"total"`
	Breakdown map[string]int64 `json:"breakdown"`
}

// DefaultStatsPeriod returns the last seven days ending at now.
func DefaultStatsPeriod(now time.Time) StatsPeriod {
	return StatsPeriod{StartDate: now.AddDate(0, 0, -7), EndDate: now}
}

// SuccessRatePercent computes successful/total as a percentage; zero when
// there were no requests.
func SuccessRatePercent(successful, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(successful) / float64(total) * 100
}

type CleanupResult struct {
	ErrorLogs   int64 `json:"error_logs"`
	RequestLogs int64 `json:"request_logs"`
}
