package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"proxygate/internal/models"
)

// sqlStorage implements Storage on database/sql for both SQLite and
// PostgreSQL. Queries are written with ? placeholders and rebound per dialect.
type sqlStorage struct {
	db      *sql.DB
	dialect dialect
}

const requestLogColumns = `id, client_ip, method, path, api_key, request_body, response_body, is_success, status_code, latency_ms, created_at`

const errorLogColumns = `id, error_type, message, error_code, path, client_id, request_body, request_time`

func (s *sqlStorage) q(query string) string {
	return s.dialect.rebind(query)
}

// ListProxies returns every proxy ordered by ID.
func (s *sqlStorage) ListProxies(ctx context.Context) ([]*models.Proxy, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, url, created_at FROM proxies ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list proxies: %w", err)
	}
	defer rows.Close()

	proxies := make([]*models.Proxy, 0)
	for rows.Next() {
		p := &models.Proxy{}
		if err := rows.Scan(&p.ID, &p.URL, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan proxy: %w", err)
		}
		proxies = append(proxies, p)
	}
	return proxies, rows.Err()
}

func (s *sqlStorage) GetProxy(ctx context.Context, id int64) (*models.Proxy, error) {
	p := &models.Proxy{}
	err := s.db.QueryRowContext(ctx, s.q(`SELECT id, url, created_at FROM proxies WHERE id = ?`), id).
		Scan(&p.ID, &p.URL, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("proxy %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get proxy: %w", err)
	}
	return p, nil
}

// AddProxies inserts inside one transaction; URLs already present are
// skipped by the unique constraint.
func (s *sqlStorage) AddProxies(ctx context.Context, urls []string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, s.q(`INSERT INTO proxies (url, created_at) VALUES (?, ?) ON CONFLICT (url) DO NOTHING`))
	if err != nil {
		return 0, fmt.Errorf("failed to prepare proxy insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	added := 0
	for _, u := range urls {
		res, err := stmt.ExecContext(ctx, u, now)
		if err != nil {
			return 0, fmt.Errorf("failed to insert proxy: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to read affected rows: %w", err)
		}
		added += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit proxies: %w", err)
	}
	return added, nil
}

func (s *sqlStorage) DeleteProxy(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM proxies WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete proxy %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("proxy %d: %w", id, ErrNotFound)
	}
	return nil
}

func (s *sqlStorage) AddRequestLog(ctx context.Context, l *models.RequestLog) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, s.q(`
		INSERT INTO request_logs (client_ip, method, path, api_key, request_body, response_body, is_success, status_code, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`),
		nullString(l.ClientIP), l.Method, l.Path, nullString(l.APIKey),
		nullString(l.RequestBody), nullString(l.ResponseBody), l.IsSuccess,
		nullInt(int64(l.StatusCode)), l.LatencyMs, dbTime(l.CreatedAt),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert request log: %w", err)
	}
	return id, nil
}

func (s *sqlStorage) AddErrorLog(ctx context.Context, l *models.ErrorLog) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, s.q(`
		INSERT INTO error_logs (error_type, message, error_code, path, client_id, request_body, request_time)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id`),
		l.ErrorType, l.Message, nullInt(int64(l.ErrorCode)), nullString(l.Path),
		nullString(l.ClientID), nullString(l.RequestBody), dbTime(l.RequestTime),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert error log: %w", err)
	}
	return id, nil
}

// requestLogWhere renders the filter's search conditions.
func requestLogWhere(f models.RequestLogFilter) (string, []any) {
	var conds []string
	var args []any
	add := func(expr, value string) {
		if value == "" {
			return
		}
		conds = append(conds, expr+` LIKE ? ESCAPE '\'`)
		args = append(args, containsPattern(value))
	}
	add("LOWER(method)", f.Method)
	add("LOWER(path)", f.Path)
	add("LOWER(COALESCE(api_key, ''))", f.Key)
	add("CAST(status_code AS TEXT)", f.StatusCode)

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (s *sqlStorage) ListRequestLogs(ctx context.Context, f models.RequestLogFilter) ([]models.RequestLog, error) {
	f.Normalize()
	where, args := requestLogWhere(f)
	// SortBy and SortOrder are whitelisted by Normalize.
	query := `SELECT ` + requestLogColumns + ` FROM request_logs` + where +
		fmt.Sprintf(" ORDER BY %s %s, id %s LIMIT ? OFFSET ?", f.SortBy, strings.ToUpper(f.SortOrder), strings.ToUpper(f.SortOrder))
	args = append(args, f.Limit, f.Offset())

	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list request logs: %w", err)
	}
	defer rows.Close()

	logs := make([]models.RequestLog, 0)
	for rows.Next() {
		l, err := scanRequestLog(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, *l)
	}
	return logs, rows.Err()
}

func (s *sqlStorage) CountRequestLogs(ctx context.Context, f models.RequestLogFilter) (int64, error) {
	where, args := requestLogWhere(f)
	var n int64
	if err := s.db.QueryRowContext(ctx, s.q(`SELECT COUNT(*) FROM request_logs`+where), args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count request logs: %w", err)
	}
	return n, nil
}

func (s *sqlStorage) GetRequestLog(ctx context.Context, id int64) (*models.RequestLog, error) {
	row := s.db.QueryRowContext(ctx, s.q(`SELECT `+requestLogColumns+` FROM request_logs WHERE id = ?`), id)
	l, err := scanRequestLog(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("request log %d: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return l, nil
}

func (s *sqlStorage) ListErrorLogs(ctx context.Context, f models.ErrorLogFilter) ([]models.ErrorLog, error) {
	f.Normalize()
	var conds []string
	var args []any
	if f.StartDate != nil {
		conds = append(conds, "request_time >= ?")
		args = append(args, f.StartDate.UTC())
	}
	if f.EndDate != nil {
		conds = append(conds, "request_time <= ?")
		args = append(args, f.EndDate.UTC())
	}
	if f.ErrorType != "" {
		conds = append(conds, "error_type = ?")
		args = append(args, f.ErrorType)
	}
	query := `SELECT ` + errorLogColumns + ` FROM error_logs`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY request_time DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, f.Limit, f.Offset)

	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list error logs: %w", err)
	}
	defer rows.Close()

	logs := make([]models.ErrorLog, 0)
	for rows.Next() {
		var (
			l                       models.ErrorLog
			code                    sql.NullInt64
			path, clientID, reqBody sql.NullString
		)
		if err := rows.Scan(&l.ID, &l.ErrorType, &l.Message, &code, &path, &clientID, &reqBody, &l.RequestTime); err != nil {
			return nil, fmt.Errorf("failed to scan error log: %w", err)
		}
		l.ErrorCode = int(code.Int64)
		l.Path = path.String
		l.ClientID = clientID.String
		l.RequestBody = reqBody.String
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func (s *sqlStorage) DeleteLogsBefore(ctx context.Context, cutoff time.Time, kind models.LogKind) (models.CleanupResult, error) {
	var result models.CleanupResult

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	cutoff = cutoff.UTC()
	if kind.IncludesErrors() {
		res, err := tx.ExecContext(ctx, s.q(`DELETE FROM error_logs WHERE request_time < ?`), cutoff)
		if err != nil {
			return result, fmt.Errorf("failed to delete error logs: %w", err)
		}
		result.ErrorLogs, _ = res.RowsAffected()
	}
	if kind.IncludesRequests() {
		res, err := tx.ExecContext(ctx, s.q(`DELETE FROM request_logs WHERE created_at < ?`), cutoff)
		if err != nil {
			return result, fmt.Errorf("failed to delete request logs: %w", err)
		}
		result.RequestLogs, _ = res.RowsAffected()
	}

	if err := tx.Commit(); err != nil {
		return models.CleanupResult{}, fmt.Errorf("failed to commit log cleanup: %w", err)
	}
	return result, nil
}

func (s *sqlStorage) Stats(ctx context.Context, start, end time.Time) (*models.UsageStats, error) {
	start, end = start.UTC(), end.UTC()
	stats := &models.UsageStats{
		Period: models.StatsPeriod{StartDate: start, EndDate: end},
		Errors: models.ErrorLogStats{Breakdown: make(map[string]int64)},
	}

	err := s.db.QueryRowContext(ctx, s.q(`
		SELECT
			COUNT(id),
			COALESCE(SUM(CASE WHEN is_success THEN 1 ELSE 0 END), 0),
			COALESCE(AVG(CAST(latency_ms AS REAL)), 0),
			COUNT(DISTINCT NULLIF(api_key, ''))
		FROM request_logs
		WHERE created_at >= ? AND created_at <= ?`), start, end).
		Scan(&stats.Requests.Total, &stats.Requests.Successful, &stats.Requests.AvgLatencyMs, &stats.Requests.UniqueAPIKeys)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate request logs: %w", err)
	}
	stats.Requests.SuccessRate = models.SuccessRatePercent(stats.Requests.Successful, stats.Requests.Total)

	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT error_type, COUNT(id)
		FROM error_logs
		WHERE request_time >= ? AND request_time <= ?
		GROUP BY error_type`), start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate error logs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var errType string
		var n int64
		if err := rows.Scan(&errType, &n); err != nil {
			return nil, fmt.Errorf("failed to scan error breakdown: %w", err)
		}
		stats.Errors.Breakdown[errType] = n
		stats.Errors.Total += n
	}
	return stats, rows.Err()
}

func (s *sqlStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *sqlStorage) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequestLog(row rowScanner) (*models.RequestLog, error) {
	var (
		l                                   models.RequestLog
		clientIP, apiKey, reqBody, respBody sql.NullString
		status, latency                     sql.NullInt64
	)
	err := row.Scan(&l.ID, &clientIP, &l.Method, &l.Path, &apiKey, &reqBody, &respBody,
		&l.IsSuccess, &status, &latency, &l.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan request log: %w", err)
	}
	l.ClientIP = clientIP.String
	l.APIKey = apiKey.String
	l.RequestBody = reqBody.String
	l.ResponseBody = respBody.String
	l.StatusCode = int(status.Int64)
	l.LatencyMs = latency.Int64
	return &l, nil
}
