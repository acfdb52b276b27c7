package sink

import (
	"context"
	"fmt"

	"github.com/logvault/logvault/internal/codec"
	"github.com/logvault/logvault/internal/conn"
	"github.com/logvault/logvault/internal/record"
)

// Read helpers for verification and the status command. They operate on a
// caller-supplied handle, not the sink's own: while a sink is Ready or
// Draining its handle is exclusively owned by the writer, so readers open a
// second handle (shared mode) or wait until after Shutdown.

// CountLogLines returns the number of rows in log_lines.
func CountLogLines(ctx context.Context, h conn.Handle) (int, error) {
	return countRows(ctx, h, codec.TableLogLines)
}

// CountMetrics returns the number of rows in metrics.
func CountMetrics(ctx context.Context, h conn.Handle) (int, error) {
	return countRows(ctx, h, codec.TableMetrics)
}

func countRows(ctx context.Context, h conn.Handle, table string) (int, error) {
	var n int
	if err := h.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

// ReadLogLines returns all log rows in insertion order, decoded back into
// records through the row codec.
func ReadLogLines(ctx context.Context, h conn.Handle) ([]record.LogRecord, error) {
	rows, err := h.QueryContext(ctx, `
		SELECT host, message, level, tags, ts
		FROM log_lines
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query log lines: %w", err)
	}
	defer rows.Close()

	var recs []record.LogRecord
	for rows.Next() {
		var (
			host, message, tags string
			level, ts           int64
		)
		if err := rows.Scan(&host, &message, &level, &tags, &ts); err != nil {
			return nil, fmt.Errorf("scan log line: %w", err)
		}
		rec, err := codec.DecodeLog(codec.Row{
			Table: codec.TableLogLines,
			Columns: map[string]any{
				codec.ColHost:    host,
				codec.ColMessage: message,
				codec.ColLevel:   level,
				codec.ColTags:    tags,
				codec.ColTS:      ts,
			},
		})
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate log lines: %w", err)
	}
	return recs, nil
}

// ReadMetrics returns all metric rows in insertion order, decoded back into
// records through the row codec.
func ReadMetrics(ctx context.Context, h conn.Handle) ([]record.MetricRecord, error) {
	rows, err := h.QueryContext(ctx, `
		SELECT host, path, level, type, value, ts
		FROM metrics
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query metrics: %w", err)
	}
	defer rows.Close()

	var recs []record.MetricRecord
	for rows.Next() {
		var (
			host, path      string
			level, kind, ts int64
			value           float64
		)
		if err := rows.Scan(&host, &path, &level, &kind, &value, &ts); err != nil {
			return nil, fmt.Errorf("scan metric: %w", err)
		}
		rec, err := codec.DecodeMetric(codec.Row{
			Table: codec.TableMetrics,
			Columns: map[string]any{
				codec.ColHost:  host,
				codec.ColPath:  path,
				codec.ColLevel: level,
				codec.ColType:  kind,
				codec.ColValue: value,
				codec.ColTS:    ts,
			},
		})
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate metrics: %w", err)
	}
	return recs, nil
}
