package sink

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/logvault/logvault/internal/codec"
)

// run is the single writer loop. All store writes happen here; external
// callers reach it only through the mailbox.
//
// A batch write triggered by the high-water mark that fails with no waiter
// around is logged and remembered; the error is delivered to the next flush
// or shutdown waiter so at-least-once delivery is only ever claimed by a
// successful Flush.
func (s *Sink) run() {
	ctx := context.Background()
	pending := make([]codec.Row, 0, s.batchSize)
	var deferred error

	for {
		msg, ok := s.mbox.Dequeue()
		if !ok {
			return
		}

		switch msg.kind {
		case msgRow:
			pending = append(pending, msg.row)
			if len(pending) >= s.batchSize {
				if err := s.writeBatch(ctx, pending); err != nil {
					s.log.Error("batch write failed",
						"target", s.name, "rows", len(pending), "error", err)
					deferred = errors.Join(deferred, err)
				}
				pending = pending[:0]
			}

		case msgFlush:
			err := s.writeBatch(ctx, pending)
			pending = pending[:0]
			msg.done <- errors.Join(deferred, err)
			deferred = nil

		case msgShutdown:
			// CloseWith guarantees this is the final message; the mailbox
			// is empty behind it.
			err := s.writeBatch(ctx, pending)
			pending = pending[:0]
			cerr := s.h.Close()
			s.setState(StateClosed)
			msg.done <- errors.Join(deferred, err, cerr)
			s.log.Info("sink closed", "target", s.name, "sink_id", s.id)
			return
		}
	}
}

// writeBatch persists the pending rows in one transaction. A nil or empty
// batch is a successful no-op. Row insertion order follows slice order.
func (s *Sink) writeBatch(ctx context.Context, rows []codec.Row) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.h.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	defer tx.Rollback()

	for _, row := range rows {
		if err := insertRow(ctx, tx, row); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}

	s.written.Add(uint64(len(rows)))
	s.log.Debug("batch written", "target", s.name, "rows", len(rows))
	return nil
}

func insertRow(ctx context.Context, tx *sql.Tx, row codec.Row) error {
	switch row.Table {
	case codec.TableLogLines:
		_, err := tx.ExecContext(ctx, `
			INSERT INTO log_lines (host, message, level, tags, ts)
			VALUES (?, ?, ?, ?, ?)
		`,
			row.Columns[codec.ColHost],
			row.Columns[codec.ColMessage],
			row.Columns[codec.ColLevel],
			row.Columns[codec.ColTags],
			row.Columns[codec.ColTS],
		)
		if err != nil {
			return fmt.Errorf("insert log line: %w", err)
		}
		return nil

	case codec.TableMetrics:
		_, err := tx.ExecContext(ctx, `
			INSERT INTO metrics (host, path, level, type, value, ts)
			VALUES (?, ?, ?, ?, ?, ?)
		`,
			row.Columns[codec.ColHost],
			row.Columns[codec.ColPath],
			row.Columns[codec.ColLevel],
			row.Columns[codec.ColType],
			row.Columns[codec.ColValue],
			row.Columns[codec.ColTS],
		)
		if err != nil {
			return fmt.Errorf("insert metric: %w", err)
		}
		return nil

	default:
		return fmt.Errorf("unknown row table %q", row.Table)
	}
}
