package migrate

// Schema returns the current step lists for the log/metric row families:
// the core table steps and the separately toggleable read-optimization
// index steps.
//
// Column codes for level and type follow the fixed tables in package
// record. Timestamps are unix nanoseconds UTC, tags a JSON object.
func Schema() (steps, index []Step) {
	steps = []Step{
		{
			ID: "001_create_log_lines",
			Up: `CREATE TABLE log_lines (
				id      INTEGER PRIMARY KEY AUTOINCREMENT,
				host    TEXT NOT NULL,
				message TEXT NOT NULL,
				level   INTEGER NOT NULL,
				tags    TEXT NOT NULL DEFAULT '{}',
				ts      INTEGER NOT NULL
			)`,
			Down: `DROP TABLE log_lines`,
		},
		{
			ID: "002_create_metrics",
			Up: `CREATE TABLE metrics (
				id    INTEGER PRIMARY KEY AUTOINCREMENT,
				host  TEXT NOT NULL,
				path  TEXT NOT NULL,
				level INTEGER NOT NULL,
				type  INTEGER NOT NULL,
				value REAL NOT NULL,
				ts    INTEGER NOT NULL
			)`,
			Down: `DROP TABLE metrics`,
		},
	}

	index = []Step{
		{
			ID:       "101_index_log_lines_ts",
			Up:       `CREATE INDEX idx_log_lines_ts ON log_lines(ts)`,
			Down:     `DROP INDEX idx_log_lines_ts`,
			Requires: "001_create_log_lines",
		},
		{
			ID:       "102_index_metrics_path_ts",
			Up:       `CREATE INDEX idx_metrics_path_ts ON metrics(path, ts)`,
			Down:     `DROP INDEX idx_metrics_path_ts`,
			Requires: "002_create_metrics",
		},
	}

	return steps, index
}
