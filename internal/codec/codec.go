// Package codec maps domain records onto the persisted row shape and back.
//
// Encoding is pure: no I/O, no defaults filled in. Callers (the sink) are
// responsible for populating Host and Time before encoding. All persisted
// text is normalized to Unicode NFC so byte-level comparison and indexing at
// read time are stable regardless of how producers composed their strings.
package codec

import (
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/logvault/logvault/internal/record"
)

// Table names for the two row families.
const (
	TableLogLines = "log_lines"
	TableMetrics  = "metrics"
)

// Column names shared by both row families.
const (
	ColHost    = "host"
	ColMessage = "message"
	ColLevel   = "level"
	ColTags    = "tags"
	ColPath    = "path"
	ColType    = "type"
	ColValue   = "value"
	ColTS      = "ts"
)

// Row is the persisted representation of one record: a target table plus its
// column values. Timestamps are stored as int64 unix nanoseconds (UTC),
// Level and Type as their fixed integer codes, Tags as a JSON object.
type Row struct {
	Table   string
	Columns map[string]any
}

// EncodeLog maps a log record to a log_lines row.
// Fails with *record.UnknownLevelError if the level is outside the fixed table.
func EncodeLog(rec record.LogRecord) (Row, error) {
	if !rec.Level.Valid() {
		return Row{}, &record.UnknownLevelError{Code: int(rec.Level)}
	}

	tags, err := encodeTags(rec.Tags)
	if err != nil {
		return Row{}, fmt.Errorf("encode tags: %w", err)
	}

	return Row{
		Table: TableLogLines,
		Columns: map[string]any{
			ColHost:    norm.NFC.String(rec.Host),
			ColMessage: norm.NFC.String(rec.Message),
			ColLevel:   int64(rec.Level),
			ColTags:    tags,
			ColTS:      rec.Time.UTC().UnixNano(),
		},
	}, nil
}

// EncodeMetric maps a metric record to a metrics row.
// A zero Level encodes as the Info code. Fails with
// *record.UnknownMetricKindError for kinds outside the fixed table.
func EncodeMetric(rec record.MetricRecord) (Row, error) {
	if !rec.Kind.Valid() {
		return Row{}, &record.UnknownMetricKindError{Code: int(rec.Kind)}
	}

	level := rec.Level
	if level == 0 {
		level = record.LevelInfo
	}
	if !level.Valid() {
		return Row{}, &record.UnknownLevelError{Code: int(level)}
	}

	return Row{
		Table: TableMetrics,
		Columns: map[string]any{
			ColHost:  norm.NFC.String(rec.Host),
			ColPath:  norm.NFC.String(rec.Path),
			ColLevel: int64(level),
			ColType:  int64(rec.Kind),
			ColValue: rec.Value,
			ColTS:    rec.Time.UTC().UnixNano(),
		},
	}, nil
}

// DecodeLog reconstructs a log record from a log_lines row.
func DecodeLog(row Row) (record.LogRecord, error) {
	host, err := row.String(ColHost)
	if err != nil {
		return record.LogRecord{}, err
	}
	msg, err := row.String(ColMessage)
	if err != nil {
		return record.LogRecord{}, err
	}
	code, err := row.Int(ColLevel)
	if err != nil {
		return record.LogRecord{}, err
	}
	level, err := record.LevelFromCode(int(code))
	if err != nil {
		return record.LogRecord{}, err
	}
	tagsJSON, err := row.String(ColTags)
	if err != nil {
		return record.LogRecord{}, err
	}
	tags, err := decodeTags(tagsJSON)
	if err != nil {
		return record.LogRecord{}, fmt.Errorf("decode tags: %w", err)
	}
	ts, err := row.Time(ColTS)
	if err != nil {
		return record.LogRecord{}, err
	}

	return record.LogRecord{
		Time:    ts,
		Level:   level,
		Message: msg,
		Host:    host,
		Tags:    tags,
	}, nil
}

// DecodeMetric reconstructs a metric record from a metrics row.
func DecodeMetric(row Row) (record.MetricRecord, error) {
	host, err := row.String(ColHost)
	if err != nil {
		return record.MetricRecord{}, err
	}
	path, err := row.String(ColPath)
	if err != nil {
		return record.MetricRecord{}, err
	}
	levelCode, err := row.Int(ColLevel)
	if err != nil {
		return record.MetricRecord{}, err
	}
	level, err := record.LevelFromCode(int(levelCode))
	if err != nil {
		return record.MetricRecord{}, err
	}
	kindCode, err := row.Int(ColType)
	if err != nil {
		return record.MetricRecord{}, err
	}
	kind, err := record.KindFromCode(int(kindCode))
	if err != nil {
		return record.MetricRecord{}, err
	}
	value, err := row.Float(ColValue)
	if err != nil {
		return record.MetricRecord{}, err
	}
	ts, err := row.Time(ColTS)
	if err != nil {
		return record.MetricRecord{}, err
	}

	return record.MetricRecord{
		Path:  path,
		Value: value,
		Kind:  kind,
		Time:  ts,
		Host:  host,
		Level: level,
	}, nil
}

func encodeTags(tags map[string]string) (string, error) {
	if len(tags) == 0 {
		return "{}", nil
	}
	normalized := make(map[string]string, len(tags))
	for k, v := range tags {
		normalized[norm.NFC.String(k)] = norm.NFC.String(v)
	}
	b, err := json.Marshal(normalized)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeTags(s string) (map[string]string, error) {
	if s == "" || s == "{}" {
		return nil, nil
	}
	var tags map[string]string
	if err := json.Unmarshal([]byte(s), &tags); err != nil {
		return nil, err
	}
	return tags, nil
}

// String returns the named column as text.
func (r Row) String(col string) (string, error) {
	v, ok := r.Columns[col]
	if !ok {
		return "", &TypeMismatchError{Column: col, Want: "string", Got: "absent"}
	}
	s, ok := v.(string)
	if !ok {
		return "", &TypeMismatchError{Column: col, Want: "string", Got: typeName(v)}
	}
	return s, nil
}

// Int returns the named column as a 64-bit integer.
func (r Row) Int(col string) (int64, error) {
	v, ok := r.Columns[col]
	if !ok {
		return 0, &TypeMismatchError{Column: col, Want: "int64", Got: "absent"}
	}
	n, ok := v.(int64)
	if !ok {
		return 0, &TypeMismatchError{Column: col, Want: "int64", Got: typeName(v)}
	}
	return n, nil
}

// Float returns the named column as a 64-bit float.
func (r Row) Float(col string) (float64, error) {
	v, ok := r.Columns[col]
	if !ok {
		return 0, &TypeMismatchError{Column: col, Want: "float64", Got: "absent"}
	}
	f, ok := v.(float64)
	if !ok {
		return 0, &TypeMismatchError{Column: col, Want: "float64", Got: typeName(v)}
	}
	return f, nil
}

// Time returns the named column, stored as unix nanoseconds, as a UTC time.
func (r Row) Time(col string) (time.Time, error) {
	ns, err := r.Int(col)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(0, ns).UTC(), nil
}

// TypeMismatchError reports a column read under an incompatible type.
// It names the column, the requested type, and the actual stored type.
type TypeMismatchError struct {
	Column string
	Want   string
	Got    string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("column %q: requested %s, stored %s", e.Column, e.Want, e.Got)
}

func typeName(v any) string {
	if v == nil {
		return "nil"
	}
	return fmt.Sprintf("%T", v)
}
