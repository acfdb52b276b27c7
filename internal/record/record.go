// Package record defines the domain events accepted by the sink: log lines
// and metric points, together with the fixed integer-code tables used to
// persist their Level and metric Type columns.
//
// The code tables are part of the persisted schema surface. Changing a code
// breaks decodability of existing rows, so any new level or metric kind
// requires a schema migration step.
package record

import (
	"fmt"
	"time"
)

// Level is the ordered severity of a log line.
type Level int

// Severity levels in ascending order. The integer values are the persisted
// column codes and must not be renumbered.
const (
	LevelDebug Level = 1
	LevelInfo  Level = 2
	LevelWarn  Level = 3
	LevelError Level = 4
	LevelFatal Level = 5
)

// levelNames is the fixed bidirectional Level table (code side is the Level
// value itself).
var levelNames = map[Level]string{
	LevelDebug: "debug",
	LevelInfo:  "info",
	LevelWarn:  "warn",
	LevelError: "error",
	LevelFatal: "fatal",
}

// String returns the lowercase level name, or "level(N)" for unknown codes.
func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// Valid reports whether the level is one of the defined codes.
func (l Level) Valid() bool {
	_, ok := levelNames[l]
	return ok
}

// LevelFromCode maps a persisted integer code back to a Level.
func LevelFromCode(code int) (Level, error) {
	l := Level(code)
	if !l.Valid() {
		return 0, &UnknownLevelError{Code: code}
	}
	return l, nil
}

// ParseLevel maps a lowercase level name to a Level.
func ParseLevel(name string) (Level, error) {
	for l, n := range levelNames {
		if n == name {
			return l, nil
		}
	}
	return 0, fmt.Errorf("unknown level %q", name)
}

// MetricKind classifies a metric point.
type MetricKind int

// Metric kinds. The integer values are the persisted Type column codes and
// must not be renumbered.
const (
	KindCounter   MetricKind = 1
	KindGauge     MetricKind = 2
	KindTimer     MetricKind = 3
	KindHistogram MetricKind = 4
	KindMeter     MetricKind = 5
)

var kindNames = map[MetricKind]string{
	KindCounter:   "counter",
	KindGauge:     "gauge",
	KindTimer:     "timer",
	KindHistogram: "histogram",
	KindMeter:     "meter",
}

// String returns the lowercase kind name, or "kind(N)" for unknown codes.
func (k MetricKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Valid reports whether the kind is one of the defined codes.
func (k MetricKind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// KindFromCode maps a persisted integer code back to a MetricKind.
func KindFromCode(code int) (MetricKind, error) {
	k := MetricKind(code)
	if !k.Valid() {
		return 0, &UnknownMetricKindError{Code: code}
	}
	return k, nil
}

// ParseKind maps a lowercase kind name to a MetricKind.
func ParseKind(name string) (MetricKind, error) {
	for k, n := range kindNames {
		if n == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown metric kind %q", name)
}

// LogRecord is a single log line produced upstream.
//
// Records are immutable once submitted: the sink consumes them exactly once
// and never mutates them. Zero-value Host and Time are filled in by the sink
// at submission (local host name, current UTC time).
type LogRecord struct {
	Time    time.Time
	Level   Level
	Message string
	Host    string
	Tags    map[string]string
}

// MetricRecord is a single metric point produced upstream.
//
// Path is a dotted hierarchical name ("web01.app.signin"). Level defaults to
// LevelInfo when unset; metric rows carry a severity column so mixed
// log/metric queries can filter uniformly.
type MetricRecord struct {
	Path  string
	Value float64
	Kind  MetricKind
	Time  time.Time
	Host  string
	Level Level
}

// UnknownLevelError reports a level code outside the fixed table.
type UnknownLevelError struct {
	Code int
}

func (e *UnknownLevelError) Error() string {
	return fmt.Sprintf("unknown level code %d", e.Code)
}

// UnknownMetricKindError reports a metric kind outside the fixed table.
type UnknownMetricKindError struct {
	Code int
}

func (e *UnknownMetricKindError) Error() string {
	return fmt.Sprintf("unknown metric kind code %d", e.Code)
}
