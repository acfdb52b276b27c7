package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/logvault/logvault/internal/conn"
	"github.com/logvault/logvault/internal/record"
	"github.com/logvault/logvault/internal/sink"
)

// sendEvent is one JSON line on the send command's input. Kind selects the
// row family; unset levels default to info.
type sendEvent struct {
	Kind    string            `json:"kind"` // "log" | "metric"
	Message string            `json:"message,omitempty"`
	Level   string            `json:"level,omitempty"`
	Tags    map[string]string `json:"tags,omitempty"`
	Path    string            `json:"path,omitempty"`
	Value   float64           `json:"value,omitempty"`
	Type    string            `json:"type,omitempty"`
	Host    string            `json:"host,omitempty"`
	Time    time.Time         `json:"time,omitempty"`
}

// NewSendCommand creates the send command: reads JSON-lines events from
// stdin, writes them through a sink, flushes, and shuts down.
func NewSendCommand(rootOpts *RootOptions) *cobra.Command {
	var host string

	cmd := &cobra.Command{
		Use:           "send",
		Short:         "Write JSON-lines events from stdin into the store",
		Long: `Write JSON-lines events from stdin into the store.

Each input line is one event:
  {"kind":"log","message":"hello world","level":"info","tags":{"app":"web"}}
  {"kind":"metric","path":"web01.app.signin","value":3,"type":"counter"}`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSend(rootOpts, cmd, cmd.InOrStdin(), host)
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "host stamped onto events that carry none (defaults to the local hostname)")
	return cmd
}

func runSend(opts *RootOptions, cmd *cobra.Command, in io.Reader, host string) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	mode, err := cfg.ConnMode()
	if err != nil {
		return err
	}

	log := slog.New(slog.NewTextHandler(os.Stderr,
		&slog.HandlerOptions{Level: cfg.SlogLevel()}))

	sinkOpts := []sink.Option{
		sink.WithName(cfg.Target),
		sink.WithBatchSize(cfg.BatchSize),
		sink.WithLogger(log),
	}
	if host != "" {
		sinkOpts = append(sinkOpts, sink.WithHost(host))
	}

	target, err := sink.New(
		func() (conn.Handle, error) { return conn.Open(mode, cfg.Store) },
		sinkOpts...,
	)
	if err != nil {
		return err
	}

	scanner := bufio.NewScanner(in)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var ev sendEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			target.Shutdown()
			return fmt.Errorf("line %d: %w", line, err)
		}
		if err := submitEvent(target, ev); err != nil {
			target.Shutdown()
			return fmt.Errorf("line %d: %w", line, err)
		}
	}
	if err := scanner.Err(); err != nil {
		target.Shutdown()
		return fmt.Errorf("read input: %w", err)
	}

	if err := target.Flush(); err != nil {
		target.Shutdown()
		return err
	}
	if err := target.Shutdown(); err != nil {
		return err
	}

	accepted, written := target.Stats()
	fmt.Fprintf(cmd.OutOrStdout(), "%s: accepted %d, written %d\n", target.Name(), accepted, written)
	return nil
}

func submitEvent(target *sink.Sink, ev sendEvent) error {
	switch ev.Kind {
	case "log":
		level := record.LevelInfo
		if ev.Level != "" {
			parsed, err := record.ParseLevel(ev.Level)
			if err != nil {
				return err
			}
			level = parsed
		}
		return target.SubmitLog(record.LogRecord{
			Time:    ev.Time,
			Level:   level,
			Message: ev.Message,
			Host:    ev.Host,
			Tags:    ev.Tags,
		})

	case "metric":
		kind, err := record.ParseKind(ev.Type)
		if err != nil {
			return err
		}
		var level record.Level
		if ev.Level != "" {
			level, err = record.ParseLevel(ev.Level)
			if err != nil {
				return err
			}
		}
		return target.SubmitMetric(record.MetricRecord{
			Path:  ev.Path,
			Value: ev.Value,
			Kind:  kind,
			Time:  ev.Time,
			Host:  ev.Host,
			Level: level,
		})

	default:
		return fmt.Errorf("unknown event kind %q", ev.Kind)
	}
}
