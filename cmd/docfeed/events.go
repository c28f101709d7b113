package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/abelbrown/docfeed/internal/otel"
)

type eventFilter struct {
	kind   string
	level  string
	ticket string
}

// levelRank returns a numeric rank for filtering (higher = more severe).
func levelRank(level otel.Level) int {
	switch level {
	case otel.LevelInfo:
		return 1
	case otel.LevelWarn:
		return 2
	case otel.LevelError:
		return 3
	default:
		return 0
	}
}

func (f eventFilter) match(ev otel.Event) bool {
	if f.kind != "" && !strings.HasPrefix(string(ev.Kind), f.kind) {
		return false
	}
	if f.level != "" && levelRank(ev.Level) < levelRank(otel.Level(f.level)) {
		return false
	}
	if f.ticket != "" && ev.Ticket != f.ticket {
		return false
	}
	return true
}

func formatEvent(ev otel.Event) string {
	lvl := strings.ToUpper(string(ev.Level))
	if lvl == "" {
		lvl = "?"
	}
	parts := []string{fmt.Sprintf("%s %-5s %-20s", ev.Time.Format("15:04:05.000"), lvl, ev.Kind)}

	if ev.Gen > 0 {
		parts = append(parts, fmt.Sprintf("gen=%d page=%d", ev.Gen, ev.Page))
	}
	if ev.Msg != "" {
		parts = append(parts, ev.Msg)
	}
	if ev.DurMs > 0 {
		parts = append(parts, fmt.Sprintf("(%.*fms)", durPrecision(ev.DurMs), ev.DurMs))
	}
	if ev.Count > 0 {
		parts = append(parts, fmt.Sprintf("n=%d", ev.Count))
	}
	if ev.Failed > 0 {
		parts = append(parts, fmt.Sprintf("failed=%d", ev.Failed))
	}
	if ev.Err != "" {
		parts = append(parts, "err="+ev.Err)
	}
	return strings.Join(parts, " ")
}

func durPrecision(ms float64) int {
	if ms >= 100 {
		return 0
	}
	if ms >= 1 {
		return 1
	}
	return 2
}

func newEventsCmd(cfg cfgFunc) *cobra.Command {
	var (
		tail    int
		follow  bool
		rawJSON bool
		filter  eventFilter
	)
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show the TUI's event journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := cfg().EventLogPath()
			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("event journal not found at %s (run the TUI first): %w", path, err)
			}
			defer f.Close()

			out := cmd.OutOrStdout()
			emit := func(l parsedLine) {
				if rawJSON {
					fmt.Fprintln(out, string(l.raw))
				} else {
					fmt.Fprintln(out, formatEvent(l.ev))
				}
			}

			r := bufio.NewReader(f)
			for _, l := range readTailLines(r, tail, filter.match) {
				emit(l)
			}
			if !follow {
				return nil
			}

			ctx := cmd.Context()
			var pending []byte // partial line written so far
			for {
				line, err := r.ReadBytes('\n')
				pending = append(pending, line...)
				if err == io.EOF {
					select {
					case <-ctx.Done():
						return nil
					case <-time.After(100 * time.Millisecond):
					}
					continue
				}
				if err != nil {
					return err
				}
				if l, ok := parseLine(pending, filter.match); ok {
					emit(l)
				}
				pending = pending[:0]
			}
		},
	}
	cmd.Flags().IntVar(&tail, "tail", 50, "number of recent events to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "keep printing new events")
	cmd.Flags().BoolVar(&rawJSON, "json", false, "print raw JSON lines")
	cmd.Flags().StringVar(&filter.kind, "kind", "", "event kind prefix, e.g. feed or batch.done")
	cmd.Flags().StringVar(&filter.level, "level", "", "minimum level: debug, info, warn, error")
	cmd.Flags().StringVar(&filter.ticket, "ticket", "", "page fetch ticket ID")
	return cmd
}

type parsedLine struct {
	ev  otel.Event
	raw []byte
}

func parseLine(raw []byte, match func(otel.Event) bool) (parsedLine, bool) {
	raw = bytes.TrimRight(raw, "\r\n")
	if len(raw) == 0 {
		return parsedLine{}, false
	}
	var ev otel.Event
	if json.Unmarshal(raw, &ev) != nil || !match(ev) {
		return parsedLine{}, false
	}
	return parsedLine{ev: ev, raw: append([]byte(nil), raw...)}, true
}

// readTailLines reads r to EOF and returns the last n matching events.
func readTailLines(r *bufio.Reader, n int, match func(otel.Event) bool) []parsedLine {
	if n <= 0 {
		n = 1
	}
	ring := make([]parsedLine, 0, n)
	for {
		line, err := r.ReadBytes('\n')
		if len(line) > 0 && (err == nil || err == io.EOF) {
			if l, ok := parseLine(line, match); ok {
				if len(ring) < n {
					ring = append(ring, l)
				} else {
					copy(ring, ring[1:])
					ring[n-1] = l
				}
			}
		}
		if err != nil {
			return ring
		}
	}
}
