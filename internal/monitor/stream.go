package monitor

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

const maxLineBytes = 1 << 20

// Stats summarizes a processed stream.
type Stats struct {
	Processed    int            `json:"processed"`
	Skipped      int            `json:"skipped"`
	Invalid      int            `json:"invalid"`
	Correlations map[string]int `json:"correlations"`
}

// ProcessStream reads one JSON ToolCall per line from r. Undecodable lines
// and calls without a target are counted and skipped; audit failures abort.
// fn, when non-nil, sees every non-skipped Result.
//
// When r is an io.Closer it is closed on cancellation, which interrupts a
// pending read on pipes and FIFOs. Other readers, and a terminal stdin in
// blocking mode, only notice cancellation when the next line arrives.
func (m *Monitor) ProcessStream(ctx context.Context, r io.Reader, fn func(Result)) (Stats, error) {
	stats := Stats{Correlations: make(map[string]int)}
	if c, ok := r.(io.Closer); ok {
		stop := context.AfterFunc(ctx, func() { _ = c.Close() })
		defer stop()
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	line := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		var call ToolCall
		if err := json.Unmarshal([]byte(text), &call); err != nil {
			stats.Invalid++
			m.metrics.ObserveInvalid()
			m.log.Warn("skipping malformed tool call", "line", line, "error", err)
			continue
		}

		res, err := m.Process(call)
		if errors.Is(err, ErrNoTarget) {
			stats.Invalid++
			m.metrics.ObserveInvalid()
			m.log.Warn("skipping tool call", "line", line, "error", err)
			continue
		}
		if res.Skipped {
			stats.Skipped++
			continue
		}
		stats.Processed++
		for _, c := range res.Correlations {
			stats.Correlations[c.CorrelationType]++
		}
		if fn != nil {
			fn(res)
		}
		if err != nil {
			return stats, fmt.Errorf("line %d: %w", line, err)
		}
	}
	if err := ctx.Err(); err != nil {
		return stats, err
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("reading tool calls: %w", err)
	}
	return stats, nil
}
