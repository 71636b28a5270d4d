package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

const (
	maxLineBytes = 1 << 20
	followTick   = 250 * time.Millisecond
)

// TailOptions selects which lines Tail returns.
type TailOptions struct {
	// Offset is a byte position from a previous TailResult. Negative means
	// "the last Limit lines".
	Offset int64
	Limit  int
	Follow bool
	Wait   time.Duration
	// JobKey keeps only lines that mention the key.
	JobKey string
}

// TailResult carries the matching lines and the offset to resume from.
type TailResult struct {
	Lines  []string
	Offset int64
}

// Tail reads path according to opts. A missing file yields no lines and a
// zero offset so callers can start before the daemon has logged anything.
func Tail(ctx context.Context, path string, opts TailOptions) (TailResult, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return TailResult{}, nil
	}
	if err != nil {
		return TailResult{Offset: opts.Offset}, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		return TailResult{Offset: opts.Offset}, fmt.Errorf("log path %q is a directory", path)
	}

	start := opts.Offset
	last := 0
	if start < 0 {
		start = 0
		last = max(opts.Limit, 0)
		if last == 0 {
			return TailResult{Offset: info.Size()}, nil
		}
	} else if start > info.Size() {
		// Truncated or rotated; resume from the new end.
		start = info.Size()
	}

	lines, offset, err := readFrom(path, start, opts.JobKey)
	if err != nil {
		return TailResult{Offset: start}, err
	}
	if last > 0 && len(lines) > last {
		lines = lines[len(lines)-last:]
	}
	if len(lines) > 0 || !opts.Follow || opts.Wait <= 0 {
		return TailResult{Lines: lines, Offset: offset}, nil
	}
	return follow(ctx, path, offset, opts)
}

func follow(ctx context.Context, path string, offset int64, opts TailOptions) (TailResult, error) {
	deadline := time.NewTimer(opts.Wait)
	defer deadline.Stop()
	ticker := time.NewTicker(followTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return TailResult{Offset: offset}, ctx.Err()
		case <-deadline.C:
			return TailResult{Offset: offset}, nil
		case <-ticker.C:
		}
		lines, next, err := readFrom(path, offset, opts.JobKey)
		if err != nil {
			return TailResult{Offset: offset}, err
		}
		offset = next
		if len(lines) > 0 {
			return TailResult{Lines: lines, Offset: offset}, nil
		}
	}
}

// readFrom returns complete lines after offset that contain filter, plus the
// offset just past the last complete line read.
func readFrom(path string, offset int64, filter string) ([]string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, offset, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return nil, offset, fmt.Errorf("seek log file: %w", err)
	}

	reader := bufio.NewReaderSize(file, 64<<10)
	var lines []string
	for {
		raw, err := reader.ReadString('\n')
		if errors.Is(err, io.EOF) {
			// A partial trailing line is re-read on the next call.
			return lines, offset, nil
		}
		if err != nil {
			return nil, offset, fmt.Errorf("read log file: %w", err)
		}
		offset += int64(len(raw))
		if len(raw) > maxLineBytes {
			raw = raw[:maxLineBytes]
		}
		line := strings.TrimRight(raw, "\r\n")
		if filter == "" || strings.Contains(line, filter) {
			lines = append(lines, line)
		}
	}
}
