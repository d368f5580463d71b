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

const pollInterval = 200 * time.Millisecond

// TailOptions controls a Tail call. A negative Offset selects the last Limit
// lines of the file; otherwise lines after Offset are returned.
type TailOptions struct {
	Offset int64
	Limit  int
	// Match keeps only lines containing it, typically a run id.
	Match  string
	Follow bool
	// Wait bounds how long a follow call polls for new lines.
	Wait time.Duration
}

// TailResult carries the lines read and the offset to resume from.
type TailResult struct {
	Lines  []string
	Offset int64
}

// Tail reads lines from the log file at path. A missing file yields no lines.
func Tail(ctx context.Context, path string, opts TailOptions) (TailResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return TailResult{}, nil
		}
		return TailResult{Offset: max(opts.Offset, 0)}, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		return TailResult{}, fmt.Errorf("log path %q is a directory", path)
	}

	var result TailResult
	if opts.Offset < 0 {
		result, err = readLast(path, opts.Limit, opts.Match)
	} else {
		offset := opts.Offset
		if offset > info.Size() {
			// Truncated or replaced since the last read.
			offset = 0
		}
		result, err = readFrom(path, offset, opts.Match)
	}
	if err != nil || !opts.Follow || len(result.Lines) > 0 || opts.Wait <= 0 {
		return result, err
	}
	return poll(ctx, path, result.Offset, opts)
}

// readLast keeps a window of the last limit matching lines.
func readLast(path string, limit int, match string) (TailResult, error) {
	var window []string
	offset, err := scanLines(path, 0, func(line string) {
		if limit <= 0 || !matches(line, match) {
			return
		}
		if len(window) == limit {
			window = window[1:]
		}
		window = append(window, line)
	})
	return TailResult{Lines: window, Offset: offset}, err
}

func readFrom(path string, offset int64, match string) (TailResult, error) {
	var lines []string
	next, err := scanLines(path, offset, func(line string) {
		if matches(line, match) {
			lines = append(lines, line)
		}
	})
	return TailResult{Lines: lines, Offset: next}, err
}

// scanLines calls fn for every complete line after offset and returns the
// offset just past the last complete line.
func scanLines(path string, offset int64, fn func(string)) (int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return offset, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return offset, fmt.Errorf("seek log file: %w", err)
	}
	reader := bufio.NewReaderSize(file, 64*1024)
	for {
		line, err := reader.ReadString('\n')
		if err == io.EOF {
			return offset, nil
		}
		if err != nil {
			return offset, fmt.Errorf("read log file: %w", err)
		}
		offset += int64(len(line))
		fn(strings.TrimRight(line, "\r\n"))
	}
}

func poll(ctx context.Context, path string, offset int64, opts TailOptions) (TailResult, error) {
	deadline := time.NewTimer(opts.Wait)
	defer deadline.Stop()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return TailResult{Offset: offset}, ctx.Err()
		case <-deadline.C:
			return TailResult{Offset: offset}, nil
		case <-ticker.C:
		}
		next := opts
		next.Offset = offset
		next.Follow = false
		result, err := Tail(ctx, path, next)
		if err != nil || len(result.Lines) > 0 {
			return result, err
		}
		offset = result.Offset
	}
}

func matches(line, match string) bool {
	return match == "" || strings.Contains(line, match)
}
