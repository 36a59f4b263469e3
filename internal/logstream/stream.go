package logstream

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gatewarden/internal/api"
	"gatewarden/internal/logs"
)

var ErrFiltersRequireAPI = errors.New("log filters require API access")

// Filters are predicates only the daemon API can apply.
type Filters struct {
	Component string
	Camera    string
}

func (f Filters) empty() bool {
	return strings.TrimSpace(f.Component) == "" && strings.TrimSpace(f.Camera) == ""
}

// Options controls stream behavior.
type Options struct {
	Lines   int
	Follow  bool
	Filters Filters
	// FileWait bounds each follow poll of the log file fallback.
	FileWait time.Duration
}

// Stream emits log events from the daemon API when it is reachable and falls
// back to tailing logPath otherwise. It returns true when at least one event
// or line was emitted.
func Stream(
	ctx context.Context,
	apiClient *logs.StreamClient,
	logPath string,
	opts Options,
	onEvent func(api.LogEvent),
	onLine func(string),
) (bool, error) {
	printed, err := streamAPI(ctx, apiClient, opts, onEvent)
	if err == nil {
		return printed, nil
	}
	if !logs.IsAPIUnavailable(err) {
		return printed, err
	}
	if !opts.Filters.empty() {
		return false, fmt.Errorf("%w: %w", ErrFiltersRequireAPI, logs.ErrAPIUnavailable)
	}
	if strings.TrimSpace(logPath) == "" {
		return false, logs.ErrAPIUnavailable
	}
	return streamFile(ctx, logPath, opts, onLine)
}

func streamAPI(ctx context.Context, client *logs.StreamClient, opts Options, onEvent func(api.LogEvent)) (bool, error) {
	query := logs.StreamQuery{
		Limit:     opts.Lines,
		Tail:      true,
		Component: opts.Filters.Component,
		Camera:    opts.Filters.Camera,
	}
	if query.Limit <= 0 {
		query.Limit = 200
	}

	printed := false
	for {
		resp, err := client.Fetch(ctx, query)
		if err != nil {
			if printed && ctx.Err() != nil {
				return printed, nil
			}
			return printed, err
		}
		for _, evt := range resp.Events {
			if onEvent != nil {
				onEvent(evt)
			}
			printed = true
		}
		if !opts.Follow {
			return printed, nil
		}
		query.Since = resp.Next
		query.Limit = 200
		query.Tail = false
		query.Follow = true
	}
}

func streamFile(ctx context.Context, path string, opts Options, onLine func(string)) (bool, error) {
	wait := opts.FileWait
	if wait <= 0 {
		wait = time.Second
	}
	tail := logs.TailOptions{Offset: -1, Limit: opts.Lines, Follow: opts.Follow, Wait: wait}
	if opts.Lines <= 0 {
		tail.Offset = 0
	}

	printed := false
	for {
		result, err := logs.Tail(ctx, path, tail)
		if err != nil {
			if ctx.Err() != nil {
				return printed, nil
			}
			return printed, fmt.Errorf("tail logs: %w", err)
		}
		for _, line := range result.Lines {
			if onLine != nil {
				onLine(line)
			}
			printed = true
		}
		if !opts.Follow {
			return printed, nil
		}
		select {
		case <-ctx.Done():
			return printed, nil
		default:
		}
		tail.Offset = result.Offset
		tail.Limit = 0
	}
}
