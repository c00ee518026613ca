package filetask

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/flowgate/flowgate/engine/core"
	"github.com/flowgate/flowgate/engine/task"
	"github.com/flowgate/flowgate/pkg/logger"
)

const (
	inputFile  = "input.json"
	resultFile = "result.json"
	errorFile  = "error.json"

	defaultTimeout = 10 * time.Minute
	defaultPoll    = 250 * time.Millisecond
)

// Invoker implements the task execution contract over the file convention:
// the runtime writes `{root}/{effectID}/input.json` and the external agent
// harness answers with `result.json` (or `error.json`) in the same
// directory. Directory changes are picked up by fsnotify when the invoker
// runs on the OS filesystem; a poll ticker covers every other case.
type Invoker struct {
	fs      afero.Fs
	root    string
	timeout time.Duration
	poll    time.Duration
}

type Option func(*Invoker)

func WithFs(fs afero.Fs) Option {
	return func(i *Invoker) { i.fs = fs }
}

func WithTimeout(d time.Duration) Option {
	return func(i *Invoker) {
		if d > 0 {
			i.timeout = d
		}
	}
}

func WithPollInterval(d time.Duration) Option {
	return func(i *Invoker) {
		if d > 0 {
			i.poll = d
		}
	}
}

func New(root string, opts ...Option) *Invoker {
	inv := &Invoker{
		fs:      afero.NewOsFs(),
		root:    root,
		timeout: defaultTimeout,
		poll:    defaultPoll,
	}
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

type requestEnvelope struct {
	Task  string     `json:"task"`
	Input core.Input `json:"input"`
}

type errorEnvelope struct {
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

func (i *Invoker) Invoke(ctx context.Context, taskName string, input core.Input) (core.Output, error) {
	effectID := uuid.NewString()
	dir := filepath.Join(i.root, effectID)
	if err := i.fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create effect dir: %w", err)
	}
	raw, err := json.MarshalIndent(requestEnvelope{Task: taskName, Input: input}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode task input: %w", err)
	}
	if err := afero.WriteFile(i.fs, filepath.Join(dir, inputFile), raw, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write task input: %w", err)
	}
	log := logger.FromContext(ctx)
	log.Debug("task dispatched", "task", taskName, "effect_id", effectID)

	ctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()
	return i.await(ctx, taskName, dir)
}

func (i *Invoker) await(ctx context.Context, taskName, dir string) (core.Output, error) {
	events := i.watchDir(ctx, dir)
	ticker := time.NewTicker(i.poll)
	defer ticker.Stop()
	for {
		if out, err, settled := i.check(dir); settled {
			return out, err
		}
		select {
		case <-ctx.Done():
			return nil, task.NewInvokeError(
				fmt.Sprintf("timed out waiting for %s result", taskName), true)
		case <-ticker.C:
		case <-events:
		}
	}
}

// watchDir returns a channel that fires on directory changes, or a nil
// channel (never ready) when watching is unavailable.
func (i *Invoker) watchDir(ctx context.Context, dir string) <-chan struct{} {
	if _, ok := i.fs.(*afero.OsFs); !ok {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil
	}
	events := make(chan struct{}, 1)
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-watcher.Events:
				if !ok {
					return
				}
				select {
				case events <- struct{}{}:
				default:
				}
			case <-watcher.Errors:
			}
		}
	}()
	return events
}

func (i *Invoker) check(dir string) (core.Output, error, bool) {
	if raw, err := afero.ReadFile(i.fs, filepath.Join(dir, errorFile)); err == nil {
		var env errorEnvelope
		if jsonErr := json.Unmarshal(raw, &env); jsonErr != nil {
			return nil, task.NewInvokeError("malformed error file: "+jsonErr.Error(), false), true
		}
		return nil, task.NewInvokeError(env.Message, env.Retryable), true
	}
	raw, err := afero.ReadFile(i.fs, filepath.Join(dir, resultFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, false
		}
		return nil, nil, false
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, task.NewInvokeError("malformed result file: "+err.Error(), false), true
	}
	return core.Output(out), nil, true
}
