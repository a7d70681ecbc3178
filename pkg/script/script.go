// Package script runs post-generation Starlark scripts against a generated
// project.
//
// A script sees two predeclared values, properties (a dict of the resolved
// configuration) and project_dir, plus a small set of file builtins whose
// paths are relative to and confined to the project directory:
//
//	read_file(path)           -> string
//	write_file(path, content)
//	exists(path)              -> bool
//	delete(path)
//	move(src, dst)
//	log(msg)
//
// Top-level globals not starting with an underscore are returned in
// Result.Output.
package script

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// DefaultTimeout bounds a script run when no timeout is configured.
const DefaultTimeout = 30 * time.Second

// ErrTimeout is returned when a script exceeds its time budget.
var ErrTimeout = errors.New("script execution timeout")

// Result describes a finished script run.
type Result struct {
	Output        map[string]interface{}
	Touched       []string
	Logs          []string
	ExecutionTime time.Duration
	Error         string
}

// Runner executes scripts with a time limit.
type Runner struct {
	timeout time.Duration
	logger  zerolog.Logger
}

// NewRunner creates a runner. A zero timeout uses DefaultTimeout.
func NewRunner(timeout time.Duration, logger zerolog.Logger) *Runner {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Runner{
		timeout: timeout,
		logger:  logger.With().Str("component", "script").Logger(),
	}
}

// Run executes src against projectDir.
func (r *Runner) Run(ctx context.Context, name, src, projectDir string, props map[string]string) (*Result, error) {
	startTime := time.Now()

	evalCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	root, err := filepath.Abs(projectDir)
	if err != nil {
		return nil, fmt.Errorf("resolve project directory: %w", err)
	}
	env := &environment{root: root, touched: make(map[string]bool), logger: r.logger}
	thread := &starlark.Thread{
		Name: name,
		Print: func(_ *starlark.Thread, msg string) {
			env.log(msg)
		},
	}

	resultCh := make(chan *Result, 1)
	errCh := make(chan error, 1)

	go func() {
		result, err := r.runSync(thread, env, name, src, props)
		if err != nil {
			errCh <- err
		} else {
			resultCh <- result
		}
	}()

	select {
	case <-evalCtx.Done():
		thread.Cancel(evalCtx.Err().Error())
		// Wait for the interpreter to observe the cancellation before the
		// project directory is handed back.
		select {
		case <-errCh:
		case <-resultCh:
		}
		reason := fmt.Sprintf("execution timeout after %v", r.timeout)
		if errors.Is(evalCtx.Err(), context.Canceled) {
			reason = "execution cancelled"
		}
		return env.result(startTime, reason), fmt.Errorf("%s: %w", name, ErrTimeout)
	case err := <-errCh:
		return env.result(startTime, err.Error()), err
	case result := <-resultCh:
		result.ExecutionTime = time.Since(startTime)
		return result, nil
	}
}

func (r *Runner) runSync(thread *starlark.Thread, env *environment, name, src string, props map[string]string) (*Result, error) {
	propsIn := make(map[string]interface{}, len(props))
	for k, v := range props {
		propsIn[k] = v
	}
	propsVal, err := toStarlarkValue(propsIn)
	if err != nil {
		return nil, fmt.Errorf("failed to convert properties: %w", err)
	}

	predeclared := starlark.StringDict{
		"struct":      starlarkstruct.Default,
		"properties":  propsVal,
		"project_dir": starlark.String(env.root),
		"read_file":   starlark.NewBuiltin("read_file", env.readFile),
		"write_file":  starlark.NewBuiltin("write_file", env.writeFile),
		"exists":      starlark.NewBuiltin("exists", env.exists),
		"delete":      starlark.NewBuiltin("delete", env.delete),
		"move":        starlark.NewBuiltin("move", env.move),
		"log":         starlark.NewBuiltin("log", env.logBuiltin),
	}

	globals, err := starlark.ExecFile(thread, name, src, predeclared)
	if err != nil {
		return nil, fmt.Errorf("starlark execution failed: %w", err)
	}

	output := make(map[string]interface{})
	for k, val := range globals {
		if strings.HasPrefix(k, "_") {
			continue
		}
		// Functions defined by the script are not results.
		if _, ok := val.(starlark.Callable); ok {
			continue
		}
		goVal, err := fromStarlarkValue(val)
		if err != nil {
			return nil, fmt.Errorf("failed to convert output %s: %w", k, err)
		}
		output[k] = goVal
	}

	res := env.result(time.Time{}, "")
	res.Output = output
	return res, nil
}

// environment holds the per-run state behind the file builtins.
type environment struct {
	root    string
	logger  zerolog.Logger
	mu      sync.Mutex
	touched map[string]bool
	logs    []string
}

func (e *environment) result(start time.Time, errMsg string) *Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	touched := make([]string, 0, len(e.touched))
	for p := range e.touched {
		touched = append(touched, p)
	}
	sort.Strings(touched)
	res := &Result{
		Touched: touched,
		Logs:    append([]string(nil), e.logs...),
		Error:   errMsg,
	}
	if !start.IsZero() {
		res.ExecutionTime = time.Since(start)
	}
	return res
}

func (e *environment) log(msg string) {
	e.mu.Lock()
	e.logs = append(e.logs, msg)
	e.mu.Unlock()
	e.logger.Info().Msg(msg)
}

func (e *environment) touch(rel string) {
	e.mu.Lock()
	e.touched[rel] = true
	e.mu.Unlock()
}

// resolve maps a script path onto the project directory. Absolute paths and
// paths leaving the project are rejected.
func (e *environment) resolve(p string) (string, string, error) {
	if p == "" {
		return "", "", fmt.Errorf("empty path")
	}
	if filepath.IsAbs(p) {
		return "", "", fmt.Errorf("path %q must be relative to the project directory", p)
	}
	rel := filepath.Clean(filepath.FromSlash(p))
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", "", fmt.Errorf("path %q escapes the project directory", p)
	}
	return filepath.Join(e.root, rel), filepath.ToSlash(rel), nil
}

func (e *environment) readFile(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var p string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "path", &p); err != nil {
		return nil, err
	}
	abs, _, err := e.resolve(p)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	return starlark.String(data), nil
}

func (e *environment) writeFile(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var p, content string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "path", &p, "content", &content); err != nil {
		return nil, err
	}
	abs, rel, err := e.resolve(p)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	e.touch(rel)
	return starlark.None, nil
}

func (e *environment) exists(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var p string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "path", &p); err != nil {
		return nil, err
	}
	abs, _, err := e.resolve(p)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	_, err = os.Stat(abs)
	return starlark.Bool(err == nil), nil
}

func (e *environment) delete(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var p string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "path", &p); err != nil {
		return nil, err
	}
	abs, rel, err := e.resolve(p)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	if abs == e.root {
		return nil, fmt.Errorf("%s: refusing to delete the project directory", b.Name())
	}
	if err := os.RemoveAll(abs); err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	e.touch(rel)
	return starlark.None, nil
}

func (e *environment) move(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var src, dst string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "src", &src, "dst", &dst); err != nil {
		return nil, err
	}
	srcAbs, srcRel, err := e.resolve(src)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	dstAbs, dstRel, err := e.resolve(dst)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	if err := os.MkdirAll(filepath.Dir(dstAbs), 0o755); err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	if err := os.Rename(srcAbs, dstAbs); err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	e.touch(srcRel)
	e.touch(dstRel)
	return starlark.None, nil
}

func (e *environment) logBuiltin(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var msg string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "msg", &msg); err != nil {
		return nil, err
	}
	e.log(msg)
	return starlark.None, nil
}
