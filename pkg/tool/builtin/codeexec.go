package toolbuiltin

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/cexll/grokrelay/pkg/tool"
)

const (
	codeExecutionDescription = "Executes a Python program and returns its standard output and standard error."
	defaultCodeTimeout       = 10 * time.Second
	maxCodeOutputLen         = 64 * 1024
	maxCodeLen               = 100 * 1024
)

// CodeExecutionOptions configures the interpreter used for code_execution.
type CodeExecutionOptions struct {
	// Command is the interpreter argv; the program is fed on stdin.
	Command []string
	Timeout time.Duration
	WorkDir string
}

// CodeExecutionTool runs model-provided code in a subprocess.
type CodeExecutionTool struct {
	command []string
	timeout time.Duration
	workdir string
}

// NewCodeExecutionTool builds the code_execution capability.
func NewCodeExecutionTool(opts *CodeExecutionOptions) *CodeExecutionTool {
	var cfg CodeExecutionOptions
	if opts != nil {
		cfg = *opts
	}
	if len(cfg.Command) == 0 {
		cfg.Command = []string{"python3", "-"}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultCodeTimeout
	}
	return &CodeExecutionTool{
		command: append([]string(nil), cfg.Command...),
		timeout: cfg.Timeout,
		workdir: cfg.WorkDir,
	}
}

func (c *CodeExecutionTool) Name() string { return tool.NameCodeExecution }

func (c *CodeExecutionTool) Description() string { return codeExecutionDescription }

func (c *CodeExecutionTool) Schema() *tool.JSONSchema {
	return &tool.JSONSchema{
		Type: "object",
		Properties: map[string]interface{}{
			"code": map[string]interface{}{
				"type":        "string",
				"description": "Complete Python program to run. Print anything you want returned.",
			},
		},
		Required: []string{"code"},
	}
}

// Execute runs params["code"] and returns the combined output. A non-zero
// exit or a timeout is reported as an error carrying the captured output.
func (c *CodeExecutionTool) Execute(ctx context.Context, params map[string]interface{}) (*tool.ToolResult, error) {
	if ctx == nil {
		return nil, errors.New("context is nil")
	}
	code, ok := params["code"].(string)
	if !ok || strings.TrimSpace(code) == "" {
		return nil, errors.New("code must be a non-empty string")
	}
	if len(code) > maxCodeLen {
		return nil, fmt.Errorf("code exceeds %d bytes", maxCodeLen)
	}

	execCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, c.command[0], c.command[1:]...)
	cmd.Env = os.Environ()
	if strings.TrimSpace(c.workdir) != "" {
		cmd.Dir = c.workdir
	}
	cmd.Stdin = strings.NewReader(code)
	out := &limitedBuffer{limit: maxCodeOutputLen}
	cmd.Stdout = out
	cmd.Stderr = out

	started := time.Now()
	err := cmd.Run()
	output := strings.TrimRight(out.String(), "\n")
	if execCtx.Err() == context.DeadlineExceeded {
		return nil, fmt.Errorf("execution timed out after %s", c.timeout)
	}
	if err != nil {
		if output != "" {
			return nil, fmt.Errorf("%v: %s", err, output)
		}
		return nil, err
	}
	if output == "" {
		output = "(no output)"
	}
	return &tool.ToolResult{
		Success: true,
		Output:  output,
		Data: map[string]interface{}{
			"duration_ms": time.Since(started).Milliseconds(),
			"truncated":   out.truncated,
		},
	}, nil
}

// limitedBuffer keeps the first limit bytes written and drops the rest.
type limitedBuffer struct {
	mu        sync.Mutex
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := len(p)
	remaining := b.limit - b.buf.Len()
	if remaining <= 0 {
		b.truncated = b.truncated || n > 0
		return n, nil
	}
	if len(p) > remaining {
		p = p[:remaining]
		b.truncated = true
	}
	_, _ = b.buf.Write(p)
	return n, nil
}

func (b *limitedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
