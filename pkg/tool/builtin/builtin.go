// Package toolbuiltin provides the capabilities the relay exposes to the
// model: web search, X post search and code execution.
package toolbuiltin

import (
	"fmt"

	"github.com/cexll/grokrelay/pkg/tool"
)

// Options configures every builtin capability.
type Options struct {
	Search      WebSearchOptions
	CodeExec    CodeExecutionOptions
	DisableCode bool
}

// Register adds the builtin capabilities to r.
func Register(r *tool.Registry, opts Options) error {
	search := opts.Search
	tools := []tool.Tool{
		NewWebSearchTool(&search),
		NewSocialSearchTool(&search),
	}
	if !opts.DisableCode {
		code := opts.CodeExec
		tools = append(tools, NewCodeExecutionTool(&code))
	}
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			return fmt.Errorf("register %s: %w", t.Name(), err)
		}
	}
	return nil
}
