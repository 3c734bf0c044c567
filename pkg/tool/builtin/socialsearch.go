package toolbuiltin

import "github.com/cexll/grokrelay/pkg/tool"

const socialSearchDescription = "Searches recent posts on X (formerly Twitter) and returns matching posts with links."

// socialDomains are the hosts that serve X posts.
var socialDomains = []string{"x.com", "twitter.com"}

// NewSocialSearchTool builds the x_search capability: a web search pinned to
// X post hosts.
func NewSocialSearchTool(opts *WebSearchOptions) *WebSearchTool {
	t := NewWebSearchTool(opts)
	t.name = tool.NameSocialSearch
	t.description = socialSearchDescription
	t.scope = append([]string(nil), socialDomains...)
	return t
}
