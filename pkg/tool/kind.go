package tool

// Kind is the closed set of capabilities the dispatcher recognises.
type Kind int

const (
	KindUnknown Kind = iota
	KindWebSearch
	KindSocialSearch
	KindCodeExecution
)

// Wire names of the supported tools.
const (
	NameWebSearch     = "web_search"
	NameSocialSearch  = "x_search"
	NameCodeExecution = "code_execution"
)

// KindOf maps an exact tool name to its kind.
func KindOf(name string) Kind {
	switch name {
	case NameWebSearch:
		return KindWebSearch
	case NameSocialSearch:
		return KindSocialSearch
	case NameCodeExecution:
		return KindCodeExecution
	default:
		return KindUnknown
	}
}

func (k Kind) String() string {
	switch k {
	case KindWebSearch:
		return NameWebSearch
	case KindSocialSearch:
		return NameSocialSearch
	case KindCodeExecution:
		return NameCodeExecution
	default:
		return "unknown"
	}
}
