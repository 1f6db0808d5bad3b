package model

import (
	"errors"
	"strings"
)

// build dispatches cfg.URI's scheme to the concrete variant. Matches the
// scheme table in §4.8 exactly.
func build(cfg Config) (Adapter, error) {
	uri := strings.TrimSpace(cfg.URI)
	switch {
	case uri == "", strings.HasPrefix(uri, "heuristic://"):
		return heuristicOnly{}, nil
	case strings.HasPrefix(uri, "file://"):
		return newFileAdapter(strings.TrimPrefix(uri, "file://"))
	case strings.HasPrefix(uri, "llm+http://"):
		return newLLMAdapter("http://"+strings.TrimPrefix(uri, "llm+http://"), cfg.Timeout)
	case strings.HasPrefix(uri, "llm+https://"):
		return newLLMAdapter("https://"+strings.TrimPrefix(uri, "llm+https://"), cfg.Timeout)
	case strings.HasPrefix(uri, "http://"), strings.HasPrefix(uri, "https://"):
		return newHTTPAdapter(uri, cfg.Timeout)
	default:
		return nil, errors.New("model: unrecognized URI scheme in " + uri)
	}
}
