package router

import (
	"hooksmith/internal/config"
	"hooksmith/internal/hookerr"
)

// DefaultMaxActivations bounds plan length when configuration is silent.
const DefaultMaxActivations = 3

// DefaultTable is the built-in signal→capability table, used when no
// capabilities document is installed.
func DefaultTable() Table {
	return Table{
		Version: "builtin",
		Routes: map[string][]Handler{
			"discovery": {
				{Capability: "requirements-explorer", Priority: 80, Cost: 0.3},
				{Capability: "web-search", Priority: 60, Cost: 0.5},
			},
			"implementation": {
				{Capability: "code-assistant", Priority: 70, Cost: 0.4},
			},
			"debugging": {
				{Capability: "trace-analyzer", Priority: 85, Cost: 0.4},
				{Capability: "log-inspector", Priority: 65, Cost: 0.2},
			},
			"refactoring": {
				{Capability: "ast-rewriter", Priority: 70, Cost: 0.5},
			},
			"high_risk_operation": {
				{Capability: "safety-review", Priority: 95, Cost: 0.2},
			},
			"large_change": {
				{Capability: "change-planner", Priority: 75, Cost: 0.3},
			},
			"documentation": {
				{Capability: "doc-generator", Priority: 60, Cost: 0.3},
			},
			"testing": {
				{Capability: "test-runner", Priority: 75, Cost: 0.4},
			},
			"code_search": {
				{Capability: "semantic-search", Priority: 65, Cost: 0.3},
				{Capability: "text-search", Priority: 50, Cost: 0.1},
			},
			"security_review": {
				{Capability: "security-scanner", Priority: 90, Cost: 0.4},
			},
		},
	}
}

// TableFromDoc builds the routing table from a configuration document,
// falling back to the built-in table when the document has no capabilities
// section. Expected shape:
//
//	capabilities:
//	  version: "2026-01"
//	  routes:
//	    discovery:
//	      - capability: requirements-explorer
//	        priority: 80
//	        cost: 0.3
func TableFromDoc(doc *config.Document) (Table, error) {
	raw, ok := config.Get(doc, "capabilities.routes", nil).(map[string]any)
	if !ok || len(raw) == 0 {
		return DefaultTable(), nil
	}

	table := Table{
		Version: config.GetString(doc, "capabilities.version", "builtin"),
		Routes:  make(map[string][]Handler, len(raw)),
	}
	for signal, entry := range raw {
		list, ok := entry.([]any)
		if !ok {
			return Table{}, hookerr.Configf(doc.Path, "capabilities.routes.%s must be a list, got %T", signal, entry)
		}
		handlers := make([]Handler, 0, len(list))
		for _, item := range list {
			mapping, ok := item.(map[string]any)
			if !ok {
				return Table{}, hookerr.Configf(doc.Path, "capabilities.routes.%s entries must be mappings, got %T", signal, item)
			}
			handlerDoc := &config.Document{Data: mapping}
			handler := Handler{
				Capability: config.GetString(handlerDoc, "capability", ""),
				Priority:   config.GetInt(handlerDoc, "priority", 50),
				Cost:       config.GetFloat(handlerDoc, "cost", 0.3),
			}
			if handler.Capability == "" {
				return Table{}, hookerr.Configf(doc.Path, "capabilities.routes.%s entry missing capability id", signal)
			}
			handlers = append(handlers, handler)
		}
		table.Routes[signal] = handlers
	}
	return table, nil
}
