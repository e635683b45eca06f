// Package router turns detected signals into a bounded, deterministic plan
// of capability activations. The signal→capability priority table is data,
// loaded from configuration and passed by value.
package router

import (
	"sort"

	"hooksmith/internal/logging"
	"hooksmith/internal/pattern"
)

// Handler is one capability a signal can activate, with its rank and
// estimated resource cost.
type Handler struct {
	Capability string
	Priority   int
	Cost       float64
}

// Table maps signal ids to ranked capability handlers.
type Table struct {
	Version string
	Routes  map[string][]Handler
}

// Constraints bound a single planning call.
type Constraints struct {
	// MaxActivations caps the total plan length; zero means unlimited.
	MaxActivations int
	// CostCeiling is the per-handler resource ceiling; a handler whose cost
	// exceeds it is passed over for the next-priority handler. Zero means
	// unlimited.
	CostCeiling float64
	// Unavailable marks capabilities that cannot be activated right now.
	Unavailable map[string]bool
	// PriorityBias shifts handler priorities per capability. The learning
	// engine feeds this; biases are part of the constraints so planning
	// stays a pure function of its inputs.
	PriorityBias map[string]int
}

// Activation is one planned capability with the signal that requested it.
type Activation struct {
	Capability string
	Priority   int
	Cost       float64
	Signal     string
}

// ActivationPlan is an ordered list of activations, highest priority first.
type ActivationPlan []Activation

// Capabilities returns the plan's capability ids in order.
func (p ActivationPlan) Capabilities() []string {
	ids := make([]string, len(p))
	for i, activation := range p {
		ids[i] = activation.Capability
	}
	return ids
}

// Router plans activations from a fixed table. Plan is pure: identical
// (matches, table, constraints) always produce an identically ordered plan.
type Router struct {
	table  Table
	logger logging.Logger
}

// New builds a Router over table.
func New(table Table, logger logging.Logger) *Router {
	return &Router{table: table, logger: logging.OrNop(logger)}
}

// Plan selects the highest-priority available handler for each matched
// signal, substituting the next-ranked handler when the primary is
// unavailable or over the cost ceiling. When two signals of the same
// category resolve to the same capability the higher-priority activation
// wins. Unknown signals are ignored. The global ceiling prunes
// lowest-priority activations first.
func (r *Router) Plan(matches []pattern.Match, constraints Constraints) ActivationPlan {
	selected := map[string]Activation{}

	ordered := append([]pattern.Match(nil), matches...)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Category != ordered[j].Category {
			return ordered[i].Category < ordered[j].Category
		}
		if ordered[i].Confidence != ordered[j].Confidence {
			return ordered[i].Confidence > ordered[j].Confidence
		}
		return ordered[i].Signal < ordered[j].Signal
	})

	for _, match := range ordered {
		handlers, ok := r.table.Routes[match.Signal]
		if !ok {
			continue
		}
		ranked := make([]Handler, len(handlers))
		for i, handler := range handlers {
			handler.Priority += constraints.PriorityBias[handler.Capability]
			ranked[i] = handler
		}
		sort.Slice(ranked, func(i, j int) bool {
			if ranked[i].Priority != ranked[j].Priority {
				return ranked[i].Priority > ranked[j].Priority
			}
			return ranked[i].Capability < ranked[j].Capability
		})

		for _, handler := range ranked {
			if constraints.Unavailable[handler.Capability] {
				continue
			}
			if constraints.CostCeiling > 0 && handler.Cost > constraints.CostCeiling {
				continue
			}
			existing, taken := selected[handler.Capability]
			if taken && existing.Priority >= handler.Priority {
				break // already planned at equal or better rank
			}
			selected[handler.Capability] = Activation{
				Capability: handler.Capability,
				Priority:   handler.Priority,
				Cost:       handler.Cost,
				Signal:     match.Signal,
			}
			break
		}
	}

	plan := make(ActivationPlan, 0, len(selected))
	for _, activation := range selected {
		plan = append(plan, activation)
	}
	sort.Slice(plan, func(i, j int) bool {
		if plan[i].Priority != plan[j].Priority {
			return plan[i].Priority > plan[j].Priority
		}
		return plan[i].Capability < plan[j].Capability
	})

	if constraints.MaxActivations > 0 && len(plan) > constraints.MaxActivations {
		pruned := plan[constraints.MaxActivations:]
		plan = plan[:constraints.MaxActivations]
		r.logger.Debug("pruned %d activations over ceiling %d", len(pruned), constraints.MaxActivations)
	}
	return plan
}
