package agent

import "fmt"

// ConfigRouter resolves agents from a static slug table, typically loaded
// from configuration. An override slug always wins when it is known.
type ConfigRouter struct {
	// Defaults maps command name to the default agent slug.
	Defaults map[string]string
	// Agents maps slug to the agent definition.
	Agents map[string]Agent
}

// ResolveAgentForCommand picks the agent for a command. Resolution failures
// are reported as ErrNoAgent so callers can degrade instead of aborting.
func (r *ConfigRouter) ResolveAgentForCommand(workspace, commandName, overrideSlug string) (*Agent, error) {
	slug := overrideSlug
	if slug == "" {
		slug = r.Defaults[commandName]
	}
	if slug == "" {
		return nil, fmt.Errorf("%w: command %q has no default agent", ErrNoAgent, commandName)
	}
	a, ok := r.Agents[slug]
	if !ok {
		return nil, fmt.Errorf("%w: unknown agent slug %q", ErrNoAgent, slug)
	}
	return &a, nil
}

// Compile-time verification that ConfigRouter implements Router.
var _ Router = (*ConfigRouter)(nil)
