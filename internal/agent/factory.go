package agent

import (
	"fmt"
	"log/slog"

	"github.com/storyforge-ai/storyforge/internal/prompt"
)

// Factory constructs and initializes concrete agents over shared
// collaborators. It keeps no registry; the orchestrator owns that.
type Factory struct {
	gateway CompletionService
	prompts *prompt.Manager
	logger  *slog.Logger
}

// NewFactory creates an agent factory.
func NewFactory(gateway CompletionService, prompts *prompt.Manager, logger *slog.Logger) *Factory {
	return &Factory{gateway: gateway, prompts: prompts, logger: logger}
}

// CreateAgent builds the concrete agent for agentType and initializes it.
func (f *Factory) CreateAgent(agentType string) (Agent, error) {
	var a Agent
	switch agentType {
	case PhaseIdeation:
		a = NewIdeation(f.gateway, f.prompts, f.logger)
	case PhaseRefiner:
		a = NewRefiner(f.gateway, f.prompts, f.logger)
	case PhaseMedia:
		a = NewMedia(f.gateway, f.prompts, f.logger)
	case PhaseFactCheck:
		a = NewFactCheck(f.gateway, f.prompts, f.logger)
	default:
		return nil, fmt.Errorf("unknown agent type %q", agentType)
	}
	if err := a.Initialize(); err != nil {
		return nil, err
	}
	return a, nil
}

// AllTypes lists every agent type the factory can build.
func AllTypes() []string {
	return []string{PhaseIdeation, PhaseRefiner, PhaseMedia, PhaseFactCheck}
}
