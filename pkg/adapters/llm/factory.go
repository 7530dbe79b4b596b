package llm

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/aescanero/sparkcopilot/internal/config"
	"github.com/aescanero/sparkcopilot/pkg/adapters/llm/anthropic"
	"github.com/aescanero/sparkcopilot/pkg/ports"
)

// NewAdvisor creates an advisor based on provider. It returns nil when the
// advisor is disabled.
func NewAdvisor(cfg config.LLMConfig, recorder anthropic.CallRecorder, logger *zap.Logger) (ports.Advisor, error) {
	if !cfg.Enabled() {
		return nil, nil
	}

	switch cfg.Provider {
	case "anthropic":
		advisor, err := anthropic.NewAdvisor(anthropic.Config{
			APIKey:         cfg.APIKey,
			Model:          cfg.Model,
			MaxTokens:      cfg.MaxTokens,
			RequestTimeout: cfg.RequestTimeout,
		}, recorder, logger.Named("advisor"))
		if err != nil {
			return nil, err
		}
		return advisor, nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}
