package providers

import (
	"fmt"

	"github.com/nextlevelbuilder/kakak/internal/config"
)

// FromConfig builds the Provider named by cfg.Agents.Provider. When that is
// empty, the first provider with a configured API key wins, anthropic first.
func FromConfig(cfg *config.Config) (Provider, error) {
	name := cfg.Agents.Provider
	if name == "" {
		switch {
		case cfg.Providers.Anthropic.APIKey != "":
			name = "anthropic"
		case cfg.Providers.OpenAI.APIKey != "":
			name = "openai"
		default:
			return nil, fmt.Errorf("no llm provider configured: set KAKAK_ANTHROPIC_API_KEY or KAKAK_OPENAI_API_KEY")
		}
	}

	switch name {
	case "anthropic":
		spec := cfg.Providers.Anthropic
		if spec.APIKey == "" {
			return nil, fmt.Errorf("provider %q selected but KAKAK_ANTHROPIC_API_KEY is not set", name)
		}
		model := cfg.Agents.Model
		if model == "" {
			model = spec.Model
		}
		opts := []AnthropicOption{
			WithAnthropicModel(model),
			WithAnthropicBaseURL(spec.BaseURL),
		}
		if cfg.Agents.MaxTokens > 0 {
			opts = append(opts, WithAnthropicMaxTokens(cfg.Agents.MaxTokens))
		}
		return NewAnthropicProvider(spec.APIKey, opts...), nil

	case "openai":
		spec := cfg.Providers.OpenAI
		if spec.APIKey == "" {
			return nil, fmt.Errorf("provider %q selected but KAKAK_OPENAI_API_KEY is not set", name)
		}
		model := cfg.Agents.Model
		if model == "" {
			model = spec.Model
		}
		return NewOpenAIProvider(spec.APIKey,
			WithOpenAIModel(model),
			WithOpenAIBaseURL(spec.BaseURL),
		), nil

	default:
		return nil, fmt.Errorf("unknown llm provider %q", name)
	}
}
