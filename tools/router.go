package tools

import (
	"os"
	"strings"
)

// FromEnv resolves the advisor configuration from the environment. An
// explicit RESOLVER_LLM_PROVIDER wins; otherwise the first provider with
// credentials is used, preferring Anthropic, then OpenAI, then a local
// Ollama endpoint. ok is false when nothing is configured, which disables
// the advisory pass entirely.
func FromEnv() (Config, bool) {
	if p := strings.ToLower(strings.TrimSpace(os.Getenv("RESOLVER_LLM_PROVIDER"))); p != "" {
		cfg, known := Defaults(p)
		if !known {
			return Config{}, false
		}
		return applyEnv(cfg), true
	}

	if os.Getenv("ANTHROPIC_API_KEY") != "" {
		cfg, _ := Defaults("anthropic")
		return applyEnv(cfg), true
	}
	if os.Getenv("OPENAI_API_KEY") != "" {
		cfg, _ := Defaults("openai")
		return applyEnv(cfg), true
	}
	if os.Getenv("OLLAMA_BASE_URL") != "" {
		cfg, _ := Defaults("ollama")
		return applyEnv(cfg), true
	}
	return Config{}, false
}

func applyEnv(cfg Config) Config {
	switch cfg.Provider {
	case "openai":
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	case "anthropic":
		cfg.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	case "ollama":
		if base := os.Getenv("OLLAMA_BASE_URL"); base != "" {
			cfg.BaseURL = base
		}
	}
	if model := os.Getenv("RESOLVER_LLM_MODEL"); model != "" {
		cfg.Model = model
	}
	return cfg
}
