package config

import (
	"io"

	"github.com/BurntSushi/toml"
)

// LoadConfig runs SubstituteEnv over the raw TOML bytes, parses the result
// into a Config and runs startup validation. File discovery and CLI flag
// overrides live outside this repo's scope.
func LoadConfig(r io.Reader) (*Config, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	substituted, err := SubstituteEnv(raw)
	if err != nil {
		return nil, err
	}

	var cfg Config
	meta, err := toml.Decode(string(substituted), &cfg)
	if err != nil {
		return nil, err
	}

	for name, srv := range cfg.MCP.Servers {
		srv.Name = name
	}
	for name, p := range cfg.LLM.Providers {
		p.Name = name
	}
	cfg.LLM.ProviderOrder = providerDeclarationOrder(meta)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// providerDeclarationOrder recovers `[llm.providers.NAME]` table declaration
// order from the TOML decoder's metadata: the decoded Providers map has no
// order of its own, but meta.Keys() lists every key in the order the parser
// encountered it, including each provider table's own header key exactly
// once, at the point it was first opened.
func providerDeclarationOrder(meta toml.MetaData) []string {
	seen := make(map[string]bool)
	var order []string
	for _, key := range meta.Keys() {
		if len(key) < 3 || key[0] != "llm" || key[1] != "providers" {
			continue
		}
		name := key[2]
		if !seen[name] {
			seen[name] = true
			order = append(order, name)
		}
	}
	return order
}
