// Package config holds Nexus's parsed, already-env-substituted configuration.
// TOML parsing and the `{{ env.NAME }}` substitution pass are thin wrappers
// around this struct (see load.go, env.go) — the substitution engine itself,
// and CLI/argument handling, are treated as external collaborators per the
// specification's scope (TOML/env/CLI are explicitly out of this repo's hard
// core).
package config

import (
	"fmt"
	"log/slog"
	"regexp"
	"time"
)

// Config is the root of Nexus's static configuration.
type Config struct {
	Server   ServerConfig              `toml:"server"`
	Identity IdentityConfig            `toml:"identity"`
	RateLimit GlobalRateLimitConfig    `toml:"rate_limits"`
	MCP      MCPConfig                 `toml:"mcp"`
	LLM      LLMConfig                 `toml:"llm"`
}

type ServerConfig struct {
	ListenAddr string `toml:"listen_addr"`

	// OAuthProtectedResource backs GET /.well-known/oauth-protected-resource.
	OAuthProtectedResource OAuthProtectedResourceConfig `toml:"oauth_protected_resource"`

	// XForwardedForTrustedHops is how many X-Forwarded-For entries, counted
	// from the right, are trusted proxies; the entry just left of them is
	// taken as the client IP (see identity.ClientIP).
	XForwardedForTrustedHops int `toml:"x_forwarded_for_trusted_hops"`
}

type OAuthProtectedResourceConfig struct {
	Resource            string   `toml:"resource"`
	AuthorizationServers []string `toml:"authorization_servers"`
}

// IdentityConfig configures how (client_id, group) is derived per request.
type IdentityConfig struct {
	// Source is "jwt" (claims) or "header".
	Source string `toml:"source"`

	// JWT-claim extraction, used when Source == "jwt".
	ClientIDClaim string `toml:"client_id_claim"`
	GroupClaim    string `toml:"group_claim"`

	// Header extraction, used when Source == "header".
	ClientIDHeader string `toml:"client_id_header"`
	GroupHeader    string `toml:"group_header"`

	// OAuth2/JWKs validation. Empty Issuer disables validation entirely
	// (the middleware becomes a no-op pass-through).
	Issuer   string   `toml:"issuer"`
	Audience []string `toml:"audience"`
	JWKsURL  string   `toml:"jwks_url"`

	// GroupValues enumerates every group name referenced anywhere in the
	// configuration (ACLs, per-user rate limits). Startup validation rejects
	// any group referenced but absent here.
	GroupValues []string `toml:"group_values"`
}

// GlobalRateLimitConfig configures the HTTP-level hierarchy (global, per-IP)
// and the backend used by every level (HTTP and LLM-token) of rate limiting.
type GlobalRateLimitConfig struct {
	Backend string `toml:"backend"` // "memory" or "redis"
	Redis   RedisConfig `toml:"redis"`

	Global *RateLimitRule `toml:"global"`
	PerIP  *RateLimitRule `toml:"per_ip"`

	// MaxEntries bounds the in-memory backend's LRU of per-key governors.
	MaxEntries int `toml:"max_entries"`
}

type RedisConfig struct {
	Addr            string        `toml:"addr"`
	Password        string        `toml:"password"`
	DB              int           `toml:"db"`
	KeyPrefix       string        `toml:"key_prefix"`
	PoolSize        int           `toml:"pool_size"`
	PoolTimeout     time.Duration `toml:"pool_timeout"`
	ConnMaxLifetime time.Duration `toml:"conn_max_lifetime"`
	DialTimeout     time.Duration `toml:"dial_timeout"`
}

// RateLimitRule is a (limit, interval) pair: at most Limit units consumed
// per Interval.
type RateLimitRule struct {
	Limit    int64         `toml:"limit"`
	Interval time.Duration `toml:"interval"`
}

// MCPConfig configures the downstream MCP federation.
type MCPConfig struct {
	// IndexMaxResults is parsed but not read: search() results are capped
	// at the fixed 25 of mcpfed's maxSearchResults.
	IndexMaxResults int                     `toml:"index_max_results"`
	Servers         map[string]*DownstreamServer `toml:"servers"`
	HeaderInsert    []HeaderInsertRule      `toml:"header_insert"`

	// ReconnectInterval paces the best-effort background retry of static
	// servers that failed to connect at startup or dropped afterward.
	// Zero falls back to a 30s default rather than disabling the loop.
	ReconnectInterval time.Duration `toml:"reconnect_interval"`
}

// TransportKind identifies one of the three downstream MCP transports.
type TransportKind string

const (
	TransportStdio           TransportKind = "stdio"
	TransportStreamableHTTP  TransportKind = "streamable-http"
	TransportSSE             TransportKind = "sse"
)

// DownstreamServer is one configured downstream MCP server.
type DownstreamServer struct {
	Name      string        `toml:"-"` // set to the map key at load time
	Transport TransportKind `toml:"transport"`

	Stdio *StdioConfig `toml:"stdio"`
	HTTP  *HTTPConfig  `toml:"http"`
	SSE   *SSEConfig   `toml:"sse"`

	Auth         *AuthPolicy        `toml:"auth"`
	HeaderInsert []HeaderInsertRule `toml:"header_insert"`
	TLS          *TLSConfig         `toml:"tls"`

	AccessControl AccessControl            `toml:"access"`
	RateLimit     *RateLimitRule           `toml:"rate_limit"`
	Tools         map[string]*ToolOverride `toml:"tools"`
}

type StdioConfig struct {
	Cmd          string            `toml:"cmd"`
	Args         []string          `toml:"args"`
	Env          map[string]string `toml:"env"`
	Cwd          string            `toml:"cwd"`
	Stderr       string            `toml:"stderr"` // "discard" | "inherit" | path
	StartupTimeout time.Duration   `toml:"startup_timeout"`
}

type HTTPConfig struct {
	URL        string `toml:"url"`
	MessageURL string `toml:"message_url"` // unused for plain streamable-http; kept for symmetry
}

type SSEConfig struct {
	URL        string `toml:"url"`
	MessageURL string `toml:"message_url"` // not read when dialing; the SSE client is given URL only
}

// AuthPolicy governs how Nexus authenticates to a downstream MCP server.
type AuthPolicy struct {
	Type  string `toml:"type"` // "static" | "forward"
	Token string `toml:"token"`
}

func (a *AuthPolicy) IsForward() bool { return a != nil && a.Type == "forward" }

type HeaderInsertRule struct {
	Name  string `toml:"name"`
	Value string `toml:"value"`
}

type TLSConfig struct {
	CAFile             string `toml:"ca_file"`
	InsecureSkipVerify bool   `toml:"insecure_skip_verify"`
}

// AccessControl is the {allow?, deny?} pair applicable at server or tool level.
type AccessControl struct {
	Allow []string `toml:"allow"`
	Deny  []string `toml:"deny"`
}

// HasAllow reports whether allow was configured at all (distinct from an
// empty-but-present allow list, which denies everyone).
func (a AccessControl) HasAllow() bool { return a.Allow != nil }

type ToolOverride struct {
	AccessControl AccessControl  `toml:"access"`
	RateLimit     *RateLimitRule `toml:"rate_limit"`
}

// LLMConfig configures providers and model routing.
type LLMConfig struct {
	DiscoveryInterval time.Duration                `toml:"discovery_interval"`
	Providers         map[string]*ProviderConfig   `toml:"providers"`

	// ProviderOrder is the provider names in TOML declaration order,
	// captured from the decoder's metadata at load time (TOML tables decode
	// into a Go map, which has no iteration order of its own). Discovery's
	// first-wins bare-name dedup requires this order to be deterministic
	// across process starts; see llmrouter.DiscoverOnce.
	ProviderOrder []string `toml:"-"`
}

type ProviderKind string

const (
	ProviderOpenAI    ProviderKind = "openai"
	ProviderAnthropic ProviderKind = "anthropic"
	ProviderGoogle    ProviderKind = "google"
	ProviderBedrock   ProviderKind = "bedrock"
)

type ProviderConfig struct {
	Name         string       `toml:"-"` // set to the map key at load time
	Kind         ProviderKind `toml:"kind"`
	APIKey       string       `toml:"api_key"`
	BaseURL      string       `toml:"base_url"`
	ModelFilter  string       `toml:"model_filter"`
	ForwardToken bool         `toml:"forward_token"`
	HeaderTransform []HeaderTransformRule `toml:"header_transform"`
	RateLimit    *LLMRateLimitTree        `toml:"rate_limit"`
	Models       map[string]*ModelConfig  `toml:"models"`

	// AWS-specific, used only when Kind == ProviderBedrock.
	AWSRegion string `toml:"aws_region"`
	AWSProfile string `toml:"aws_profile"`

	RequestTimeout time.Duration `toml:"request_timeout"`
}

type ModelConfig struct {
	Rename          string                 `toml:"rename"`
	HeaderTransform []HeaderTransformRule  `toml:"header_transform"`
	RateLimit       *LLMRateLimitTree      `toml:"rate_limit"`
}

// LLMRateLimitTree is one level's token limits: per-group rules plus a
// default. A model's tree and its provider's tree together give the four
// model+group, model, provider+group, provider slots; resolution picks the
// single most specific non-nil entry.
type LLMRateLimitTree struct {
	PerGroup map[string]*RateLimitRule `toml:"per_group"`
	Default  *RateLimitRule            `toml:"default"`
}

// HeaderTransformRule is one of forward/insert/remove/rename_duplicate.
type HeaderTransformRule struct {
	Kind    string `toml:"kind"` // "forward" | "insert" | "remove" | "rename_duplicate"
	Name    string `toml:"name"`
	Pattern string `toml:"pattern"`
	Default string `toml:"default"`
	Rename  string `toml:"rename"`
	Value   string `toml:"value"` // for "insert"
}

var modelFilterSlash = regexp.MustCompile(`/`)

// Validate applies the startup validation rules from the specification's
// lifecycle and error-handling sections: fatal misconfiguration aborts
// startup before any traffic is accepted.
func (c *Config) Validate() error {
	groupSet := make(map[string]bool, len(c.Identity.GroupValues))
	for _, g := range c.Identity.GroupValues {
		groupSet[g] = true
	}

	checkGroups := func(ac AccessControl, where string) error {
		for _, g := range ac.Allow {
			if !groupSet[g] {
				return fmt.Errorf("%s: allow references undeclared group %q", where, g)
			}
		}
		for _, g := range ac.Deny {
			if !groupSet[g] {
				return fmt.Errorf("%s: deny references undeclared group %q", where, g)
			}
		}
		return nil
	}

	for name, srv := range c.MCP.Servers {
		srv.Name = name
		if err := checkGroups(srv.AccessControl, "mcp.servers."+name); err != nil {
			return err
		}
		for toolName, t := range srv.Tools {
			if err := checkGroups(t.AccessControl, "mcp.servers."+name+".tools."+toolName); err != nil {
				return err
			}
		}
		switch srv.Transport {
		case TransportStdio:
			if srv.Stdio == nil {
				return fmt.Errorf("mcp.servers.%s: transport=stdio requires [stdio]", name)
			}
		case TransportStreamableHTTP:
			if srv.HTTP == nil {
				return fmt.Errorf("mcp.servers.%s: transport=streamable-http requires [http]", name)
			}
		case TransportSSE:
			if srv.SSE == nil {
				return fmt.Errorf("mcp.servers.%s: transport=sse requires [sse]", name)
			}
		default:
			return fmt.Errorf("mcp.servers.%s: unknown transport %q", name, srv.Transport)
		}
	}

	for name, p := range c.LLM.Providers {
		p.Name = name
		if len(p.Models) == 0 && p.ModelFilter == "" {
			return fmt.Errorf("llm.providers.%s: must set at least one explicit model or a model_filter", name)
		}
		if p.ModelFilter != "" {
			if modelFilterSlash.MatchString(p.ModelFilter) {
				return fmt.Errorf("llm.providers.%s: model_filter must not contain '/'", name)
			}
			if _, err := regexp.Compile("(?i)" + p.ModelFilter); err != nil {
				return fmt.Errorf("llm.providers.%s: invalid model_filter regex: %w", name, err)
			}
		}
		if p.ForwardToken && p.Kind == ProviderBedrock {
			return fmt.Errorf("llm.providers.%s: forward_token is not allowed for Bedrock", name)
		}
		if p.Kind == ProviderBedrock && len(p.HeaderTransform) > 0 {
			slog.Warn("header_transform rules are ignored for Bedrock providers except SigV4 headers", slog.String("provider", name))
		}
		if rl := p.RateLimit; rl != nil {
			for g := range rl.PerGroup {
				if !groupSet[g] {
					return fmt.Errorf("llm.providers.%s.rate_limit: references undeclared group %q", name, g)
				}
			}
		}
		for mid, mc := range p.Models {
			if rl := mc.RateLimit; rl != nil {
				for g := range rl.PerGroup {
					if !groupSet[g] {
						return fmt.Errorf("llm.providers.%s.models.%s.rate_limit: references undeclared group %q", name, mid, g)
					}
				}
			}
		}
	}

	return nil
}
