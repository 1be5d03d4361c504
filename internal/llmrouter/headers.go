package llmrouter

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/grafbase/nexus/internal/config"
)

// ApplyHeaderTransform mutates dst by applying rules, in declaration order,
// against the inbound caller headers. Model-level rules replace (never
// merge with) provider-level rules — callers pass whichever set actually
// applies, already resolved.
func ApplyHeaderTransform(rules []config.HeaderTransformRule, inbound http.Header, dst http.Header) {
	for _, rule := range rules {
		switch rule.Kind {
		case "forward":
			applyForward(rule, inbound, dst)
		case "insert":
			dst.Set(rule.Name, rule.Value)
		case "remove":
			applyRemove(rule, dst)
		case "rename_duplicate":
			applyRenameDuplicate(rule, inbound, dst)
		}
	}
}

func applyForward(rule config.HeaderTransformRule, inbound, dst http.Header) {
	if rule.Name != "" {
		if v := inbound.Get(rule.Name); v != "" {
			name := rule.Name
			if rule.Rename != "" {
				name = rule.Rename
			}
			dst.Set(name, v)
		} else if rule.Default != "" {
			name := rule.Name
			if rule.Rename != "" {
				name = rule.Rename
			}
			dst.Set(name, rule.Default)
		}
		return
	}
	if rule.Pattern == "" {
		return
	}
	re, err := regexp.Compile("(?i)" + rule.Pattern)
	if err != nil {
		return
	}
	for name, values := range inbound {
		if re.MatchString(name) && len(values) > 0 {
			dst.Set(name, values[0])
		}
	}
}

func applyRemove(rule config.HeaderTransformRule, dst http.Header) {
	if rule.Name != "" {
		dst.Del(rule.Name)
		return
	}
	if rule.Pattern == "" {
		return
	}
	re, err := regexp.Compile("(?i)" + rule.Pattern)
	if err != nil {
		return
	}
	for name := range dst {
		if re.MatchString(name) {
			dst.Del(name)
		}
	}
}

func applyRenameDuplicate(rule config.HeaderTransformRule, inbound, dst http.Header) {
	v := inbound.Get(rule.Name)
	if v == "" {
		v = rule.Default
	}
	if v == "" {
		return
	}
	dst.Set(rule.Name, v)
	if rule.Rename != "" {
		dst.Set(rule.Rename, v)
	}
}

// EffectiveHeaderTransform picks the model-level rule set when non-empty,
// else the provider-level one, per the "model rules replace provider rules"
// convention.
func EffectiveHeaderTransform(provider []config.HeaderTransformRule, model []config.HeaderTransformRule) []config.HeaderTransformRule {
	if len(model) > 0 {
		return model
	}
	return provider
}

// stripToken removes a leading "Bearer " prefix, tolerant of case, so a
// forwarded X-Provider-API-Key or Authorization header can be normalized
// before use as a provider API key.
func stripToken(v string) string {
	const prefix = "bearer "
	if len(v) > len(prefix) && strings.EqualFold(v[:len(prefix)], prefix) {
		return v[len(prefix):]
	}
	return v
}
