package anthropic

import "github.com/bytedance/sonic"

func jsonToMap(s string) map[string]any {
	if s == "" {
		return nil
	}
	var m map[string]any
	if err := sonic.UnmarshalString(s, &m); err != nil {
		return nil
	}
	return m
}

func mapToJSON(m map[string]any) string {
	if m == nil {
		return "{}"
	}
	b, err := sonic.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(b)
}
