package mcpfed

import "github.com/bytedance/sonic"

func jsonMarshal(v any) ([]byte, error) { return sonic.Marshal(v) }

func jsonUnmarshal(data []byte, v any) error { return sonic.Unmarshal(data, v) }
