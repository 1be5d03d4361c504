package bedrock

import (
	"github.com/aws/smithy-go/document"
	"github.com/bytedance/sonic"
)

// documentFromJSON and documentFromMap adapt tool-call arguments (a JSON
// string on the unified type) into Bedrock's smithy document.Interface,
// used for both ToolUseBlock.Input and ToolInputSchema.
func documentFromJSON(s string) document.Interface {
	if s == "" {
		return document.NewLazyDocument(map[string]any{})
	}
	var v any
	if err := sonic.UnmarshalString(s, &v); err != nil {
		return document.NewLazyDocument(map[string]any{})
	}
	return document.NewLazyDocument(v)
}

func documentFromMap(m map[string]any) document.Interface {
	if m == nil {
		m = map[string]any{}
	}
	return document.NewLazyDocument(m)
}

func jsonFromDocument(d document.Interface) string {
	if d == nil {
		return "{}"
	}
	var v any
	if err := d.UnmarshalSmithyDocument(&v); err != nil {
		return "{}"
	}
	b, err := sonic.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
