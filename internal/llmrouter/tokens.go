package llmrouter

// EstimateInputTokens approximates the input token count of a unified
// request for pre-flight rate-limit checks. Providers report exact usage
// after the call; this estimate only needs to be close enough to charge a
// rate-limit bucket before the real number is known, so it uses the common
// heuristic of roughly 4 characters per token rather than pulling in a
// full tokenizer for every provider's vocabulary.
func EstimateInputTokens(req *Request) int64 {
	var chars int64
	chars += int64(len(req.System))
	for _, m := range req.Messages {
		chars += int64(len(m.Text()))
		for _, tc := range m.ToolCalls {
			chars += int64(len(tc.Name) + len(tc.Arguments))
		}
	}
	for _, t := range req.Tools {
		chars += int64(len(t.Name) + len(t.Description))
	}
	if chars == 0 {
		return 0
	}
	tokens := chars / 4
	if tokens == 0 {
		tokens = 1
	}
	return tokens
}
