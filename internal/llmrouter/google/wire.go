// Package google implements the Gemini generateContent/streamGenerateContent
// wire protocol, translating to and from llmrouter's unified shape.
package google

type wireRequest struct {
	Contents          []wireContent      `json:"contents"`
	SystemInstruction *wireContent       `json:"systemInstruction,omitempty"`
	Tools             []wireTool         `json:"tools,omitempty"`
	GenerationConfig  *wireGenConfig     `json:"generationConfig,omitempty"`
}

type wireContent struct {
	Role  string     `json:"role,omitempty"` // "user" | "model"
	Parts []wirePart `json:"parts"`
}

type wirePart struct {
	Text             string           `json:"text,omitempty"`
	FunctionCall     *wireFunctionCall `json:"functionCall,omitempty"`
	FunctionResponse *wireFuncResponse `json:"functionResponse,omitempty"`
}

type wireFunctionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

type wireFuncResponse struct {
	Name     string         `json:"name"`
	Response map[string]any `json:"response,omitempty"`
}

type wireTool struct {
	FunctionDeclarations []wireFunctionDecl `json:"functionDeclarations"`
}

type wireFunctionDecl struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type wireGenConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	TopP            *float64 `json:"topP,omitempty"`
	MaxOutputTokens *int64   `json:"maxOutputTokens,omitempty"`
	StopSequences   []string `json:"stopSequences,omitempty"`
}

type wireResponse struct {
	Candidates    []wireCandidate  `json:"candidates"`
	UsageMetadata *wireUsage       `json:"usageMetadata,omitempty"`
	Error         *wireError       `json:"error,omitempty"`
}

type wireCandidate struct {
	Content      wireContent `json:"content"`
	FinishReason string      `json:"finishReason"`
}

type wireUsage struct {
	PromptTokenCount     int64 `json:"promptTokenCount"`
	CandidatesTokenCount int64 `json:"candidatesTokenCount"`
}

type wireError struct {
	Message string `json:"message"`
}

type wireModelList struct {
	Models []wireModel `json:"models"`
}

type wireModel struct {
	Name string `json:"name"` // "models/gemini-2.5-flash"
}
