// Package llmclassify is a sample RouteComponent that classifies a
// case's content into one of a step's declared branches using Claude.
package llmclassify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/caseflow/engine/component"
	"github.com/caseflow/engine/engine"
)

// Classifier implements component.RouteComponent: it reads the case
// content from a named variable, asks an LLM to pick one of the
// branches declared on the step, and returns that as an S_ROUTE or
// P_ROUTE_DYNAMIC decision.
//
// Step UserData contract:
//   - "variable": name of the string variable holding the content to classify (required)
//   - "branches": []string naming the candidate branches (required; must match step.Branches)
//   - "instructions": optional extra guidance appended to the classification prompt
type Classifier struct {
	apiKey    string
	modelName string
}

// NewClassifier constructs a Classifier bound to apiKey. modelName
// defaults to a current Claude model when empty.
func NewClassifier(apiKey, modelName string) *Classifier {
	if modelName == "" {
		modelName = "claude-sonnet-4-5-20250929"
	}
	return &Classifier{apiKey: apiKey, modelName: modelName}
}

type classifyResult struct {
	Branch string `json:"branch"`
	Reason string `json:"reason"`
}

func (c *Classifier) ExecuteRoute(ctx context.Context, stepCtx component.Context) (component.RouteResponse, error) {
	varName, _ := stepCtx.UserData["variable"].(string)
	if varName == "" {
		return component.RouteResponse{}, fmt.Errorf("llmclassify: step %s missing userData.variable", stepCtx.StepName)
	}
	branches, err := stringSlice(stepCtx.UserData["branches"])
	if err != nil || len(branches) == 0 {
		return component.RouteResponse{}, fmt.Errorf("llmclassify: step %s missing userData.branches: %w", stepCtx.StepName, err)
	}
	instructions, _ := stepCtx.UserData["instructions"].(string)

	v, ok := stepCtx.Variables.GetVariable(varName)
	if !ok {
		return component.RouteResponse{}, fmt.Errorf("llmclassify: variable %s not set", varName)
	}
	content := fmt.Sprintf("%v", v.Value)

	branch, err := c.classify(ctx, content, branches, instructions)
	if err != nil {
		return component.RouteResponse{
			ResponseType: engine.ErrorPend,
			Error:        &engine.ErrorHandler{Code: "LLM_CLASSIFY_ERROR", Message: err.Error()},
		}, nil
	}

	return component.RouteResponse{
		ResponseType: engine.OKProceed,
		Branches:     []string{branch},
	}, nil
}

func (c *Classifier) classify(ctx context.Context, content string, branches []string, instructions string) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("llmclassify: api key is required")
	}

	prompt := fmt.Sprintf(
		"Classify the following case content into exactly one of these categories: %s.\n"+
			"%s\n"+
			"Respond with JSON only, shaped {\"branch\": \"<one of the categories>\", \"reason\": \"<short reason>\"}.\n\n"+
			"Content:\n%s",
		strings.Join(branches, ", "), instructions, content)

	client := anthropicsdk.NewClient(option.WithAPIKey(c.apiKey))
	resp, err := client.Messages.New(ctx, anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(c.modelName),
		MaxTokens: 256,
		Messages: []anthropicsdk.MessageParam{
			anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("llmclassify: anthropic call failed: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if b, ok := block.AsAny().(anthropicsdk.TextBlock); ok {
			text.WriteString(b.Text)
		}
	}

	var result classifyResult
	if err := json.Unmarshal([]byte(extractJSON(text.String())), &result); err != nil {
		return "", fmt.Errorf("llmclassify: could not parse model response: %w", err)
	}

	for _, b := range branches {
		if b == result.Branch {
			return b, nil
		}
	}
	return "", fmt.Errorf("llmclassify: model chose undeclared branch %q", result.Branch)
}

// extractJSON trims any leading/trailing prose around a JSON object,
// since models occasionally wrap the answer in a sentence or code fence
// despite being asked for JSON only.
func extractJSON(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start == -1 || end == -1 || end < start {
		return s
	}
	return s[start : end+1]
}

func stringSlice(v any) ([]string, error) {
	switch vv := v.(type) {
	case []string:
		return vv, nil
	case []any:
		out := make([]string, 0, len(vv))
		for _, e := range vv {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("non-string branch entry %v", e)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported type %T", v)
	}
}
