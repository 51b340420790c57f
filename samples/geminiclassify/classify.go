// Package geminiclassify is a sample RouteComponent that picks an
// outgoing branch using Google's Gemini API, matching the model's reply
// back against a route step's declared branches instead of returning a
// free-form chat response.
package geminiclassify

import (
	"context"
	"fmt"
	"strings"

	"github.com/caseflow/engine/component"
	"github.com/caseflow/engine/engine"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Classifier implements component.RouteComponent by asking Gemini to pick
// one of the step's declared branches and matching its reply back against
// that list, never trusting free text as a branch name directly.
//
// Step UserData contract:
//   - "variable": name of the variable holding the content to classify (required)
//   - "branches": []string of the legal branch names to choose from (required)
//   - "instructions": optional extra guidance appended to the prompt
type Classifier struct {
	apiKey    string
	modelName string
}

// NewClassifier constructs a Classifier. An empty modelName defaults to
// gemini-2.5-flash.
func NewClassifier(apiKey, modelName string) *Classifier {
	if modelName == "" {
		modelName = "gemini-2.5-flash"
	}
	return &Classifier{apiKey: apiKey, modelName: modelName}
}

func (c *Classifier) ExecuteRoute(ctx context.Context, stepCtx component.Context) (component.RouteResponse, error) {
	varName, _ := stepCtx.UserData["variable"].(string)
	if varName == "" {
		return component.RouteResponse{}, fmt.Errorf("geminiclassify: step %s missing userData.variable", stepCtx.StepName)
	}
	branches, err := stringSlice(stepCtx.UserData["branches"])
	if err != nil || len(branches) == 0 {
		return component.RouteResponse{}, fmt.Errorf("geminiclassify: step %s has no usable userData.branches: %w", stepCtx.StepName, err)
	}
	instructions, _ := stepCtx.UserData["instructions"].(string)

	v, ok := stepCtx.Variables.GetVariable(varName)
	if !ok {
		return c.errorResponse("variable " + varName + " is not set"), nil
	}

	branch, err := c.classify(ctx, fmt.Sprintf("%v", v.Value), branches, instructions)
	if err != nil {
		return c.errorResponse(err.Error()), nil
	}

	return component.RouteResponse{ResponseType: engine.OKProceed, Branches: []string{branch}}, nil
}

func (c *Classifier) classify(ctx context.Context, content string, branches []string, instructions string) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("gemini API key is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(c.apiKey))
	if err != nil {
		return "", fmt.Errorf("failed to create gemini client: %w", err)
	}
	defer client.Close()

	genModel := client.GenerativeModel(c.modelName)

	prompt := fmt.Sprintf(
		"Classify the following content into exactly one of these branches: %s.\n%sReply with only the branch name, nothing else.\n\nContent:\n%s",
		strings.Join(branches, ", "), instructionsLine(instructions), content,
	)

	resp, err := genModel.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini API error: %w", err)
	}

	reply := extractText(resp)
	chosen := matchBranch(reply, branches)
	if chosen == "" {
		return "", fmt.Errorf("gemini reply %q does not match any declared branch", reply)
	}
	return chosen, nil
}

func instructionsLine(instructions string) string {
	if instructions == "" {
		return ""
	}
	return instructions + "\n"
}

func extractText(resp *genai.GenerateContentResponse) string {
	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				sb.WriteString(string(t))
			}
		}
	}
	return strings.TrimSpace(sb.String())
}

func matchBranch(reply string, branches []string) string {
	reply = strings.ToLower(strings.TrimSpace(reply))
	for _, b := range branches {
		if strings.ToLower(b) == reply {
			return b
		}
	}
	for _, b := range branches {
		if strings.Contains(reply, strings.ToLower(b)) {
			return b
		}
	}
	return ""
}

func (c *Classifier) errorResponse(message string) component.RouteResponse {
	return component.RouteResponse{
		ResponseType: engine.ErrorPend,
		Error:        &engine.ErrorHandler{Code: "GEMINI_CLASSIFY_ERROR", Message: message},
	}
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
				return nil, fmt.Errorf("branch entry %v is not a string", e)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported branches type %T", v)
	}
}
