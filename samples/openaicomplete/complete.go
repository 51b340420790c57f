// Package openaicomplete is a sample TaskComponent that generates text
// via OpenAI's chat completions API, bound to a TASK step's
// Context/TaskResponse contract.
package openaicomplete

import (
	"context"
	"fmt"

	"github.com/caseflow/engine/component"
	"github.com/caseflow/engine/engine"
	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Completer implements component.TaskComponent by issuing one chat
// completion request per dispatch.
//
// Step UserData contract:
//   - "prompt_variable": name of a string variable holding the user prompt (required)
//   - "system_prompt": optional system message prepended to the request
//   - "result_variable": name of the variable the completion text is written to (required)
//   - "error_work_basket": work basket for an API failure; defaults to the engine's system error basket
type Completer struct {
	apiKey    string
	modelName string
}

// NewCompleter constructs a Completer. An empty modelName defaults to
// gpt-4o.
func NewCompleter(apiKey, modelName string) *Completer {
	if modelName == "" {
		modelName = "gpt-4o"
	}
	return &Completer{apiKey: apiKey, modelName: modelName}
}

func (c *Completer) ExecuteStep(ctx context.Context, stepCtx component.Context) (component.TaskResponse, error) {
	promptVar, _ := stepCtx.UserData["prompt_variable"].(string)
	if promptVar == "" {
		return component.TaskResponse{}, fmt.Errorf("openaicomplete: step %s missing userData.prompt_variable", stepCtx.StepName)
	}
	resultVar, _ := stepCtx.UserData["result_variable"].(string)
	if resultVar == "" {
		return component.TaskResponse{}, fmt.Errorf("openaicomplete: step %s missing userData.result_variable", stepCtx.StepName)
	}
	errorBasket, _ := stepCtx.UserData["error_work_basket"].(string)

	v, ok := stepCtx.Variables.GetVariable(promptVar)
	if !ok {
		return c.errorResponse(errorBasket, "prompt variable "+promptVar+" is not set"), nil
	}
	prompt := fmt.Sprintf("%v", v.Value)

	messages := []openaisdk.ChatCompletionMessageParamUnion{}
	if sys, _ := stepCtx.UserData["system_prompt"].(string); sys != "" {
		messages = append(messages, openaisdk.SystemMessage(sys))
	}
	messages = append(messages, openaisdk.UserMessage(prompt))

	client := openaisdk.NewClient(option.WithAPIKey(c.apiKey))
	resp, err := client.Chat.Completions.New(ctx, openaisdk.ChatCompletionNewParams{
		Model:    openaisdk.ChatModel(c.modelName),
		Messages: messages,
	})
	if err != nil {
		return c.errorResponse(errorBasket, "openai API error: "+err.Error()), nil
	}
	if len(resp.Choices) == 0 {
		return c.errorResponse(errorBasket, "openai returned no choices"), nil
	}

	stepCtx.Variables.SetVariable(engine.Variable{
		Name:  resultVar,
		Type:  engine.VarString,
		Value: resp.Choices[0].Message.Content,
	})

	return component.TaskResponse{ResponseType: engine.OKProceed}, nil
}

func (c *Completer) errorResponse(workBasket, message string) component.TaskResponse {
	return component.TaskResponse{
		ResponseType: engine.ErrorPend,
		WorkBasket:   workBasket,
		Error:        &engine.ErrorHandler{Code: "OPENAI_COMPLETE_ERROR", Message: message},
	}
}
