// Package httpcallout is a sample TaskComponent wrapping an outbound
// HTTP request as a TASK step.
package httpcallout

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/caseflow/engine/component"
	"github.com/caseflow/engine/engine"
)

// Caller implements component.TaskComponent by issuing one HTTP
// request per dispatch.
//
// Step UserData contract:
//   - "method": HTTP method, defaults to GET
//   - "url": target URL (required)
//   - "headers": map[string]string of request headers
//   - "body_variable": name of a string variable to send as the request body (optional)
//   - "result_variable": name of the variable the response body is written to (required)
//   - "error_work_basket": work basket for a non-2xx or transport failure; defaults to the engine's system error basket
type Caller struct {
	client *http.Client
}

// NewCaller constructs a Caller with a bounded default timeout; callers
// needing a different one should wrap ctx with their own deadline, since
// the http.Client always defers to ctx for cancellation.
func NewCaller() *Caller {
	return &Caller{client: &http.Client{Timeout: 30 * time.Second}}
}

func (c *Caller) ExecuteStep(ctx context.Context, stepCtx component.Context) (component.TaskResponse, error) {
	urlStr, _ := stepCtx.UserData["url"].(string)
	if urlStr == "" {
		return component.TaskResponse{}, fmt.Errorf("httpcallout: step %s missing userData.url", stepCtx.StepName)
	}
	method := "GET"
	if m, ok := stepCtx.UserData["method"].(string); ok && m != "" {
		method = strings.ToUpper(m)
	}
	resultVar, _ := stepCtx.UserData["result_variable"].(string)
	if resultVar == "" {
		return component.TaskResponse{}, fmt.Errorf("httpcallout: step %s missing userData.result_variable", stepCtx.StepName)
	}
	errorBasket, _ := stepCtx.UserData["error_work_basket"].(string)

	var body io.Reader
	if bodyVarName, ok := stepCtx.UserData["body_variable"].(string); ok && bodyVarName != "" {
		if v, ok := stepCtx.Variables.GetVariable(bodyVarName); ok {
			body = bytes.NewBufferString(fmt.Sprintf("%v", v.Value))
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, urlStr, body)
	if err != nil {
		return c.errorResponse(errorBasket, "bad request: "+err.Error()), nil
	}
	if headers, ok := stepCtx.UserData["headers"].(map[string]any); ok {
		for k, v := range headers {
			if s, ok := v.(string); ok {
				req.Header.Set(k, s)
			}
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return c.errorResponse(errorBasket, "request failed: "+err.Error()), nil
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.errorResponse(errorBasket, "reading response failed: "+err.Error()), nil
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.errorResponse(errorBasket, fmt.Sprintf("status %d: %s", resp.StatusCode, string(respBody))), nil
	}

	stepCtx.Variables.SetVariable(engine.Variable{
		Name:  resultVar,
		Type:  engine.VarString,
		Value: string(respBody),
	})

	return component.TaskResponse{ResponseType: engine.OKProceed}, nil
}

func (c *Caller) errorResponse(workBasket, message string) component.TaskResponse {
	return component.TaskResponse{
		ResponseType: engine.ErrorPend,
		WorkBasket:   workBasket,
		Error:        &engine.ErrorHandler{Code: "HTTP_CALLOUT_ERROR", Message: message},
	}
}
