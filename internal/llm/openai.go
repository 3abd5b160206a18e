package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
	"github.com/openai/openai-go/v3/shared"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type OpenAIProvider struct {
	client *openai.Client
	model  string
}

// NewOpenAI builds a provider for the Responses API. Extra request options
// are applied after the defaults.
func NewOpenAI(baseURL, apiKey, model string, extra ...option.RequestOption) *OpenAIProvider {
	var opts []option.RequestOption
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	opts = append(opts, option.WithHTTPClient(&http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}))
	opts = append(opts, extra...)
	client := openai.NewClient(opts...)
	return &OpenAIProvider{client: &client, model: model}
}

func (o *OpenAIProvider) Chat(ctx context.Context, req Request) (*Reply, error) {
	model := req.Model
	if model == "" {
		model = o.model
	}

	params := responses.ResponseNewParams{
		Model: shared.ResponsesModel(model),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: toInput(req.Input),
		},
	}
	if req.Instructions != "" {
		params.Instructions = openai.String(req.Instructions)
	}
	for _, t := range req.Tools {
		params.Tools = append(params.Tools, responses.ToolUnionParam{
			OfFunction: &responses.FunctionToolParam{
				Name:        t.Name,
				Description: openai.String(t.Description),
				Parameters:  t.Parameters,
				Strict:      openai.Bool(true),
			},
		})
	}

	resp, err := o.client.Responses.New(ctx, params)
	if err != nil {
		return nil, classify(err)
	}
	if resp.Status == "failed" {
		return nil, fmt.Errorf("response failed: %s", resp.Error.Message)
	}
	if resp.Status == "incomplete" {
		return nil, fmt.Errorf("openai: %w: %s", ErrIncomplete, resp.IncompleteDetails.Reason)
	}

	return fromResponse(resp), nil
}

func classify(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("openai: %w: %w", ErrUnauthorized, err)
		}
	}
	return fmt.Errorf("openai: %w", err)
}

func toInput(items []Item) []responses.ResponseInputItemUnionParam {
	out := make([]responses.ResponseInputItemUnionParam, 0, len(items))
	for _, it := range items {
		switch {
		case it.Call != nil:
			out = append(out, responses.ResponseInputItemParamOfFunctionCall(it.Call.Arguments, it.Call.ID, it.Call.Name))
		case it.Result != nil:
			out = append(out, responses.ResponseInputItemParamOfFunctionCallOutput(it.Result.CallID, it.Result.Output))
		default:
			out = append(out, responses.ResponseInputItemParamOfMessage(it.Text, responses.EasyInputMessageRole(it.Role)))
		}
	}
	return out
}

func fromResponse(resp *responses.Response) *Reply {
	reply := &Reply{
		Model:        string(resp.Model),
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
		Raw:          json.RawMessage(resp.RawJSON()),
	}

	var text strings.Builder
	for _, item := range resp.Output {
		switch item.Type {
		case "message":
			for _, c := range item.AsMessage().Content {
				if c.Type == "output_text" {
					text.WriteString(c.AsOutputText().Text)
				}
			}
		case "function_call":
			fc := item.AsFunctionCall()
			reply.Calls = append(reply.Calls, ToolCall{
				ID:        fc.CallID,
				Name:      fc.Name,
				Arguments: fc.Arguments,
			})
		}
	}
	reply.Text = text.String()
	return reply
}
