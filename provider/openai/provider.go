package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/casualjim/athene/model"
	"github.com/casualjim/athene/pkg/jsonx"
)

// Provider speaks the chat completions API for one configured model.
type Provider struct {
	client    *openai.Client
	modelName string
}

var _ model.Provider = (*Provider)(nil)

// New builds a provider for the named model. Request options pass straight
// through to the SDK client; credentials default to the environment.
func New(modelName string, options ...option.RequestOption) *Provider {
	return &Provider{
		client:    openai.NewClient(options...),
		modelName: modelName,
	}
}

// SendRequest opens a streaming completion. The returned response pulls SDK
// chunks lazily from NextEvent; abandoning it closes the stream.
func (p *Provider) SendRequest(ctx context.Context, req model.Request) (model.Response, error) {
	params, err := p.buildParams(req)
	if err != nil {
		return nil, err
	}

	stream := p.client.Chat.Completions.NewStreaming(ctx, params)
	if err := stream.Err(); err != nil {
		_ = stream.Close()
		return nil, mapError(err)
	}
	return &response{stream: stream}, nil
}

func (p *Provider) buildParams(req model.Request) (openai.ChatCompletionNewParams, error) {
	history, err := messagesToOpenAI(req.Messages)
	if err != nil {
		return openai.ChatCompletionNewParams{}, err
	}

	params := openai.ChatCompletionNewParams{
		Messages: openai.F(history),
		Model:    openai.F(p.modelName),
		N:        openai.Int(1),
	}

	if len(req.Tools) > 0 {
		tools := make([]openai.ChatCompletionToolParam, len(req.Tools))
		for i, t := range req.Tools {
			def := openai.FunctionDefinitionParam{
				Name: openai.String(t.Name),
			}
			if strings.TrimSpace(t.Description) != "" {
				def.Description = openai.String(t.Description)
			}
			if t.Parameters != nil {
				schema, err := jsonx.ToDynamic(t.Parameters)
				if err != nil {
					return openai.ChatCompletionNewParams{}, fmt.Errorf("convert schema for tool %s: %w", t.Name, err)
				}
				def.Parameters = openai.F(shared.FunctionParameters(schema))
			}
			tools[i] = openai.ChatCompletionToolParam{
				Type:     openai.F(openai.ChatCompletionToolTypeFunction),
				Function: openai.F(def),
			}
		}
		params.Tools = openai.F(tools)
		params.ParallelToolCalls = openai.Bool(true)
	}

	return params, nil
}

func messagesToOpenAI(history []model.Message) ([]openai.ChatCompletionMessageParamUnion, error) {
	result := make([]openai.ChatCompletionMessageParamUnion, 0, len(history))
	for _, message := range history {
		switch msg := message.(type) {
		case model.System:
			result = append(result, openai.SystemMessage(msg.Content))
		case model.User:
			result = append(result, openai.UserMessage(msg.Content))
		case model.Assistant:
			result = append(result, openai.AssistantMessage(msg.Content))
		case model.ToolResult:
			result = append(result, openai.ToolMessage(msg.ID, msg.Content))
		case model.Opaque:
			native, ok := msg.Message.Raw().(openai.ChatCompletionMessage)
			if !ok {
				return nil, fmt.Errorf("opaque message %s was not minted by this provider", msg.Message.ID())
			}
			result = append(result, assistantTurnToParam(native))
		default:
			return nil, fmt.Errorf("unsupported message type %T", message)
		}
	}
	return result, nil
}

// assistantTurnToParam replays an assembled assistant message, tool calls
// included, as a request parameter.
func assistantTurnToParam(msg openai.ChatCompletionMessage) openai.ChatCompletionMessageParamUnion {
	if len(msg.ToolCalls) == 0 {
		return openai.AssistantMessage(msg.Content)
	}

	calls := make([]openai.ChatCompletionMessageToolCallParam, len(msg.ToolCalls))
	for i, tc := range msg.ToolCalls {
		calls[i] = openai.ChatCompletionMessageToolCallParam{
			ID:   openai.String(tc.ID),
			Type: openai.F(openai.ChatCompletionMessageToolCallTypeFunction),
			Function: openai.F(openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      openai.String(tc.Function.Name),
				Arguments: openai.String(tc.Function.Arguments),
			}),
		}
	}
	param := openai.ChatCompletionMessageParam{
		Role:      openai.F(openai.ChatCompletionMessageParamRoleAssistant),
		ToolCalls: openai.F[any](calls),
	}
	if msg.Content != "" {
		param.Content = openai.F[any](msg.Content)
	}
	return param
}

// mapError classifies SDK failures for retry policy.
func mapError(err error) error {
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return &model.Error{Kind: model.KindOther, Err: err}
	}
	switch {
	case apiErr.StatusCode == 429:
		return &model.Error{Kind: model.KindRateLimited, Err: err}
	case apiErr.StatusCode == 400 && looksModerated(apiErr):
		return &model.Error{Kind: model.KindModerated, Err: err}
	default:
		return &model.Error{Kind: model.KindOther, Err: err}
	}
}

func looksModerated(apiErr *openai.Error) bool {
	needle := strings.ToLower(apiErr.Message)
	return strings.Contains(needle, "content_filter") ||
		strings.Contains(needle, "content management policy") ||
		strings.Contains(needle, "moderation")
}
