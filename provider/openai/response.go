package openai

import (
	"context"
	"io"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/packages/ssestream"
	"github.com/tidwall/gjson"

	json "github.com/goccy/go-json"

	"github.com/casualjim/athene/model"
)

// response adapts one SDK event stream to the poll contract. Deltas pass
// through as they arrive; tool calls wait for the accumulator to finish
// assembling them and are flushed, with the Completed event, once the
// stream is exhausted.
type response struct {
	stream *ssestream.Stream[openai.ChatCompletionChunk]
	acc    openai.ChatCompletionAccumulator

	// trailer holds the post-stream events still to hand out.
	trailer []model.ResponseEvent
	flushed bool

	done   bool
	opaque model.OpaqueMessage
}

var _ model.Response = (*response)(nil)

func (r *response) NextEvent(ctx context.Context) (model.ResponseEvent, error) {
	if r.done {
		return nil, io.EOF
	}
	if err := ctx.Err(); err != nil {
		r.terminate()
		return nil, err
	}

	if !r.flushed {
		for r.stream.Next() {
			chunk := r.stream.Current()
			r.acc.AddChunk(chunk)
			if len(chunk.Choices) == 0 {
				continue
			}
			if text := chunk.Choices[0].Delta.Content; text != "" {
				return model.MessageDelta{Text: text}, nil
			}
		}
		if err := r.stream.Err(); err != nil {
			r.terminate()
			return nil, mapError(err)
		}
		if err := r.flush(); err != nil {
			r.terminate()
			return nil, err
		}
	}

	if len(r.trailer) > 0 {
		ev := r.trailer[0]
		r.trailer = r.trailer[1:]
		return ev, nil
	}

	r.terminate()
	return nil, io.EOF
}

// flush turns the accumulated completion into the trailing events and the
// opaque message.
func (r *response) flush() error {
	r.flushed = true

	compl := r.acc.ChatCompletion
	if len(compl.Choices) == 0 {
		return model.Errorf(model.KindOther, "stream ended without a choice")
	}
	choice := compl.Choices[0]
	if string(choice.FinishReason) == "content_filter" {
		return model.Errorf(model.KindModerated, "response was cut off by the content filter")
	}

	reason := model.FinishEndTurn
	for _, tc := range choice.Message.ToolCalls {
		args := tc.Function.Arguments
		if !gjson.Valid(args) {
			// Defragmentation can leave a truncated argument string when
			// the stream was cut short; an empty object beats feeding the
			// tool garbage.
			args = "{}"
		}
		r.trailer = append(r.trailer, model.ToolCall{Call: model.ToolCallRequest{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: json.RawMessage(args),
		}})
		reason = model.FinishToolCalls
	}
	r.trailer = append(r.trailer, model.Completed{Reason: reason})

	r.opaque = model.NewOpaqueMessage(compl.ID, choice.Message)
	return nil
}

func (r *response) OpaqueMessage() (model.OpaqueMessage, bool) {
	if !r.done || r.opaque.IsZero() {
		return model.OpaqueMessage{}, false
	}
	return r.opaque, true
}

func (r *response) terminate() {
	if r.done {
		return
	}
	r.done = true
	_ = r.stream.Close()
}
