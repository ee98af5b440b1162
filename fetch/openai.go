package fetch

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

const conceptPrompt = `You are a helpful assistant that maps the concepts discussed in a video. The user gives you the transcript of a video.
Answer with a single JSON object and nothing else, with these fields:
- "title": a short title for the main concept of the video
- "summary": a summary of the video of at most five sentences
- "concepts": a list of the key concepts, most important first
- "timestampedConcepts": a list of [seconds, "concept"] pairs that mark where in the video a concept is introduced%s
Do not add introductory sentences like "This video is about".`

// OpenAI maps concepts with a chat model instead of the mapping service.
type OpenAI struct {
	client *openai.Client
	model  string
}

func NewOpenAI(client *openai.Client, model string) *OpenAI {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAI{
		client: client,
		model:  model,
	}
}

func (o *OpenAI) MapConcepts(ctx context.Context, transcript string, includeTimestamps bool) (ConceptMap, error) {
	tsRule := ""
	if !includeTimestamps {
		tsRule = ", leave this list empty"
	}

	resp, err := o.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: o.model,
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: fmt.Sprintf(conceptPrompt, tsRule),
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: transcript,
				},
			},
		})
	if err != nil {
		return ConceptMap{}, fmt.Errorf("%w: %w: %v", ErrConceptMappingFailed, ErrUpstreamUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return ConceptMap{}, fmt.Errorf("%w: no choices in answer", ErrConceptMappingFailed)
	}

	content := strings.TrimSpace(resp.Choices[len(resp.Choices)-1].Message.Content)
	cm, err := decodeConceptMap([]byte(content))
	if err != nil {
		return ConceptMap{}, err
	}

	return cm, nil
}
