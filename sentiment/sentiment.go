/*
Copyright 2026

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package sentiment produces short LLM-generated sentiment summaries for a
// symbol on a given date. Generation is best-effort enrichment: any failure
// degrades to an empty string and never aborts price extraction.
package sentiment

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"
)

// Func generates a sentiment string for symbol on date. Implementations must
// not fail: on any error they return "".
type Func func(ctx context.Context, symbol, date string) string

// Generator produces sentiment summaries through the OpenAI chat API.
type Generator struct {
	client *openai.Client
	model  string
}

func NewGenerator(apiKey string) *Generator {
	return NewGeneratorWithClient(openai.NewClient(apiKey))
}

// NewGeneratorWithClient allows injecting a pre-configured client.
func NewGeneratorWithClient(client *openai.Client) *Generator {
	return &Generator{client: client, model: openai.GPT4oMini}
}

// Generate asks the model for a two-sentence sentiment assessment and returns
// the first choice's text, or "" on any failure.
func (g *Generator) Generate(ctx context.Context, symbol, date string) string {
	prompt := fmt.Sprintf("Act as a financial analyst, in two sentences what is the sentiment for %s on %s?", symbol, date)

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		log.Error().Err(err).Str("Symbol", symbol).Str("Date", date).Msg("sentiment generation failed")
		return ""
	}
	if len(resp.Choices) == 0 {
		log.Warn().Str("Symbol", symbol).Str("Date", date).Msg("sentiment generation returned no choices")
		return ""
	}
	return resp.Choices[0].Message.Content
}
