package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type fakeModels struct {
	resp   *genai.GenerateContentResponse
	err    error
	model  string
	config *genai.GenerateContentConfig
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, _ []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.config = config
	return f.resp, f.err
}

func textResponse(parts ...string) *genai.GenerateContentResponse {
	content := &genai.Content{Role: genai.RoleModel}
	for _, p := range parts {
		content.Parts = append(content.Parts, &genai.Part{Text: p})
	}
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{Content: content}}}
}

func TestGeminiComplete(t *testing.T) {
	fake := &fakeModels{resp: textResponse(" [{\"name\":\"A\"}] ", "", "done")}
	g := &GeminiClient{models: fake, modelName: "gemini-test", webSearch: true}

	out, err := g.Complete(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "[{\"name\":\"A\"}]\ndone", out)
	assert.Equal(t, "gemini-test", fake.model)
	require.NotNil(t, fake.config)
	require.Len(t, fake.config.Tools, 1)
	assert.NotNil(t, fake.config.Tools[0].GoogleSearch)
}

func TestGeminiCompleteErrors(t *testing.T) {
	g := &GeminiClient{models: &fakeModels{resp: textResponse()}, modelName: "m"}
	_, err := g.Complete(context.Background(), "prompt")
	assert.ErrorContains(t, err, "empty response")

	g = &GeminiClient{models: &fakeModels{err: errors.New("quota")}, modelName: "m"}
	_, err = g.Complete(context.Background(), "prompt")
	assert.ErrorContains(t, err, "quota")

	_, err = g.Complete(context.Background(), "   ")
	assert.Error(t, err)

	var nilClient *GeminiClient
	_, err = nilClient.Complete(context.Background(), "prompt")
	assert.Error(t, err)

	_, err = NewGeminiClient(context.Background(), " ", "", false)
	assert.Error(t, err)
}
