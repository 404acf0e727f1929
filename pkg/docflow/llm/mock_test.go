package llm_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/docflow/pkg/docflow/llm"
)

func complete(t *testing.T, m *llm.MockClient, user string) string {
	t.Helper()
	resp, err := m.Complete(context.Background(), llm.Prompt("sys", user))
	require.NoError(t, err)
	return resp.Content
}

func TestMockClient_Responses(t *testing.T) {
	fixed := llm.NewMockClient(`{"title":"x"}`)
	assert.Equal(t, `{"title":"x"}`, complete(t, fixed, "a"))
	assert.Equal(t, `{"title":"x"}`, complete(t, fixed, "b"))

	scripted := llm.NewMockClient("unused").WithResponses("script", "summary")
	assert.Equal(t, "script", complete(t, scripted, "1"))
	assert.Equal(t, "summary", complete(t, scripted, "2"))
	assert.Equal(t, "script", complete(t, scripted, "3"), "responses cycle")

	scripted.Reset()
	assert.Zero(t, scripted.CallCount())
	assert.Nil(t, scripted.LastCall())
	assert.Equal(t, "script", complete(t, scripted, "again"))
}

func TestMockClient_RecordsCalls(t *testing.T) {
	m := llm.NewMockClient("ok")
	complete(t, m, "transform this")
	complete(t, m, "summarize this")

	require.Equal(t, 2, m.CallCount())
	assert.Equal(t, "transform this", m.Calls[0].Messages[0].Content)
	last := m.LastCall()
	require.NotNil(t, last)
	assert.Equal(t, "sys", last.SystemPrompt)
	assert.Equal(t, "summarize this", last.Messages[0].Content)
}

func TestMockClient_Failures(t *testing.T) {
	boom := errors.New("provider down")
	_, err := llm.NewMockClient("").WithError(boom).Complete(context.Background(), llm.CompletionRequest{})
	assert.ErrorIs(t, err, boom)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = llm.NewMockClient("ok").Complete(ctx, llm.CompletionRequest{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMockClient_CompleteFunc(t *testing.T) {
	m := llm.NewMockClient("").WithCompleteFunc(func(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		return &llm.CompletionResponse{Content: "echo: " + req.Messages[0].Content}, nil
	})
	assert.Equal(t, "echo: hi", complete(t, m, "hi"))
}

func TestMockClient_Metadata(t *testing.T) {
	resp, err := llm.NewMockClient("some response text").Complete(context.Background(), llm.Prompt("", "question"))
	require.NoError(t, err)
	assert.Equal(t, "stop", resp.FinishReason)
	assert.Positive(t, resp.Usage.InputTokens)
	assert.Positive(t, resp.Usage.OutputTokens)
	assert.Equal(t, resp.Usage.InputTokens+resp.Usage.OutputTokens, resp.Usage.TotalTokens)
}

func TestMockSpeech_ErrorsThenPCM(t *testing.T) {
	mock := &llm.MockSpeech{
		PCM:    []byte{1, 2, 3, 4},
		Errors: []error{errors.New("503 unavailable")},
	}
	speakers := []llm.Speaker{{Name: "Alex", Voice: "Kore"}}

	_, err := mock.Synthesize(context.Background(), "Alex: hi", speakers)
	require.Error(t, err)

	pcm, err := mock.Synthesize(context.Background(), "Alex: hi", speakers)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, pcm)
	assert.Equal(t, 2, mock.Calls)
	assert.Equal(t, "Alex: hi", mock.LastPrompt)
	assert.Equal(t, speakers, mock.LastSpeakers)
}

func TestMockImages_RecordsRequests(t *testing.T) {
	mock := &llm.MockImages{}

	resp, err := mock.GenerateImage(context.Background(), llm.ImageRequest{Prompt: "a cat"})
	require.NoError(t, err)
	assert.Equal(t, llm.FormatPNG, resp.Format)
	assert.NotEmpty(t, resp.Data)

	_, err = mock.EditImage(context.Background(), llm.ImageEditRequest{Prompt: "make it blue", Mode: llm.EditBasic})
	require.NoError(t, err)

	require.Len(t, mock.Generated, 1)
	require.Len(t, mock.Edited, 1)
	assert.Equal(t, "a cat", mock.Generated[0].Prompt)
	assert.Equal(t, "make it blue", mock.Edited[0].Prompt)

	mock.Err = errors.New("boom")
	_, err = mock.GenerateImage(context.Background(), llm.ImageRequest{})
	assert.EqualError(t, err, "boom")
}
