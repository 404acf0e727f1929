package llm

import (
	"context"
	"sync"
)

// MockClient is a Client for tests. It returns a fixed response, cycles
// through a list of responses, or delegates to a function.
type MockClient struct {
	mu        sync.Mutex
	response  string
	responses []string
	next      int
	err       error
	fn        func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Calls records every request in order.
	Calls []CompletionRequest
}

// NewMockClient returns a mock that always answers response.
func NewMockClient(response string) *MockClient {
	return &MockClient{response: response}
}

// WithResponses makes the mock cycle through responses.
func (m *MockClient) WithResponses(responses ...string) *MockClient {
	m.responses = responses
	m.next = 0
	return m
}

// WithError makes every call fail with err.
func (m *MockClient) WithError(err error) *MockClient {
	m.err = err
	return m
}

// WithCompleteFunc delegates every call to fn.
func (m *MockClient) WithCompleteFunc(fn func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)) *MockClient {
	m.fn = fn
	return m
}

// Complete implements Client.
func (m *MockClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.Calls = append(m.Calls, req)
	fn, err := m.fn, m.err
	content := m.response
	if len(m.responses) > 0 {
		content = m.responses[m.next%len(m.responses)]
		m.next++
	}
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	if err != nil {
		return nil, err
	}

	in := approxTokens(req.SystemPrompt)
	for _, msg := range req.Messages {
		in += approxTokens(msg.Content)
	}
	out := approxTokens(content)
	return &CompletionResponse{
		Content:      content,
		Usage:        TokenUsage{InputTokens: in, OutputTokens: out, TotalTokens: in + out},
		Model:        "mock",
		FinishReason: "stop",
	}, nil
}

// CallCount returns the number of calls made.
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// LastCall returns the most recent request, or nil.
func (m *MockClient) LastCall() *CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Calls) == 0 {
		return nil
	}
	req := m.Calls[len(m.Calls)-1]
	return &req
}

// Reset clears recorded calls and restarts the response cycle.
func (m *MockClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = nil
	m.next = 0
}

// approxTokens estimates four characters per token, never less than one.
func approxTokens(s string) int {
	return max(1, len(s)/4)
}

// MockSpeech is a SpeechSynthesizer for tests. Errors are returned in order
// before PCM is produced.
type MockSpeech struct {
	mu     sync.Mutex
	PCM    []byte
	Errors []error
	Calls  int
	// LastPrompt and LastSpeakers record the most recent call.
	LastPrompt   string
	LastSpeakers []Speaker
}

// Synthesize implements SpeechSynthesizer.
func (m *MockSpeech) Synthesize(ctx context.Context, prompt string, speakers []Speaker) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	m.LastPrompt = prompt
	m.LastSpeakers = speakers
	if m.Calls <= len(m.Errors) && m.Errors[m.Calls-1] != nil {
		return nil, m.Errors[m.Calls-1]
	}
	return m.PCM, nil
}

// MockImages is an ImageGenerator and ImageEditor for tests.
type MockImages struct {
	mu       sync.Mutex
	Response *ImageResponse
	Err      error

	Generated []ImageRequest
	Edited    []ImageEditRequest
}

// GenerateImage implements ImageGenerator.
func (m *MockImages) GenerateImage(ctx context.Context, req ImageRequest) (*ImageResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Generated = append(m.Generated, req)
	return m.result()
}

// EditImage implements ImageEditor.
func (m *MockImages) EditImage(ctx context.Context, req ImageEditRequest) (*ImageResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Edited = append(m.Edited, req)
	return m.result()
}

func (m *MockImages) result() (*ImageResponse, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Response == nil {
		return &ImageResponse{Data: []byte("png"), Format: FormatPNG}, nil
	}
	resp := *m.Response
	return &resp, nil
}

var (
	_ Client            = (*MockClient)(nil)
	_ SpeechSynthesizer = (*MockSpeech)(nil)
	_ ImageGenerator    = (*MockImages)(nil)
	_ ImageEditor       = (*MockImages)(nil)
)
