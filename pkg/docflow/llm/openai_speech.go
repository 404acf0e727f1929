package llm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/openai/openai-go"
)

// openAIVoices are assigned to speakers whose voice is not an OpenAI voice.
var openAIVoices = []string{"alloy", "echo", "fable", "onyx", "nova", "shimmer", "ash", "coral", "sage"}

// OpenAISpeech implements SpeechSynthesizer with the speech API.
//
// The prompt is expected as "speaker: text" lines. Each line is synthesized in
// the voice of its speaker and the PCM streams are concatenated.
type OpenAISpeech struct {
	client openai.Client
	model  string
}

// NewOpenAISpeech creates a speech synthesizer.
func NewOpenAISpeech(opts ...OpenAIOption) *OpenAISpeech {
	cfg := newOpenAIConfig(DefaultSpeechModel, opts)
	return &OpenAISpeech{client: cfg.client(), model: cfg.model}
}

// Synthesize implements SpeechSynthesizer.
func (s *OpenAISpeech) Synthesize(ctx context.Context, prompt string, speakers []Speaker) ([]byte, error) {
	voices := voiceMap(speakers)

	var pcm bytes.Buffer
	for _, line := range strings.Split(prompt, "\n") {
		speaker, text := splitLine(line)
		if text == "" {
			continue
		}
		voice, ok := voices[speaker]
		if !ok {
			voice = openAIVoices[0]
		}

		resp, err := s.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
			Input:          text,
			Model:          openai.SpeechModel(s.model),
			Voice:          openai.AudioSpeechNewParamsVoice(voice),
			ResponseFormat: openai.AudioSpeechNewParamsResponseFormatPCM,
		})
		if err != nil {
			return nil, wrapOpenAIError("synthesize", ctx, err)
		}
		_, err = io.Copy(&pcm, resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, NewError("synthesize", fmt.Errorf("read audio: %w", err), true)
		}
	}
	if pcm.Len() == 0 {
		return nil, NewError("synthesize", errors.New("no speakable lines in script"), false)
	}
	return pcm.Bytes(), nil
}

// voiceMap resolves each speaker to an OpenAI voice. Known voices are kept;
// others are assigned in speaker order.
func voiceMap(speakers []Speaker) map[string]string {
	out := make(map[string]string, len(speakers))
	for i, sp := range speakers {
		v := strings.ToLower(sp.Voice)
		if !isOpenAIVoice(v) {
			v = openAIVoices[i%len(openAIVoices)]
		}
		out[sp.Name] = v
	}
	return out
}

func isOpenAIVoice(v string) bool {
	return slices.Contains(openAIVoices, v)
}

// splitLine parses "speaker: text". A line without a colon is all text.
func splitLine(line string) (speaker, text string) {
	line = strings.TrimSpace(line)
	name, rest, ok := strings.Cut(line, ":")
	if !ok {
		return "", line
	}
	return strings.TrimSpace(name), strings.TrimSpace(rest)
}

var _ SpeechSynthesizer = (*OpenAISpeech)(nil)
