package podcast

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/randalmurphal/docflow/pkg/docflow"
	docerrors "github.com/randalmurphal/docflow/pkg/docflow/errors"
	"github.com/randalmurphal/docflow/pkg/docflow/llm"
)

// AudioNode is the synthesize_audio node.
type AudioNode struct {
	TTS llm.SpeechSynthesizer
	// Retry bounds synthesis retries. The zero value means errors.SpeechRetry.
	Retry docerrors.RetryConfig
}

// Run implements docflow.NodeFunc.
func (n *AudioNode) Run(ctx docflow.Context, s docflow.State) (docflow.State, error) {
	docflow.ReportStart(ctx, s)

	r, _ := s.Payload.(*docflow.PodcastResult)
	if r == nil || len(r.Dialogue) == 0 {
		docflow.ReportEnd(ctx, false, "No dialogue")
		return s, docflow.Fail("No dialogue for audio synthesis")
	}
	if n.TTS == nil {
		docflow.ReportEnd(ctx, false, "TTS not configured")
		return s, docflow.Fail("TTS service not configured")
	}

	spk := r.Speakers
	if len(spk) == 0 {
		spk = speakers(s.Request.Podcast)
	}
	voices := make([]llm.Speaker, len(spk))
	for i, sp := range spk {
		voices[i] = llm.Speaker{Name: sp.Name, Voice: sp.Voice}
	}

	prompt := TTSPrompt(r.Dialogue)
	ctx.Logger().Info("synthesizing podcast audio", "lines", len(r.Dialogue))

	cfg := n.retryConfig(ctx)
	res := docerrors.Do(ctx, cfg, func(c context.Context) ([]byte, error) {
		return n.TTS.Synthesize(c, prompt, voices)
	})
	if res.Err != nil {
		cause := rootCause(res.Err)
		ctx.Logger().Error("audio synthesis failed", "error", cause, "attempts", res.Attempts)
		docflow.ReportEnd(ctx, false, cause.Error())
		return s, docflow.Failf("Audio synthesis failed: %w", cause)
	}
	if res.Attempts > 1 {
		ctx.Logger().Info("speech synthesis succeeded after retry", "attempts", res.Attempts)
	}

	pcm := res.Value
	r.Audio = pcm
	r.AudioBase64 = base64.StdEncoding.EncodeToString(WAV(pcm))
	r.DurationSeconds = Duration(pcm)
	s.Completed = true

	docflow.ReportMetric(ctx, "audio_duration", r.DurationSeconds, "s")
	docflow.ReportEnd(ctx, true, fmt.Sprintf("%.1fs of audio", r.DurationSeconds))
	return s, nil
}

func (n *AudioNode) retryConfig(ctx docflow.Context) docerrors.RetryConfig {
	cfg := n.Retry
	if cfg.MaxAttempts == 0 {
		cfg = docerrors.SpeechRetry
	}
	if cfg.OnRetry == nil {
		logger := ctx.Logger()
		cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
			logger.Warn("speech synthesis failed, retrying",
				"attempt", attempt,
				"max_attempts", cfg.MaxAttempts,
				"delay", delay.String(),
				"error", err.Error(),
			)
		}
	}
	return cfg
}

// rootCause strips the categorization added by the retry helper.
func rootCause(err error) error {
	var ce *docerrors.CategorizedError
	if errors.As(err, &ce) && ce.Err != nil {
		return ce.Err
	}
	return err
}

// TTSPrompt renders the dialogue as "speaker: text" lines, skipping empty text.
func TTSPrompt(lines []docflow.DialogueLine) string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if strings.TrimSpace(l.Text) == "" {
			continue
		}
		speaker := l.Speaker
		if speaker == "" {
			speaker = "Speaker"
		}
		out = append(out, speaker+": "+l.Text)
	}
	return strings.Join(out, "\n")
}
