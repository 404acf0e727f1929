package podcast

import (
	"fmt"
	"strings"

	"github.com/randalmurphal/docflow/pkg/docflow"
	"github.com/randalmurphal/docflow/pkg/docflow/jsonx"
	"github.com/randalmurphal/docflow/pkg/docflow/llm"
)

// ScriptNode is the generate_script node.
type ScriptNode struct {
	LLM llm.Client
}

// Run implements docflow.NodeFunc.
func (n *ScriptNode) Run(ctx docflow.Context, s docflow.State) (docflow.State, error) {
	docflow.ReportStart(ctx, s)

	content := s.SummaryContent
	if content == "" {
		content = s.RawContent
	}
	if content == "" {
		docflow.ReportEnd(ctx, false, "No content")
		return s, docflow.Fail("No content for podcast script")
	}
	if n.LLM == nil {
		docflow.ReportEnd(ctx, false, "LLM not configured")
		return s, docflow.Fail("Script generation failed: LLM not configured")
	}

	opts := s.Request.Podcast
	style := opts.Style
	if style == "" {
		style = DefaultStyle
	}
	minutes := opts.DurationMinutes
	if minutes <= 0 {
		minutes = DefaultDurationMinutes
	}
	spk := speakers(opts)
	ctx.Logger().Info("generating podcast script", "style", style, "duration_minutes", minutes)

	req := llm.Prompt("", scriptPrompt(content, style, minutes, spk, max(s.Metadata.SourceCount, 1)))
	req.Model = s.Request.Model
	resp, err := n.LLM.Complete(ctx, req)
	if err != nil {
		ctx.Logger().Error("podcast script generation failed", "error", err)
		docflow.ReportEnd(ctx, false, err.Error())
		return s, docflow.Failf("Script generation failed: %w", err)
	}

	if resp == nil || resp.Content == "" {
		docflow.ReportEnd(ctx, false, "Empty reply")
		return s, docflow.Fail("Failed to parse podcast script")
	}
	obj, ok := jsonx.ExtractObject(resp.Content)
	if !ok {
		docflow.ReportEnd(ctx, false, "Unparseable script")
		return s, docflow.Fail("Failed to parse podcast script")
	}
	dialogue := parseDialogue(obj["dialogue"])
	if len(dialogue) == 0 {
		docflow.ReportEnd(ctx, false, "Empty dialogue")
		return s, docflow.Fail("Failed to parse podcast script")
	}

	title, _ := obj["title"].(string)
	if title == "" {
		title = DefaultTitle
	}
	desc, _ := obj["description"].(string)

	r := s.Podcast()
	r.Title = title
	r.Description = desc
	r.Script = obj
	r.Dialogue = dialogue
	r.Speakers = spk

	docflow.ReportMetric(ctx, "dialogue_lines", float64(len(dialogue)), "count")
	docflow.ReportEnd(ctx, true, fmt.Sprintf("%d lines", len(dialogue)))
	return s, nil
}

// parseDialogue keeps the object entries of a decoded dialogue array.
// A missing speaker becomes "Speaker".
func parseDialogue(v any) []docflow.DialogueLine {
	items, _ := v.([]any)
	out := make([]docflow.DialogueLine, 0, len(items))
	for _, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			continue
		}
		speaker, _ := m["speaker"].(string)
		if speaker == "" {
			speaker = "Speaker"
		}
		text, _ := m["text"].(string)
		out = append(out, docflow.DialogueLine{Speaker: speaker, Text: text})
	}
	return out
}

func scriptPrompt(content, style string, minutes int, spk []docflow.Speaker, sourceCount int) string {
	names := make([]string, len(spk))
	for i, sp := range spk {
		names[i] = fmt.Sprintf("%s (%s)", sp.Name, sp.Role)
	}
	return fmt.Sprintf(`Write a podcast script about the following content.

CONTENT:
%s

REQUIREMENTS:
- Style: %s
- Target duration: %d minutes
- Speakers: %s
- Based on %d source document(s)

OUTPUT FORMAT (JSON):
{
  "title": "Episode title",
  "description": "Brief episode description",
  "dialogue": [
    {"speaker": "SpeakerName", "text": "What they say..."},
    {"speaker": "OtherSpeaker", "text": "Their response..."}
  ]
}

Cover the key points of the content in a natural, engaging exchange.
Return only the JSON object.`, content, style, minutes, strings.Join(names, ", "), sourceCount)
}
