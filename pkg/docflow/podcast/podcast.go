// Package podcast implements the podcast branch: an LLM-written dialogue
// script followed by multi-speaker speech synthesis.
package podcast

import "github.com/randalmurphal/docflow/pkg/docflow"

// Defaults applied when the request leaves podcast options empty.
const (
	DefaultStyle           = "conversational"
	DefaultDurationMinutes = 3
	DefaultTitle           = "Podcast Episode"
)

// DefaultSpeakers is the host pair used when none are requested.
var DefaultSpeakers = []docflow.Speaker{
	{Name: "Alex", Voice: "Kore", Role: "host"},
	{Name: "Sam", Voice: "Puck", Role: "co-host"},
}

// speakers returns the requested speakers or DefaultSpeakers.
func speakers(opts docflow.PodcastOptions) []docflow.Speaker {
	if len(opts.Speakers) > 0 {
		return opts.Speakers
	}
	return DefaultSpeakers
}
