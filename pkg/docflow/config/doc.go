/*
Package config loads docflow's runtime configuration.

# Map access

Config wraps a decoded YAML or JSON document and offers typed accessors that
fall back to a default instead of failing:

	cfg, err := config.FromFile("docflow.yaml")
	if err != nil {
	    return err
	}
	ttl := cfg.Duration("checkpoint.ttl", time.Hour)
	backend := cfg.String("checkpoint.backend", "memory")

Keys are dotted paths into nested sections. Durations accept Go duration
strings or a number of seconds.

# Settings

Settings is the typed view used by the CLI and the workflow assembly. Load
reads a file, fills unset fields from Defaults, overlays DOCFLOW_* environment
variables and validates:

	s, err := config.Load(os.Getenv("DOCFLOW_CONFIG"))

Environment names follow the section layout, so checkpoint.ttl becomes
DOCFLOW_CHECKPOINT_TTL and openai.api_key becomes DOCFLOW_OPENAI_API_KEY.
*/
package config
