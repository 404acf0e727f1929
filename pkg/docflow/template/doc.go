/*
Package template expands ${name} placeholders in prompt templates.

Prompts sent to the LLM are plain strings with named slots:

	exp := template.NewExpander(template.WithMissingAction(template.MissingError))
	prompt, err := exp.Expand("Summarize for a ${audience} audience:\n\n${content}", map[string]any{
	    "audience": "technical",
	    "content":  raw,
	})

Substituted values are never expanded again, so content that happens to
contain ${...} reaches the model untouched.

Missing variables are kept as-is by default. MissingEmpty drops them and
MissingError reports them all in one UndefinedVariableError.
*/
package template
