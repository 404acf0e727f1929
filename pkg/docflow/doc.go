/*
Package docflow provides a session-scoped workflow engine that turns content
sources (files, URLs, inline text) into documents, podcasts, mind maps and
images.

# Overview

The topology is fixed. Every run starts with the shared source-preparation
chain, is routed by output type to one of five branches, and ends at the last
node of that branch:

	validate_sources -> resolve_sources -> extract_sources -> merge_sources
	    document:       detect_format -> parse_content -> transform_content ->
	                    enhance_content -> generate_images -> describe_images ->
	                    persist_images -> generate_output -> validate_output
	    podcast:        generate_script -> synthesize_audio
	    mindmap:        generate_mindmap
	    image_generate: generate_image
	    image_edit:     edit_image

validate_output has the only conditional back edge: a retryable failure loops
to generate_output until the retry budget is spent.

# Nodes

Nodes implement NodeFunc and are supplied through a Registry. A node never lets
a failure escape as a panic or an aborted run; it returns an error value and
the engine records it:

	func generateMindMap(ctx docflow.Context, s docflow.State) (docflow.State, error) {
	    if s.RawContent == "" {
	        return s, docflow.Fail("No content for mind map")
	    }
	    ...
	    return s, nil
	}

	engine, err := docflow.NewEngine(registry, docflow.WithMaxRetries(3))
	result, err := engine.Run(docflow.NewContext(ctx), state)

Returned errors of type *Failure carry the user-facing message and, for shared
nodes, a SkipReason that bypasses the rest of the shared chain. Any other error
is recorded as err.Error(). Panics are recovered and recorded too.

Success is a populated payload with no Errors. Failure is a non-empty Errors
list whose last entry is the primary reason.

# Subpackages

  - checkpoint: session snapshots (memory, SQLite, Badger, Redis) and session metadata
  - session: deterministic session identity over a source set
  - sources: the shared source-preparation nodes
  - mindmap, podcast, image, document: branch nodes
  - jsonx: tolerant JSON extraction from model output
  - workflow: registry wiring and session-aware invocation
  - llm: model, speech and image service interfaces and OpenAI adapters
  - observability: logging, metrics, tracing and progress reporting
  - errors: error categories and retry with backoff
  - config: configuration loading and settings
*/
package docflow
