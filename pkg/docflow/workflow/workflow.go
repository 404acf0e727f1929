// Package workflow assembles the node packages into a runnable docflow
// Engine and runs session-scoped invocations against a checkpoint Manager.
package workflow

import (
	"context"
	"log/slog"
	"time"

	"github.com/randalmurphal/docflow/pkg/docflow"
	"github.com/randalmurphal/docflow/pkg/docflow/checkpoint"
	"github.com/randalmurphal/docflow/pkg/docflow/document"
	docerrors "github.com/randalmurphal/docflow/pkg/docflow/errors"
	"github.com/randalmurphal/docflow/pkg/docflow/image"
	"github.com/randalmurphal/docflow/pkg/docflow/llm"
	"github.com/randalmurphal/docflow/pkg/docflow/mindmap"
	"github.com/randalmurphal/docflow/pkg/docflow/observability"
	"github.com/randalmurphal/docflow/pkg/docflow/podcast"
	"github.com/randalmurphal/docflow/pkg/docflow/session"
	"github.com/randalmurphal/docflow/pkg/docflow/sources"
)

// Deps are the collaborators of every node. Nil collaborators make the
// nodes that need them fail with a "not configured" message.
type Deps struct {
	Sources *sources.Preparer

	// LLM serves mind maps, podcast scripts, image prompts and document
	// transformation.
	LLM    llm.Client
	TTS    llm.SpeechSynthesizer
	Images llm.ImageGenerator
	Editor llm.ImageEditor

	// SpeechRetry bounds TTS retries. Zero means docerrors.SpeechRetry.
	SpeechRetry docerrors.RetryConfig

	// Document overrides the document branch collaborators. Nil builds
	// them from the fields above.
	Document *document.Nodes
	// OutputDir is where documents are rendered when Document is nil.
	OutputDir string

	Checkpoints *checkpoint.Manager
	Logger      *slog.Logger

	EngineOptions []docflow.Option
}

// Registry maps every node of the topology to its implementation.
func Registry(d Deps) docflow.Registry {
	prep := d.Sources
	if prep == nil {
		prep = &sources.Preparer{}
	}
	doc := d.Document
	if doc == nil {
		doc = defaultDocumentNodes(d, prep)
	}

	mm := &mindmap.Node{LLM: d.LLM}
	script := &podcast.ScriptNode{LLM: d.LLM}
	audio := &podcast.AudioNode{TTS: d.TTS, Retry: d.SpeechRetry}
	gen := &image.GenerateNode{Raster: d.Images, LLM: d.LLM}
	if d.LLM != nil {
		gen.SVG = &image.SVGGenerator{LLM: d.LLM}
	}
	edit := &image.EditNode{Editor: d.Editor}

	return docflow.Registry{
		docflow.NodeValidateSources: prep.Validate,
		docflow.NodeResolveSources:  prep.Resolve,
		docflow.NodeExtractSources:  prep.Extract,
		docflow.NodeMergeSources:    prep.Merge,

		docflow.NodeDetectFormat:     doc.DetectFormat,
		docflow.NodeParseContent:     doc.ParseContent,
		docflow.NodeTransformContent: doc.TransformContent,
		docflow.NodeEnhanceContent:   doc.EnhanceContent,
		docflow.NodeGenerateImages:   doc.GenerateImages,
		docflow.NodeDescribeImages:   doc.DescribeImages,
		docflow.NodePersistImages:    doc.PersistImages,
		docflow.NodeGenerateOutput:   doc.GenerateOutput,
		docflow.NodeValidateOutput:   doc.ValidateOutput,

		docflow.NodeGenerateScript:  script.Run,
		docflow.NodeSynthesizeAudio: audio.Run,
		docflow.NodeGenerateMindMap: mm.Run,
		docflow.NodeGenerateImage:   gen.Run,
		docflow.NodeEditImage:       edit.Run,
	}
}

func defaultDocumentNodes(d Deps, prep *sources.Preparer) *document.Nodes {
	n := &document.Nodes{
		Parser:    prep.Documents,
		Images:    d.Images,
		OutputDir: d.OutputDir,
	}
	if n.Parser == nil {
		n.Parser = sources.PlainTextParser{}
	}
	if d.LLM != nil {
		n.Transformer = &document.LLMTransformer{LLM: d.LLM}
		n.Enhancer = &document.LLMEnhancer{LLM: d.LLM}
	}
	return n
}

// Workflow runs invocations. It is safe for concurrent use.
type Workflow struct {
	engine      *docflow.Engine
	checkpoints *checkpoint.Manager
	logger      *slog.Logger
}

// New validates the registry built from d and returns a Workflow.
func New(d Deps) (*Workflow, error) {
	engine, err := docflow.NewEngine(Registry(d), d.EngineOptions...)
	if err != nil {
		return nil, err
	}
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	checkpoints := d.Checkpoints
	if checkpoints == nil {
		checkpoints = checkpoint.NewManager(checkpoint.NewMemoryStore(), checkpoint.WithLogger(logger))
	}
	return &Workflow{engine: engine, checkpoints: checkpoints, logger: logger}, nil
}

// Checkpoints returns the manager the workflow saves to.
func (w *Workflow) Checkpoints() *checkpoint.Manager {
	return w.checkpoints
}

// Invocation is one request against the workflow.
type Invocation struct {
	// SessionID pins the checkpoint slot. Empty derives it from the sources.
	SessionID string
	UserID    string
	// CheckpointNS separates snapshots within one session.
	CheckpointNS string
	// ReuseContent injects checkpointed content when the session has any.
	ReuseContent bool

	OutputType docflow.OutputType
	Request    docflow.Request

	Progress observability.Reporter
}

// Run executes inv and returns the final state and the session id used.
//
// Node failures are reported in State.Errors, never as an error. A non-nil
// error means the engine itself aborted; the returned state is then the
// initial state with the error text appended. Either way the output type is
// recorded for the session.
func (w *Workflow) Run(ctx context.Context, inv Invocation) (docflow.State, string, error) {
	start := time.Now()
	sessionID := inv.SessionID
	if sessionID == "" {
		sessionID = session.ID(inv.Request.Sources, inv.UserID)
	}
	logger := w.logger.With(slog.String("session_id", sessionID))
	logger.Info("running workflow", slog.String("output_type", string(inv.OutputType)))

	initial := docflow.NewState(inv.OutputType, inv.Request)
	initial.Metadata.SessionID = sessionID
	if inv.ReuseContent {
		if snap, ok := w.checkpoints.Load(ctx, sessionID, inv.CheckpointNS); ok && snap.Reusable() {
			logger.Info("found existing content, reusing",
				slog.Int("chars", len(snap.RawContent)),
				slog.String("output_type", string(inv.OutputType)),
			)
			initial = snap.Apply(initial)
		}
	}

	execCtx := docflow.NewContext(ctx,
		docflow.WithLogger(w.logger),
		docflow.WithSessionID(sessionID),
		docflow.WithProgress(inv.Progress),
	)
	final, runErr := w.engine.Run(execCtx, initial)
	if runErr != nil {
		logger.Error("workflow execution failed", slog.String("error", runErr.Error()))
		final = initial
		final.Errors = append([]string(nil), initial.Errors...)
		final.AddError(runErr.Error())
	}

	if final.RawContent != "" {
		if err := w.checkpoints.Save(ctx, sessionID, inv.CheckpointNS, final); err != nil {
			logger.Warn("checkpoint save failed", slog.String("error", err.Error()))
		}
	}
	w.checkpoints.RecordOutput(sessionID, inv.OutputType)

	logger.Info("workflow completed",
		slog.String("output_type", string(inv.OutputType)),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
		slog.Bool("reused_content", initial.Metadata.ReusedContent),
		slog.Int("errors", len(final.Errors)),
	)
	return final, sessionID, runErr
}
