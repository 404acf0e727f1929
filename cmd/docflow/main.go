// Command docflow runs one generation request against a configured
// checkpoint store and prints a JSON summary of the result.
//
// Usage:
//
//	docflow -request job.json [-config docflow.yaml] [-env .env]
//
// The request file holds the output type, optional session and user ids and
// the request body:
//
//	{"output_type": "mindmap", "reuse_content": true,
//	 "request": {"sources": [{"type": "text", "content": "..."}]}}
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/joho/godotenv"

	"github.com/randalmurphal/docflow/pkg/docflow"
	"github.com/randalmurphal/docflow/pkg/docflow/checkpoint"
	"github.com/randalmurphal/docflow/pkg/docflow/config"
	"github.com/randalmurphal/docflow/pkg/docflow/llm"
	"github.com/randalmurphal/docflow/pkg/docflow/observability"
	"github.com/randalmurphal/docflow/pkg/docflow/sources"
	"github.com/randalmurphal/docflow/pkg/docflow/workflow"
)

// job is the request file format.
type job struct {
	OutputType   docflow.OutputType `json:"output_type"`
	SessionID    string             `json:"session_id,omitempty"`
	UserID       string             `json:"user_id,omitempty"`
	CheckpointNS string             `json:"checkpoint_ns,omitempty"`
	ReuseContent *bool              `json:"reuse_content,omitempty"`
	Request      docflow.Request    `json:"request"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "docflow:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath  = flag.String("config", os.Getenv("DOCFLOW_CONFIG"), "path to a YAML or JSON config file")
		envPath     = flag.String("env", ".env", "dotenv file loaded before the environment overlay")
		requestPath = flag.String("request", "", "path to the request JSON file")
	)
	flag.Parse()
	if *requestPath == "" {
		flag.Usage()
		return errors.New("-request is required")
	}

	if err := godotenv.Load(*envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", *envPath, err)
	}
	settings, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	logger := newLogger(settings.Log)
	slog.SetDefault(logger)

	j, err := readJob(*requestPath)
	if err != nil {
		return err
	}

	ctx := context.Background()
	store, err := openStore(ctx, settings)
	if err != nil {
		return err
	}
	metrics := observability.NewMetricsRecorder()
	mgr := checkpoint.NewManager(store,
		checkpoint.WithLogger(logger),
		checkpoint.WithMetrics(metrics),
		checkpoint.WithTTL(settings.Checkpoint.TTL),
		checkpoint.WithSweepInterval(settings.Checkpoint.SweepInterval),
	)
	defer mgr.Close()

	deps, err := buildDeps(settings, logger)
	if err != nil {
		return err
	}
	deps.Checkpoints = mgr
	deps.EngineOptions = []docflow.Option{
		docflow.WithMaxRetries(settings.MaxRetries),
		docflow.WithMetrics(metrics),
		docflow.WithTracing(observability.NewSpanManager()),
	}
	wf, err := workflow.New(deps)
	if err != nil {
		return err
	}

	reuse := true
	if j.ReuseContent != nil {
		reuse = *j.ReuseContent
	}
	final, sessionID, runErr := wf.Run(ctx, workflow.Invocation{
		SessionID:    j.SessionID,
		UserID:       j.UserID,
		CheckpointNS: j.CheckpointNS,
		ReuseContent: reuse,
		OutputType:   j.OutputType,
		Request:      j.Request,
		Progress: observability.MultiReporter{
			observability.LogReporter{Logger: logger},
			observability.MetricsReporter{Recorder: metrics},
		},
	})

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summarize(final, sessionID)); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return runErr
}

func readJob(path string) (job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return job{}, fmt.Errorf("read request: %w", err)
	}
	var j job
	if err := json.Unmarshal(data, &j); err != nil {
		return job{}, fmt.Errorf("parse request: %w", err)
	}
	if j.OutputType == "" {
		return job{}, errors.New("request: output_type is required")
	}
	return j, nil
}

func newLogger(s config.LogSettings) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(s.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func openStore(ctx context.Context, s config.Settings) (checkpoint.Store, error) {
	cp := s.Checkpoint
	switch cp.Backend {
	case config.BackendMemory:
		return checkpoint.NewMemoryStore(), nil
	case config.BackendSQLite:
		if err := os.MkdirAll(cp.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("create checkpoint dir: %w", err)
		}
		return checkpoint.NewSQLiteStore(filepath.Join(cp.Dir, "checkpoints.db"))
	case config.BackendBadger:
		return checkpoint.NewBadgerStore(filepath.Join(cp.Dir, "badger"), cp.TTL)
	case config.BackendRedis:
		return checkpoint.OpenRedisStore(ctx, s.Redis.URL, cp.TTL)
	}
	return nil, fmt.Errorf("unknown checkpoint backend %q", cp.Backend)
}

func buildDeps(s config.Settings, logger *slog.Logger) (workflow.Deps, error) {
	uploads, err := sources.NewDirUploadStore(s.UploadDir)
	if err != nil {
		return workflow.Deps{}, err
	}
	deps := workflow.Deps{
		Sources: &sources.Preparer{
			Uploads:   uploads,
			Documents: sources.PlainTextParser{},
			Web:       sources.HTTPWebParser{},
			TempDir:   s.TempDir,
		},
		OutputDir: s.OutputDir,
		Logger:    logger,
	}

	if s.OpenAI.APIKey == "" && s.OpenAI.BaseURL == "" {
		logger.Warn("no OpenAI credentials configured; LLM, speech and image nodes will fail")
		return deps, nil
	}
	opts := []llm.OpenAIOption{llm.WithAPIKey(s.OpenAI.APIKey)}
	if s.OpenAI.BaseURL != "" {
		opts = append(opts, llm.WithBaseURL(s.OpenAI.BaseURL))
	}
	chatOpts := opts
	if s.OpenAI.Model != "" {
		chatOpts = append(append([]llm.OpenAIOption(nil), opts...), llm.WithModel(s.OpenAI.Model))
	}
	images := llm.NewOpenAIImages(opts...)
	deps.LLM = llm.NewOpenAI(chatOpts...)
	deps.TTS = llm.NewOpenAISpeech(opts...)
	deps.Images = images
	deps.Editor = images
	return deps, nil
}

// summary is the printed result of a run.
type summary struct {
	SessionID     string               `json:"session_id"`
	OutputType    docflow.OutputType   `json:"output_type"`
	Completed     bool                 `json:"completed"`
	Errors        []string             `json:"errors"`
	ReusedContent bool                 `json:"reused_content"`
	SkipReason    docflow.SkipReason   `json:"skip_reason,omitempty"`
	RetryCount    int                  `json:"retry_count,omitempty"`
	OutputPath    string               `json:"output_path,omitempty"`
	ImagePaths    []string             `json:"image_paths,omitempty"`
	MindMap       *docflow.MindMapTree `json:"mindmap,omitempty"`
	Podcast       *podcastSummary      `json:"podcast,omitempty"`
	Image         *imageSummary        `json:"image,omitempty"`
}

type podcastSummary struct {
	Title           string  `json:"title"`
	Lines           int     `json:"lines"`
	DurationSeconds float64 `json:"duration_seconds"`
	AudioBytes      int     `json:"audio_bytes"`
}

type imageSummary struct {
	Format     string `json:"format"`
	Bytes      int    `json:"bytes"`
	PromptUsed string `json:"prompt_used,omitempty"`
	Style      string `json:"style,omitempty"`
}

func summarize(s docflow.State, sessionID string) summary {
	out := summary{
		SessionID:     sessionID,
		OutputType:    s.OutputType,
		Completed:     s.Completed,
		Errors:        s.Errors,
		ReusedContent: s.Metadata.ReusedContent,
		SkipReason:    s.Metadata.SkipReason,
		RetryCount:    s.Metadata.RetryCount,
	}
	switch p := s.Payload.(type) {
	case *docflow.DocumentResult:
		out.OutputPath = p.OutputPath
		out.ImagePaths = p.ImagePaths
	case *docflow.MindMapResult:
		out.MindMap = p.Tree
	case *docflow.PodcastResult:
		out.Podcast = &podcastSummary{
			Title:           p.Title,
			Lines:           len(p.Dialogue),
			DurationSeconds: p.DurationSeconds,
			AudioBytes:      len(p.Audio),
		}
	case *docflow.ImageResult:
		out.Image = &imageSummary{
			Format:     p.Format,
			Bytes:      len(p.Data),
			PromptUsed: p.PromptUsed,
			Style:      p.Style,
		}
	}
	return out
}
