package commentary

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"onthefly/internal/logging"
	"onthefly/internal/notifications"
	"onthefly/internal/services"
	"onthefly/internal/services/llm"
)

// VisionModel is satisfied by the vendor clients in services/llm and
// services/openai.
type VisionModel interface {
	Complete(ctx context.Context, req llm.Request) (llm.Completion, error)
}

// Embedder turns commentary text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Repository is the slice of the store the generator needs.
type Repository interface {
	// Previous returns the most recent row, or nil when the table is empty.
	Previous(ctx context.Context) (*Commentary, error)
	// Insert stores c and sets its ID.
	Insert(ctx context.Context, c *Commentary) error
}

// Notifier receives lead changes and pipeline failures.
type Notifier interface {
	NotifyLeadChange(ctx context.Context, change notifications.LeadChange) error
	NotifyError(ctx context.Context, err error, context string) error
}

// Config holds the generator's static settings.
type Config struct {
	Game          Game
	Provider      string
	Model         string
	MaxFrameBytes int
}

// Generator runs the frame to row pipeline. Calls to Generate are serialized
// so each prompt sees the row produced by the previous call.
type Generator struct {
	cfg      Config
	model    VisionModel
	repo     Repository
	embedder Embedder
	notifier Notifier
	logger   *slog.Logger
	tracer   trace.Tracer
	now      func() time.Time
	newID    func() string

	mu      sync.Mutex
	pending sync.WaitGroup
}

// notifyTimeout bounds each push notification sent after a row is stored.
const notifyTimeout = 10 * time.Second

// Option customizes a Generator.
type Option func(*Generator)

// WithEmbedder enables commentary embeddings.
func WithEmbedder(embedder Embedder) Option {
	return func(g *Generator) { g.embedder = embedder }
}

// WithNotifier sets the lead change and error notifier.
func WithNotifier(notifier Notifier) Option {
	return func(g *Generator) {
		if notifier != nil {
			g.notifier = notifier
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithTracer overrides the global tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(g *Generator) {
		if tracer != nil {
			g.tracer = tracer
		}
	}
}

// WithClock overrides time.Now (useful for tests).
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		if now != nil {
			g.now = now
		}
	}
}

// WithIDFunc overrides UUID generation (useful for tests).
func WithIDFunc(newID func() string) Option {
	return func(g *Generator) {
		if newID != nil {
			g.newID = newID
		}
	}
}

// NewGenerator wires a Generator. model and repo are required.
func NewGenerator(cfg Config, model VisionModel, repo Repository, opts ...Option) (*Generator, error) {
	if model == nil {
		return nil, fmt.Errorf("commentary: vision model required")
	}
	if repo == nil {
		return nil, fmt.Errorf("commentary: repository required")
	}
	g := &Generator{
		cfg:      cfg,
		model:    model,
		repo:     repo,
		notifier: notifications.NewService(nil),
		logger:   logging.NewNop(),
		tracer:   otel.Tracer("onthefly/commentary"),
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = logging.NewComponentLogger(g.logger, "commentary")
	return g, nil
}

// Generate decodes a posted frame and turns it into a stored commentary row.
// Decode failures are tagged services.ErrValidation.
func (g *Generator) Generate(ctx context.Context, req FrameRequest) (*Commentary, error) {
	frame, err := DecodeFrame(req, g.cfg.MaxFrameBytes)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "commentary", "decode frame", "", err)
	}
	return g.GenerateFrame(ctx, frame)
}

// GenerateFrame turns an already decoded frame into a stored commentary row.
func (g *Generator) GenerateFrame(ctx context.Context, frame Frame) (*Commentary, error) {
	ctx, span := g.tracer.Start(ctx, "commentary.generate",
		trace.WithAttributes(
			attribute.String("llm.provider", g.cfg.Provider),
			attribute.String("llm.model", g.cfg.Model),
		))
	defer span.End()

	row, err := g.generate(ctx, frame)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.Int64("commentary.id", row.ID),
		attribute.Float64("commentary.latency_ms", row.LatencyMS),
	)
	return row, nil
}

func (g *Generator) generate(ctx context.Context, frame Frame) (*Commentary, error) {
	logger := logging.WithContext(ctx, g.logger)
	if len(frame.Data) == 0 {
		return nil, services.Wrap(services.ErrValidation, "commentary", "frame", "", ErrNoImageData)
	}

	logger.Debug("frame received",
		logging.String("mime", frame.MIMEType),
		logging.Int("bytes", len(frame.Data)),
		logging.Int("width", frame.Width),
		logging.Int("height", frame.Height),
	)

	g.mu.Lock()
	defer g.mu.Unlock()

	previous, err := g.repo.Previous(ctx)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "commentary", "load previous row", "", err)
	}

	prompt := BuildPrompt(g.cfg.Game, previous)
	completion, latency, err := g.callModel(ctx, prompt, frame)
	if err != nil {
		wrapped := services.Wrap(services.ErrExternalTool, "commentary", "vision model", g.cfg.Provider, err)
		g.reportError(ctx, logger, wrapped)
		return nil, wrapped
	}

	out, err := ParseModelOutput(completion.Content, previous)
	if err != nil {
		wrapped := services.Wrap(services.ErrExternalTool, "commentary", "parse reply", "", err)
		g.reportError(ctx, logger, wrapped)
		return nil, wrapped
	}

	model := strings.TrimSpace(completion.Model)
	if model == "" {
		model = g.cfg.Model
	}
	row := &Commentary{
		UUID:               g.newID(),
		Timestamp:          g.now().UTC(),
		Text:               out.Commentary,
		LatencyMS:          float64(latency.Microseconds()) / 1000,
		HomeScore:          out.HomeScore,
		AwayScore:          out.AwayScore,
		HomeWinProbability: out.HomeWinProbability,
		GameClock:          out.GameClock,
		Provider:           g.cfg.Provider,
		Model:              model,
	}
	row.Embedding = g.embed(ctx, logger, row.Text)

	if err := g.insert(ctx, row); err != nil {
		wrapped := services.Wrap(services.ErrTransient, "commentary", "insert row", "", err)
		g.reportError(ctx, logger, wrapped)
		return nil, wrapped
	}

	logger.Info("commentary generated",
		logging.Int64(logging.FieldCommentaryID, row.ID),
		logging.Float64("latency_ms", row.LatencyMS),
		logging.String("score", fmt.Sprintf("%d-%d", row.HomeScore, row.AwayScore)),
		logging.String("game_clock", row.GameClock),
		logging.Int("tokens", completion.Usage()),
	)

	g.checkLeadChange(ctx, logger, previous, row)
	return row, nil
}

func (g *Generator) callModel(ctx context.Context, prompt Prompt, frame Frame) (llm.Completion, time.Duration, error) {
	ctx, span := g.tracer.Start(ctx, "commentary.model")
	defer span.End()

	start := g.now()
	completion, err := g.model.Complete(ctx, llm.Request{
		System:   prompt.System,
		Text:     prompt.User,
		ImageURL: frame.DataURL(),
		JSON:     true,
	})
	latency := g.now().Sub(start)
	if latency < 0 {
		latency = 0
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "model call failed")
		return completion, latency, err
	}
	span.SetAttributes(
		attribute.Int("llm.prompt_tokens", completion.PromptTokens),
		attribute.Int("llm.completion_tokens", completion.CompletionTokens),
	)
	return completion, latency, nil
}

// embed never fails the pipeline; the row is stored without a vector instead.
func (g *Generator) embed(ctx context.Context, logger *slog.Logger, text string) []float32 {
	if g.embedder == nil {
		return nil
	}
	ctx, span := g.tracer.Start(ctx, "commentary.embed")
	defer span.End()

	vector, err := g.embedder.Embed(ctx, text)
	if err != nil {
		span.RecordError(err)
		logging.WarnWithContext(logger, "embedding failed", "embedding_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "row stored without embedding; excluded from search"),
			logging.String(logging.FieldErrorHint, "check embeddings.api_key and embeddings.model"),
		)
		return nil
	}
	return vector
}

func (g *Generator) insert(ctx context.Context, row *Commentary) error {
	ctx, span := g.tracer.Start(ctx, "commentary.insert")
	defer span.End()
	if err := g.repo.Insert(ctx, row); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

func (g *Generator) checkLeadChange(ctx context.Context, logger *slog.Logger, previous, current *Commentary) {
	if previous == nil {
		return
	}
	before, after := previous.Leader(), current.Leader()
	if before == 0 || after == 0 || before == after {
		return
	}
	home, away := g.cfg.Game.Teams.Home, g.cfg.Game.Teams.Away
	change := notifications.LeadChange{
		Leader:       home.Name,
		Trailer:      away.Name,
		LeaderScore:  current.HomeScore,
		TrailerScore: current.AwayScore,
		GameClock:    current.GameClock,
		Commentary:   current.Text,
	}
	if after < 0 {
		change.Leader, change.Trailer = away.Name, home.Name
		change.LeaderScore, change.TrailerScore = current.AwayScore, current.HomeScore
	}
	logger.Info("lead change", logging.String("leader", change.Leader), logging.String("game_clock", change.GameClock))
	g.notify(ctx, func(ctx context.Context) {
		if err := g.notifier.NotifyLeadChange(ctx, change); err != nil {
			logger.Warn("lead change notification failed", logging.Error(err))
		}
	})
}

func (g *Generator) reportError(ctx context.Context, logger *slog.Logger, err error) {
	logging.ErrorWithContext(logger, "commentary generation failed", "commentary_failed",
		logging.Error(err),
		logging.String(logging.FieldProvider, g.cfg.Provider),
		logging.String(logging.FieldModel, g.cfg.Model),
	)
	g.notify(ctx, func(ctx context.Context) {
		if notifyErr := g.notifier.NotifyError(ctx, err, "commentary"); notifyErr != nil {
			logger.Warn("error notification failed", logging.Error(notifyErr))
		}
	})
}

// notify runs send in the background, outside g.mu. The send outlives ctx's
// cancellation but not notifyTimeout.
func (g *Generator) notify(ctx context.Context, send func(context.Context)) {
	g.pending.Go(func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
		defer cancel()
		send(ctx)
	})
}

// Wait blocks until every notification started by Generate has finished.
func (g *Generator) Wait() {
	g.pending.Wait()
}
