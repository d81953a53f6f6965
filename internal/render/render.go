package render

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aescanero/dago-node-relnotes/internal/eval/cel"
	"github.com/aescanero/dago-node-relnotes/internal/eval/script"
	"github.com/aescanero/dago-node-relnotes/internal/eval/template"
	"github.com/aescanero/dago-node-relnotes/internal/helpers"
	"github.com/aescanero/dago-node-relnotes/internal/predicate"
	"go.uber.org/zap"
)

// Request holds everything a single render needs. Data fields may be nil;
// nil collections are rendered as empty ones.
type Request struct {
	Lines                 []string
	WorkItems             interface{}
	Commits               interface{}
	BuildDetails          interface{}
	ReleaseDetails        interface{}
	CompareReleaseDetails interface{}
	EmptySetText          string

	// CustomHelpers is Go source holding helper functions
	CustomHelpers     string
	HelperDefinitions []helpers.Definition
}

// Renderer renders release notes. It keeps no state between renders: the
// helper registry, predicates and custom helpers are rebuilt for every call.
type Renderer struct {
	logger        *zap.Logger
	engine        *template.Engine
	unsafe        bool
	customHelpers bool
	now           func() time.Time
	lookupEnv     func(string) (string, bool)
}

// Option configures a Renderer
type Option func(*Renderer)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(r *Renderer) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithUnsafeExpressions makes predicates and eval run as Go code with the
// privileges of the process instead of CEL
func WithUnsafeExpressions(enabled bool) Option {
	return func(r *Renderer) {
		r.unsafe = enabled
	}
}

// WithCustomHelpers enables or disables custom helper loading. Enabled by
// default. Custom helpers are interpreted as Go with the privileges of the
// process whatever the expression mode.
func WithCustomHelpers(enabled bool) Option {
	return func(r *Renderer) {
		r.customHelpers = enabled
	}
}

// WithClock sets the clock behind the CEL now() function
func WithClock(now func() time.Time) Option {
	return func(r *Renderer) {
		if now != nil {
			r.now = now
		}
	}
}

// WithLookupEnv sets the environment lookup used by the env helper
func WithLookupEnv(lookup func(string) (string, bool)) Option {
	return func(r *Renderer) {
		if lookup != nil {
			r.lookupEnv = lookup
		}
	}
}

// NewRenderer creates a renderer
func NewRenderer(opts ...Option) *Renderer {
	r := &Renderer{
		logger:        zap.NewNop(),
		customHelpers: true,
		now:           time.Now,
		lookupEnv:     os.LookupEnv,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.engine = template.NewEngine(r.logger)
	return r
}

// Render joins the template lines, binds the request data and helpers and
// returns the rendered text unmodified.
func (r *Renderer) Render(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	start := time.Now()

	tmpl, err := r.engine.Compile(strings.Join(req.Lines, "\n"))
	if err != nil {
		return "", fmt.Errorf("failed to compile template: %w", err)
	}

	custom, err := r.loadCustomHelpers(req)
	if err != nil {
		return "", err
	}

	data, err := NewContext(req)
	if err != nil {
		return "", err
	}

	env := helpers.Env{
		Context:   ctx,
		Scope:     data,
		LookupEnv: r.lookupEnv,
		Logger:    r.logger,
	}
	if r.unsafe {
		env.Predicates = predicate.NewCompiler(predicate.ModeGo, nil, r.logger)
		env.Expressions = script.NewEvaluator()
	} else {
		evaluator := cel.NewEvaluator(cel.WithClock(r.now))
		env.Predicates = predicate.NewCompiler(predicate.ModeCEL, evaluator, r.logger)
		env.Expressions = evaluator
	}

	registry := helpers.Build(env, custom)

	out, err := tmpl.Exec(data, registry.Helpers(), registry.Variadic())
	if err != nil {
		return "", err
	}

	r.logger.Debug("release notes rendered",
		zap.Int("lines", len(req.Lines)),
		zap.Int("helpers", registry.Len()),
		zap.Int("custom_helpers", len(custom)),
		zap.Bool("unsafe", r.unsafe),
		zap.Duration("duration", time.Since(start)),
	)
	return out, nil
}

func (r *Renderer) loadCustomHelpers(req Request) (map[string]interface{}, error) {
	hasSource := strings.TrimSpace(req.CustomHelpers) != ""
	if !hasSource && len(req.HelperDefinitions) == 0 {
		return nil, nil
	}
	if !r.customHelpers {
		return nil, fmt.Errorf("custom helpers are disabled")
	}

	custom, err := helpers.LoadCustom(req.CustomHelpers)
	if err != nil {
		return nil, err
	}
	defined, err := helpers.LoadDefinitions(req.HelperDefinitions)
	if err != nil {
		return nil, err
	}
	for name, fn := range defined {
		custom[name] = fn
	}

	r.logger.Debug("custom helpers loaded", zap.Int("count", len(custom)))
	return custom, nil
}

// NewContext builds the evaluation context of a render. Work items and
// commits are exposed under their current names and the legacy aliases
// widetail and csdetail. Values are normalized to their JSON form so
// templates and expressions see the same field names whatever Go types the
// caller used.
func NewContext(req Request) (map[string]interface{}, error) {
	workItems, err := collection("workItems", req.WorkItems)
	if err != nil {
		return nil, err
	}
	commits, err := collection("commits", req.Commits)
	if err != nil {
		return nil, err
	}

	ctx := map[string]interface{}{
		"widetail":     workItems,
		"csdetail":     commits,
		"workItems":    workItems,
		"commits":      commits,
		"emptySetText": req.EmptySetText,
	}

	for name, value := range map[string]interface{}{
		"buildDetails":          req.BuildDetails,
		"releaseDetails":        req.ReleaseDetails,
		"compareReleaseDetails": req.CompareReleaseDetails,
	} {
		normalized, err := normalize(name, value)
		if err != nil {
			return nil, err
		}
		ctx[name] = normalized
	}
	return ctx, nil
}

func collection(name string, value interface{}) (interface{}, error) {
	normalized, err := normalize(name, value)
	if err != nil {
		return nil, err
	}
	if normalized == nil {
		return []interface{}{}, nil
	}
	return normalized, nil
}

func normalize(name string, value interface{}) (interface{}, error) {
	if value == nil {
		return nil, nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", name, err)
	}
	var out interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", name, err)
	}
	return out, nil
}

// Render renders release notes with the default renderer
func Render(lines []string, workItems, commits, buildDetails, releaseDetails, compareReleaseDetails interface{},
	emptySetText string, customHelpers string) (string, error) {
	return NewRenderer().Render(context.Background(), Request{
		Lines:                 lines,
		WorkItems:             workItems,
		Commits:               commits,
		BuildDetails:          buildDetails,
		ReleaseDetails:        releaseDetails,
		CompareReleaseDetails: compareReleaseDetails,
		EmptySetText:          emptySetText,
		CustomHelpers:         customHelpers,
	})
}
