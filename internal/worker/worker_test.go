package worker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aescanero/dago-node-relnotes/internal/config"
	"github.com/aescanero/dago-node-relnotes/internal/render"
	"github.com/aescanero/dago-node-relnotes/internal/store"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap/zaptest"
)

type fakeTemplates map[string][]string

func (f fakeTemplates) Get(_ context.Context, name string) ([]string, error) {
	lines, ok := f[name]
	if !ok {
		return nil, fmt.Errorf("template %s: %w", name, store.ErrNotFound)
	}
	return lines, nil
}

type fakeState struct {
	values    map[string]interface{}
	missing   bool
	requested map[string]string
	outputs   map[string]interface{}
	outputErr error
}

func (f *fakeState) Lookup(_ context.Context, executionID string, paths map[string]string) (map[string]interface{}, error) {
	if f.missing {
		return nil, fmt.Errorf("state for execution %s: %w", executionID, store.ErrNotFound)
	}
	f.requested = paths
	out := make(map[string]interface{})
	for key, path := range paths {
		if v, ok := f.values[path]; ok {
			out[key] = v
		}
	}
	return out, nil
}

func (f *fakeState) SetOutput(ctx context.Context, executionID, path string, value interface{}) error {
	f.outputErr = ctx.Err()
	if f.missing {
		return fmt.Errorf("state for execution %s: %w", executionID, store.ErrNotFound)
	}
	if f.outputs == nil {
		f.outputs = make(map[string]interface{})
	}
	f.outputs[path] = value
	return nil
}

func newTestWorker(t *testing.T, templates TemplateSource, states StateSource) *Worker {
	t.Helper()
	cfg := &config.Config{
		WorkerID:      "relnotes-test",
		StreamKey:     "relnotes.render",
		ConsumerGroup: "relnotes-workers",
		ResultStream:  "relnotes.rendered",
		BlockTime:     time.Second,
		RenderTimeout: 5 * time.Second,
	}
	logger := zaptest.NewLogger(t)
	renderer := render.NewRenderer(render.WithLogger(logger))
	return NewWorker(cfg, nil, renderer, nil, templates, states, logger)
}

func TestParseRenderRequest(t *testing.T) {
	tests := []struct {
		name    string
		values  map[string]interface{}
		wantErr bool
		check   func(t *testing.T, r *RenderRequest)
	}{
		{
			name:    "missing data field",
			values:  map[string]interface{}{"payload": "{}"},
			wantErr: true,
		},
		{
			name:    "invalid json",
			values:  map[string]interface{}{"data": "{"},
			wantErr: true,
		},
		{
			name:    "no template",
			values:  map[string]interface{}{"data": `{"request_id": "r1"}`},
			wantErr: true,
			check: func(t *testing.T, r *RenderRequest) {
				if r == nil || r.RequestID != "r1" {
					t.Errorf("request should be returned for error reporting, got %+v", r)
				}
			},
		},
		{
			name:   "generated request id",
			values: map[string]interface{}{"data": `{"template": ["x"], "execution_id": "exec-1"}`},
			check: func(t *testing.T, r *RenderRequest) {
				if r.RequestID == "" {
					t.Error("request id should be generated")
				}
				if r.ExecutionID != "exec-1" || len(r.Template) != 1 {
					t.Errorf("unexpected request %+v", r)
				}
			},
		},
		{
			name: "helper definitions",
			values: map[string]interface{}{"data": `{"template_key": "default",
				"helper_definitions": [{"name": "link", "params": ["id"], "body": "\"#\" + fmt.Sprint(id)"}]}`},
			check: func(t *testing.T, r *RenderRequest) {
				if len(r.HelperDefinitions) != 1 || r.HelperDefinitions[0].Name != "link" {
					t.Errorf("unexpected definitions %+v", r.HelperDefinitions)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := parseRenderRequest(tt.values)
			if (err != nil) != tt.wantErr {
				t.Fatalf("unexpected error %v", err)
			}
			if tt.check != nil {
				tt.check(t, r)
			}
		})
	}
}

func TestMissingPaths(t *testing.T) {
	r := &RenderRequest{
		WorkItems:    []interface{}{},
		EmptySetText: "none",
		DataPaths: map[string]string{
			KeyCommits:      "outputs.git.commits",
			KeyBuildDetails: "",
		},
	}

	paths := missingPaths(r)

	expected := map[string]string{
		KeyCommits:               "outputs.git.commits",
		KeyReleaseDetails:        "inputs.release_details",
		KeyCompareReleaseDetails: "inputs.compare_release_details",
	}
	if len(paths) != len(expected) {
		t.Fatalf("expected %v, got %v", expected, paths)
	}
	for key, path := range expected {
		if paths[key] != path {
			t.Errorf("%s: expected %q, got %q", key, path, paths[key])
		}
	}
}

func TestResolveData(t *testing.T) {
	states := &fakeState{values: map[string]interface{}{
		"inputs.work_items":     []interface{}{map[string]interface{}{"id": 7.0}},
		"inputs.empty_set_text": "Nothing",
		"inputs.build_details":  map[string]interface{}{"buildNumber": "1.0"},
	}}

	r := &RenderRequest{ExecutionID: "exec-1", BuildDetails: map[string]interface{}{"buildNumber": "inline"}}
	if err := resolveData(context.Background(), states, r); err != nil {
		t.Fatalf("resolveData failed: %v", err)
	}

	if items, ok := r.WorkItems.([]interface{}); !ok || len(items) != 1 {
		t.Errorf("work items not resolved: %#v", r.WorkItems)
	}
	if r.EmptySetText != "Nothing" {
		t.Errorf("unexpected empty set text %q", r.EmptySetText)
	}
	if r.BuildDetails.(map[string]interface{})["buildNumber"] != "inline" {
		t.Error("inline data must win over state")
	}
	if _, ok := states.requested[KeyBuildDetails]; ok {
		t.Error("inline data should not be looked up")
	}

	t.Run("no execution", func(t *testing.T) {
		r := &RenderRequest{}
		if err := resolveData(context.Background(), states, r); err != nil || r.WorkItems != nil {
			t.Errorf("unexpected resolution %v %#v", err, r.WorkItems)
		}
	})

	t.Run("missing state", func(t *testing.T) {
		r := &RenderRequest{ExecutionID: "gone"}
		if err := resolveData(context.Background(), &fakeState{missing: true}, r); err != nil {
			t.Errorf("missing state should not fail, got %v", err)
		}
	})
}

func TestWorker_Process(t *testing.T) {
	templates := fakeTemplates{
		"default": {"Build {{buildDetails.buildNumber}}", "{{#each workItems}}#{{this.id}} {{/each}}"},
	}
	states := &fakeState{values: map[string]interface{}{
		"inputs.work_items": []interface{}{
			map[string]interface{}{"id": 1.0},
			map[string]interface{}{"id": 2.0},
		},
	}}
	w := newTestWorker(t, templates, states)

	result, err := w.Process(context.Background(), &RenderRequest{
		RequestID:    "r1",
		ExecutionID:  "exec-1",
		NodeID:       "notes.v1",
		TemplateKey:  "default",
		BuildDetails: map[string]interface{}{"buildNumber": "20200101.1"},
	})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	expected := "Build 20200101.1\n#1 #2 "
	if result.Notes != expected {
		t.Errorf("expected %q, got %q", expected, result.Notes)
	}
	if result.Polished || result.PolishError != "" {
		t.Errorf("polish was not requested: %+v", result)
	}
	if got := states.outputs[`outputs.notes\.v1.release_notes`]; got != expected {
		t.Errorf("notes not written to state, outputs %v", states.outputs)
	}
}

func TestWorker_ProcessPolishFallback(t *testing.T) {
	w := newTestWorker(t, nil, nil)

	result, err := w.Process(context.Background(), &RenderRequest{
		RequestID:    "r2",
		Template:     []string{"{{emptySetText}}"},
		EmptySetText: "No changes",
		Polish:       true,
	})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if result.Notes != "No changes" || result.Polished {
		t.Errorf("expected unpolished notes, got %+v", result)
	}
	if !strings.Contains(result.PolishError, "no llm client") {
		t.Errorf("unexpected polish error %q", result.PolishError)
	}
}

func TestWorker_ProcessErrors(t *testing.T) {
	w := newTestWorker(t, fakeTemplates{}, nil)

	tests := []struct {
		name    string
		request *RenderRequest
		target  error
	}{
		{"unknown template", &RenderRequest{TemplateKey: "missing"}, store.ErrNotFound},
		{"bad template", &RenderRequest{Template: []string{"{{#if}}"}}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := w.Process(context.Background(), tt.request)
			if err == nil {
				t.Fatal("expected an error")
			}
			if tt.target != nil && !errors.Is(err, tt.target) {
				t.Errorf("expected %v, got %v", tt.target, err)
			}
		})
	}
}

// recordingHook answers every command without a server and records the
// command names with the state of their context
type recordingHook struct {
	mu       sync.Mutex
	commands []string
	errs     []error
}

func (h *recordingHook) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (h *recordingHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.commands = append(h.commands, cmd.Name())
		h.errs = append(h.errs, ctx.Err())
		return nil
	}
}

func (h *recordingHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func TestWorker_HandleMessageAfterStop(t *testing.T) {
	hook := &recordingHook{}
	client := redis.NewClient(&redis.Options{Addr: "localhost:0"})
	client.AddHook(hook)
	t.Cleanup(func() { _ = client.Close() })

	states := &fakeState{}
	w := newTestWorker(t, nil, states)
	w.redisClient = client

	// a request still in flight when the worker is stopped
	if err := w.Stop(time.Second); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	w.handleMessage(redis.XMessage{
		ID: "1-0",
		Values: map[string]interface{}{
			"data": `{"request_id":"r1","execution_id":"exec-1","template":["{{releaseDetails.name}}"],"release_details":{"name":"R1"}}`,
		},
	})

	if got := states.outputs["outputs.relnotes.release_notes"]; got != "R1" {
		t.Errorf("notes not written to state, outputs %v", states.outputs)
	}
	if states.outputErr != nil {
		t.Errorf("state written with a done context: %v", states.outputErr)
	}

	expected := []string{"xadd", "xack"}
	if strings.Join(hook.commands, ",") != strings.Join(expected, ",") {
		t.Fatalf("expected commands %v, got %v", expected, hook.commands)
	}
	for i, err := range hook.errs {
		if err != nil {
			t.Errorf("%s sent with a done context: %v", hook.commands[i], err)
		}
	}
}

func TestOutputPath(t *testing.T) {
	if got := outputPath(""); got != "outputs.relnotes.release_notes" {
		t.Errorf("unexpected default path %q", got)
	}
	if got := outputPath("notes"); got != "outputs.notes.release_notes" {
		t.Errorf("unexpected path %q", got)
	}
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(ctx context.Context) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
	} else {
		cmd.SetVal("PONG")
	}
	return cmd
}

func TestHealthServer(t *testing.T) {
	tests := []struct {
		name   string
		pinger fakePinger
		path   string
		status int
		body   string
	}{
		{"healthy", fakePinger{}, "/health", http.StatusOK, `"status":"healthy"`},
		{"unhealthy", fakePinger{err: errors.New("connection refused")}, "/health", http.StatusServiceUnavailable, "connection refused"},
		{"ready", fakePinger{}, "/ready", http.StatusOK, `"status":"ready"`},
		{"not ready", fakePinger{err: errors.New("down")}, "/ready", http.StatusServiceUnavailable, `"status":"not ready"`},
		{"metrics", fakePinger{}, "/metrics", http.StatusOK, "go_goroutines"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hs := NewHealthServer(0, tt.pinger, zaptest.NewLogger(t))
			rec := httptest.NewRecorder()
			hs.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if rec.Code != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, rec.Code)
			}
			if !strings.Contains(rec.Body.String(), tt.body) {
				t.Errorf("expected body to contain %q, got %s", tt.body, rec.Body.String())
			}
		})
	}
}
