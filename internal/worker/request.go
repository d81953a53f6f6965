package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aescanero/dago-node-relnotes/internal/helpers"
	"github.com/aescanero/dago-node-relnotes/internal/render"
	"github.com/aescanero/dago-node-relnotes/internal/store"
	"github.com/google/uuid"
)

// Data keys of a render request. They double as the names used in
// data_paths.
const (
	KeyWorkItems             = "work_items"
	KeyCommits               = "commits"
	KeyBuildDetails          = "build_details"
	KeyReleaseDetails        = "release_details"
	KeyCompareReleaseDetails = "compare_release_details"
	KeyEmptySetText          = "empty_set_text"
)

// DefaultDataPaths are the graph state paths read for data a request does
// not carry inline
var DefaultDataPaths = map[string]string{
	KeyWorkItems:             "inputs.work_items",
	KeyCommits:               "inputs.commits",
	KeyBuildDetails:          "inputs.build_details",
	KeyReleaseDetails:        "inputs.release_details",
	KeyCompareReleaseDetails: "inputs.compare_release_details",
	KeyEmptySetText:          "inputs.empty_set_text",
}

// RenderRequest is the payload of a message on the render stream
type RenderRequest struct {
	RequestID   string `json:"request_id"`
	ExecutionID string `json:"execution_id,omitempty"`
	NodeID      string `json:"node_id,omitempty"`

	// Template holds the template lines inline; TemplateKey names a stored
	// template instead
	Template    []string `json:"template,omitempty"`
	TemplateKey string   `json:"template_key,omitempty"`

	WorkItems             interface{} `json:"work_items,omitempty"`
	Commits               interface{} `json:"commits,omitempty"`
	BuildDetails          interface{} `json:"build_details,omitempty"`
	ReleaseDetails        interface{} `json:"release_details,omitempty"`
	CompareReleaseDetails interface{} `json:"compare_release_details,omitempty"`
	EmptySetText          string      `json:"empty_set_text,omitempty"`

	CustomHelpers     string               `json:"custom_helpers,omitempty"`
	HelperDefinitions []helpers.Definition `json:"helper_definitions,omitempty"`

	Polish             bool   `json:"polish,omitempty"`
	PolishInstructions string `json:"polish_instructions,omitempty"`

	// DataPaths overrides DefaultDataPaths per data key
	DataPaths map[string]string `json:"data_paths,omitempty"`
}

// RenderResult is published on the result stream
type RenderResult struct {
	RequestID   string    `json:"request_id"`
	ExecutionID string    `json:"execution_id,omitempty"`
	NodeID      string    `json:"node_id,omitempty"`
	Notes       string    `json:"release_notes"`
	Polished    bool      `json:"polished"`
	PolishError string    `json:"polish_error,omitempty"`
	DurationMs  int64     `json:"duration_ms"`
	Timestamp   time.Time `json:"timestamp"`
}

// TemplateSource returns stored templates
type TemplateSource interface {
	Get(ctx context.Context, name string) ([]string, error)
}

// StateSource reads render inputs from graph state and writes notes back
type StateSource interface {
	Lookup(ctx context.Context, executionID string, paths map[string]string) (map[string]interface{}, error)
	SetOutput(ctx context.Context, executionID, path string, value interface{}) error
}

// parseRenderRequest parses a render request from a Redis message
func parseRenderRequest(values map[string]interface{}) (*RenderRequest, error) {
	dataStr, ok := values["data"].(string)
	if !ok {
		return nil, fmt.Errorf("missing or invalid 'data' field")
	}

	var request RenderRequest
	if err := json.Unmarshal([]byte(dataStr), &request); err != nil {
		return nil, fmt.Errorf("failed to unmarshal render request: %w", err)
	}

	if request.RequestID == "" {
		request.RequestID = uuid.NewString()
	}

	if len(request.Template) == 0 && request.TemplateKey == "" {
		return &request, fmt.Errorf("request %s has neither template nor template_key", request.RequestID)
	}

	return &request, nil
}

// resolveTemplate returns the inline template or loads the stored one
func resolveTemplate(ctx context.Context, templates TemplateSource, request *RenderRequest) ([]string, error) {
	if len(request.Template) > 0 {
		return request.Template, nil
	}
	if templates == nil {
		return nil, fmt.Errorf("no template store configured for template %s", request.TemplateKey)
	}
	lines, err := templates.Get(ctx, request.TemplateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load template: %w", err)
	}
	return lines, nil
}

// missingPaths returns the state paths for data keys the request does not
// carry inline
func missingPaths(request *RenderRequest) map[string]string {
	inline := map[string]bool{
		KeyWorkItems:             request.WorkItems != nil,
		KeyCommits:               request.Commits != nil,
		KeyBuildDetails:          request.BuildDetails != nil,
		KeyReleaseDetails:        request.ReleaseDetails != nil,
		KeyCompareReleaseDetails: request.CompareReleaseDetails != nil,
		KeyEmptySetText:          request.EmptySetText != "",
	}

	paths := make(map[string]string)
	for key, path := range DefaultDataPaths {
		if inline[key] {
			continue
		}
		if override, ok := request.DataPaths[key]; ok {
			path = override
		}
		if path != "" {
			paths[key] = path
		}
	}
	return paths
}

// resolveData fills data missing from the request from graph state. Requests
// without an execution id, or whose execution has no state, render with what
// they carry.
func resolveData(ctx context.Context, states StateSource, request *RenderRequest) error {
	if states == nil || request.ExecutionID == "" {
		return nil
	}

	paths := missingPaths(request)
	if len(paths) == 0 {
		return nil
	}

	found, err := states.Lookup(ctx, request.ExecutionID, paths)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to read state: %w", err)
	}

	mergeData(request, found)
	return nil
}

// mergeData copies looked up values into the request
func mergeData(request *RenderRequest, found map[string]interface{}) {
	for key, value := range found {
		switch key {
		case KeyWorkItems:
			request.WorkItems = value
		case KeyCommits:
			request.Commits = value
		case KeyBuildDetails:
			request.BuildDetails = value
		case KeyReleaseDetails:
			request.ReleaseDetails = value
		case KeyCompareReleaseDetails:
			request.CompareReleaseDetails = value
		case KeyEmptySetText:
			if s, ok := value.(string); ok {
				request.EmptySetText = s
			}
		}
	}
}

// renderRequest converts a resolved request for the renderer
func renderRequest(lines []string, request *RenderRequest) render.Request {
	return render.Request{
		Lines:                 lines,
		WorkItems:             request.WorkItems,
		Commits:               request.Commits,
		BuildDetails:          request.BuildDetails,
		ReleaseDetails:        request.ReleaseDetails,
		CompareReleaseDetails: request.CompareReleaseDetails,
		EmptySetText:          request.EmptySetText,
		CustomHelpers:         request.CustomHelpers,
		HelperDefinitions:     request.HelperDefinitions,
	}
}

// outputPath is where the notes of a node are written in graph state
func outputPath(nodeID string) string {
	if strings.TrimSpace(nodeID) == "" {
		nodeID = "relnotes"
	}
	return "outputs." + store.EscapePathComponent(nodeID) + ".release_notes"
}
