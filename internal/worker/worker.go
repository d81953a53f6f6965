package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aescanero/dago-node-relnotes/internal/config"
	"github.com/aescanero/dago-node-relnotes/internal/helpers"
	"github.com/aescanero/dago-node-relnotes/internal/polish"
	"github.com/aescanero/dago-node-relnotes/internal/render"
	"github.com/aescanero/dago-node-relnotes/internal/store"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Worker consumes render requests from a Redis stream
type Worker struct {
	id            string
	config        *config.Config
	redisClient   *redis.Client
	renderer      *render.Renderer
	polisher      *polish.Polisher
	templates     TemplateSource
	states        StateSource
	logger        *zap.Logger
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	streamKey     string
	consumerGroup string
	resultStream  string
}

// NewWorker creates a new worker. templates, states and polisher may be nil.
func NewWorker(
	cfg *config.Config,
	redisClient *redis.Client,
	renderer *render.Renderer,
	polisher *polish.Polisher,
	templates TemplateSource,
	states StateSource,
	logger *zap.Logger,
) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Worker{
		id:            cfg.WorkerID,
		config:        cfg,
		redisClient:   redisClient,
		renderer:      renderer,
		polisher:      polisher,
		templates:     templates,
		states:        states,
		logger:        logger,
		ctx:           ctx,
		cancel:        cancel,
		streamKey:     cfg.StreamKey,
		consumerGroup: cfg.ConsumerGroup,
		resultStream:  cfg.ResultStream,
	}
}

// Start starts the worker
func (w *Worker) Start() error {
	w.logger.Info("starting release notes worker",
		zap.String("worker_id", w.id),
		zap.String("stream_key", w.streamKey),
		zap.String("consumer_group", w.consumerGroup),
	)

	if err := w.ensureConsumerGroup(); err != nil {
		return fmt.Errorf("failed to ensure consumer group: %w", err)
	}

	w.wg.Add(1)
	go w.processWork()

	w.logger.Info("release notes worker started", zap.String("worker_id", w.id))
	return nil
}

// Stop stops the worker and waits for the in-flight request, up to timeout
func (w *Worker) Stop(timeout time.Duration) error {
	w.logger.Info("stopping release notes worker", zap.String("worker_id", w.id))

	w.cancel()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		return fmt.Errorf("worker did not stop within %s", timeout)
	}

	w.logger.Info("release notes worker stopped", zap.String("worker_id", w.id))
	return nil
}

// ensureConsumerGroup creates the consumer group if it doesn't exist
func (w *Worker) ensureConsumerGroup() error {
	err := w.redisClient.XGroupCreateMkStream(w.ctx, w.streamKey, w.consumerGroup, "0").Err()
	if err != nil {
		if strings.HasPrefix(err.Error(), "BUSYGROUP") {
			w.logger.Debug("consumer group already exists",
				zap.String("group", w.consumerGroup),
			)
			return nil
		}
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	w.logger.Info("created consumer group",
		zap.String("group", w.consumerGroup),
		zap.String("stream", w.streamKey),
	)
	return nil
}

// processWork reads render requests until the worker is stopped
func (w *Worker) processWork() {
	defer w.wg.Done()
	w.logger.Info("starting work processing loop")

	for {
		select {
		case <-w.ctx.Done():
			w.logger.Info("work processing loop stopped")
			return
		default:
		}

		streams, err := w.redisClient.XReadGroup(w.ctx, &redis.XReadGroupArgs{
			Group:    w.consumerGroup,
			Consumer: w.id,
			Streams:  []string{w.streamKey, ">"},
			Count:    1,
			Block:    w.config.BlockTime,
		}).Result()

		if err != nil {
			if errors.Is(err, redis.Nil) || w.ctx.Err() != nil {
				continue
			}
			w.logger.Error("failed to read from stream", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		for _, stream := range streams {
			for _, message := range stream.Messages {
				w.handleMessage(message)
			}
		}
	}
}

// handleMessage handles a single render request message. Messages are
// always acknowledged; failures go to the error stream.
func (w *Worker) handleMessage(message redis.XMessage) {
	messageID := message.ID
	w.logger.Info("processing render request",
		zap.String("message_id", messageID),
	)
	defer w.acknowledgeMessage(messageID)

	// in-flight requests outlive Stop, which only waits for them
	ctx, cancel := context.WithTimeout(context.Background(), w.config.RenderTimeout)
	defer cancel()

	request, err := parseRenderRequest(message.Values)
	if err != nil {
		rendersTotal.WithLabelValues(resultInvalid).Inc()
		w.logger.Error("failed to parse render request",
			zap.String("message_id", messageID),
			zap.Error(err),
		)
		if request != nil {
			w.publishError(ctx, request, err)
		}
		return
	}

	result, err := w.Process(ctx, request)
	if err != nil {
		w.logger.Error("failed to render release notes",
			zap.String("message_id", messageID),
			zap.String("request_id", request.RequestID),
			zap.String("execution_id", request.ExecutionID),
			zap.Error(err),
		)
		w.publishError(ctx, request, err)
		return
	}

	if err := w.publishResult(ctx, result); err != nil {
		w.logger.Error("failed to publish render result",
			zap.String("request_id", request.RequestID),
			zap.Error(err),
		)
	}
}

// Process renders one request: it resolves the template and any data held
// in graph state, renders, optionally polishes and writes the notes back to
// graph state.
func (w *Worker) Process(ctx context.Context, request *RenderRequest) (*RenderResult, error) {
	start := time.Now()
	defer func() {
		renderDuration.Observe(time.Since(start).Seconds())
	}()

	lines, err := resolveTemplate(ctx, w.templates, request)
	if err != nil {
		rendersTotal.WithLabelValues(resultInvalid).Inc()
		return nil, err
	}

	if err := resolveData(ctx, w.states, request); err != nil {
		rendersTotal.WithLabelValues(resultFailed).Inc()
		return nil, err
	}

	notes, err := w.renderer.Render(ctx, renderRequest(lines, request))
	if err != nil {
		rendersTotal.WithLabelValues(resultFailed).Inc()
		return nil, fmt.Errorf("render failed: %w", err)
	}

	result := &RenderResult{
		RequestID:   request.RequestID,
		ExecutionID: request.ExecutionID,
		NodeID:      request.NodeID,
		Notes:       notes,
	}

	outcome := resultSuccess
	if request.Polish {
		if polished, err := w.polish(ctx, notes, request.PolishInstructions); err != nil {
			// unpolished notes are still a valid result
			outcome = resultPolishFailed
			result.PolishError = err.Error()
			w.logger.Warn("polishing failed, publishing rendered notes",
				zap.String("request_id", request.RequestID),
				zap.Error(err),
			)
		} else {
			result.Notes = polished
			result.Polished = true
		}
	}

	w.storeNotes(ctx, request, result.Notes)

	result.DurationMs = time.Since(start).Milliseconds()
	result.Timestamp = time.Now().UTC()
	rendersTotal.WithLabelValues(outcome).Inc()

	w.logger.Info("release notes rendered",
		zap.String("request_id", request.RequestID),
		zap.Int("length", len(result.Notes)),
		zap.Bool("polished", result.Polished),
		zap.Int64("duration_ms", result.DurationMs),
	)
	return result, nil
}

func (w *Worker) polish(ctx context.Context, notes, instructions string) (string, error) {
	if !w.polisher.Enabled() {
		return "", fmt.Errorf("polishing requested but no llm client is configured")
	}
	return w.polisher.Polish(ctx, notes, instructions)
}

// storeNotes writes the notes to graph state when the request belongs to an
// execution
func (w *Worker) storeNotes(ctx context.Context, request *RenderRequest, notes string) {
	if w.states == nil || request.ExecutionID == "" {
		return
	}

	path := outputPath(request.NodeID)
	if err := w.states.SetOutput(ctx, request.ExecutionID, path, notes); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			w.logger.Debug("no graph state for execution, notes not stored",
				zap.String("execution_id", request.ExecutionID),
			)
			return
		}
		w.logger.Warn("failed to store release notes in graph state",
			zap.String("execution_id", request.ExecutionID),
			zap.String("path", path),
			zap.Error(err),
		)
	}
}

// publishResult publishes rendered notes to the result stream
func (w *Worker) publishResult(ctx context.Context, result *RenderResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	_, err = w.redisClient.XAdd(ctx, &redis.XAddArgs{
		Stream: w.resultStream,
		Values: map[string]interface{}{
			"data": string(data),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to publish to stream: %w", err)
	}

	w.logger.Info("published release notes",
		zap.String("request_id", result.RequestID),
		zap.String("stream", w.resultStream),
	)
	return nil
}

// publishError publishes an error event
func (w *Worker) publishError(ctx context.Context, request *RenderRequest, err error) {
	errorEvent := map[string]interface{}{
		"request_id":   request.RequestID,
		"execution_id": request.ExecutionID,
		"node_id":      request.NodeID,
		"error":        err.Error(),
		"timestamp":    time.Now().UTC(),
	}

	var loadErr *helpers.LoadError
	if errors.As(err, &loadErr) {
		errorEvent["helper"] = loadErr.Helper
	}

	data, marshalErr := json.Marshal(errorEvent)
	if marshalErr != nil {
		w.logger.Error("failed to marshal error event", zap.Error(marshalErr))
		return
	}

	_, publishErr := w.redisClient.XAdd(ctx, &redis.XAddArgs{
		Stream: w.resultStream + ".errors",
		Values: map[string]interface{}{
			"data": string(data),
		},
	}).Result()

	if publishErr != nil {
		w.logger.Error("failed to publish error event", zap.Error(publishErr))
	}
}

// acknowledgeMessage acknowledges a message from the stream
func (w *Worker) acknowledgeMessage(messageID string) {
	// the worker context may already be canceled during shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := w.redisClient.XAck(ctx, w.streamKey, w.consumerGroup, messageID).Err()
	if err != nil {
		w.logger.Error("failed to acknowledge message",
			zap.String("message_id", messageID),
			zap.Error(err),
		)
	}
}
