// Package worker runs the release notes renderer behind a Redis stream.
//
// Each message on STREAM_KEY carries a JSON RenderRequest in its "data"
// field. The worker resolves the template (inline lines or a stored template
// key), fills data the request does not carry from graph state, renders,
// optionally polishes the notes with an LLM and publishes a RenderResult on
// RESULT_STREAM. Failures are published on RESULT_STREAM + ".errors". Every
// message is acknowledged, whatever the outcome.
//
//	renderer := render.NewRenderer(render.WithLogger(logger))
//	w := worker.NewWorker(cfg, redisClient, renderer, polisher, templates, states, logger)
//	if err := w.Start(); err != nil {
//	    log.Fatal(err)
//	}
//	defer w.Stop(5 * time.Second)
//
// Health checks and Prometheus metrics are served by a separate HTTP server:
//
//	healthServer := worker.NewHealthServer(8083, redisClient, logger)
//	healthServer.Start()
package worker
