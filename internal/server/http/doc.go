// Package httpserver provides the REST gateway for Logos: entry
// submission and queries, SSE and WebSocket live subscriptions, admin
// endpoints for principals and rules, and the Prometheus metrics handler.
//
// Example:
//
//	rt, _ := runtime.Open(runtime.Options{DataDir: "./data", Config: config.Default()})
//	s := httpserver.New(rt, nil)
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	_ = s.ListenAndServe(ctx, ":8080")
package httpserver
