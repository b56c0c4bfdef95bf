// Package runtime wires storage, access control, ingest and fan-out into
// a single-node Logos instance. It exposes Open/Close, basic health
// checks, and accessors for the components the transports serve.
//
// Example:
//
//	cfg := config.Default()
//	rt, _ := runtime.Open(runtime.Options{DataDir: "./data", Config: cfg})
//	defer rt.Close()
//	// Health
//	_ = rt.CheckHealth(context.Background())
//	// Submit an entry
//	receipt, _ := rt.Ingest().Submit(context.Background(), draft)
package runtime
