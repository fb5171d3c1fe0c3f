// Package tracefan is a structured logging runtime with ambient
// context propagation and asynchronous handler dispatch.
//
// Loggers are obtained from a Registry by dotted name and emit
// immutable records carrying ordered structured data. Context flows
// three ways: scoped through context.Context, globally through the
// registry's Propagator, and statically through Bind. Records fan out
// through a Dispatcher to independent handlers, each with its own
// bounded queue, batching worker and circuit breaker, so one slow or
// failing sink never blocks the application or its neighbors.
//
// A minimal setup:
//
//	reg := tracefan.New()
//	h := handlers.NewConsole(handlers.ConsoleOptions{})
//	h.Start()
//	reg.AddHandler(h)
//	reg.MarkConfigured()
//
//	log := reg.Get("app.service")
//	ctx, _ := reg.Propagator().NewCorrelationID(context.Background())
//	log.Info(ctx, "User login", "user_id", 123)
//
// The config package loads the same setup from YAML.
package tracefan
