// Package engine wires the Burst subsystems together and provides the
// application-level API: compile raw generator output into a plan, start
// timed runs of that plan, and look up, abort or stop them.
//
// # Building an Engine
//
//	eng, err := engine.New(
//	    engine.WithConfig(cfg),
//	    engine.WithSender(pd),
//	    engine.WithExtension(myExtension),
//	    engine.WithMiddleware(middleware.Logging(logger)),
//	)
//
// # Compiling and running
//
//	c, err := eng.Compile(ctx, raw)
//	rn, err := eng.Start(ctx, c.Plan)
//	report, err := rn.Wait(ctx)
//
// Every engine registers an observability.MetricsExtension and a
// stream.Broker; Broker() exposes the latter for live event consumers.
//
// # Options
//
//   - [WithConfig]: scenario and delivery configuration
//   - [WithLogger]: structured logger
//   - [WithSender]: delivery target; required by Start
//   - [WithResolver]: token resolver
//   - [WithExtension]: register a lifecycle extension
//   - [WithMiddleware]: add a middleware after the default delivery stack
//   - [WithTracerProvider], [WithMeterProvider]: OpenTelemetry providers
package engine
