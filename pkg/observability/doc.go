// Package observability provides structured logging, Prometheus metrics and
// panic recovery for pawndoc.
//
// # Structured Logging
//
// Create a logger from the log settings:
//
//	logger, err := observability.NewLogger(cfg.Log.Level, cfg.Log.Format, os.Stderr)
//
// Every pipeline run gets a run ID carried on the context:
//
//	ctx = observability.WithRunID(ctx, observability.NewRunID())
//	observability.FromContext(ctx, logger).Info("Starting run")
//
// # Prometheus Metrics
//
// Metrics are registered on a private registry. pawndoc is a batch tool, so
// instead of serving them the registry is written out in text exposition
// format for the node exporter textfile collector:
//
//	metrics := observability.NewMetrics(nil)
//	metrics.RecordPlugin(observability.OutcomeCompiled)
//	metrics.WriteTextfile("/var/lib/node_exporter/pawndoc.prom")
//
// # Panic Recovery
//
//	defer observability.RecoverPanic(logger, "watch worker")
package observability
