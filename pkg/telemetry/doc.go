// Package telemetry provides logging, tracing, and metrics for archetype.
//
// The package combines structured logging (zerolog), tracing (OpenTelemetry),
// and metrics (Prometheus) behind one Telemetry value built from a Config.
//
// # Usage
//
// Initialize telemetry when a command starts:
//
//	cfg := telemetry.DefaultConfig()
//	cfg.Metrics.Enabled = true
//	cfg.Metrics.Textfile = "/var/lib/node_exporter/archetype.prom"
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	ctx = tel.WithContext(ctx)
//
// # Logging
//
//	logger := tel.Logger.ForArchetype("org.example:quickstart:1.0")
//	logger.Info("generating project")
//
// Packages that take a zerolog.Logger receive tel.Logger.Zerolog(). When
// logging.output names a file, Shutdown closes it.
//
// # Tracing
//
// Generation and creation each open a root span. Exporters are "otlp"
// (gRPC to a collector), "stdout" (pretty JSON on stderr), and "none".
// A nil *Tracer falls back to the global provider.
//
//	ctx, span := tel.Tracer.StartGenerationSpan(ctx, req.OutputDirectory, req.Interactive)
//	defer func() { telemetry.End(span, err) }()
//
// # Metrics
//
// A command runs once and exits, so metrics are not served over HTTP.
// Shutdown writes them to MetricsConfig.Textfile for node-exporter's
// textfile collector. Exposed series:
//
//   - archetype_generations_total{status}
//   - archetype_generation_duration_seconds{status}
//   - archetype_generated_files_total{outcome}
//   - archetype_creations_total{status}
//   - archetype_creation_resources_total
//   - archetype_creation_duration_seconds
//   - archetype_policy_violations_total{policy}
//   - archetype_errors_total{kind}
//
// A nil *Metrics, or one built with metrics disabled, records nothing.
package telemetry
