// Package cmd defines and implements the CLI commands for the embedctl executable.
//
// Architecture overview:
//   - Root: loads configuration with Viper (file from --config plus EMBEDCTL_* env overrides), builds a zap
//     logger on stderr, then builds an app.App holding every backend before a subcommand runs. The app is closed
//     and the optional Prometheus textfile written after the command returns, whatever its outcome. One-shot
//     commands run inside an OpenTelemetry span whose trace context reaches published cache events.
//   - fetch: one synchronous resolution through embed handlers, the oEmbed cache, local posts and the provider
//     registry (with discovery). HTML or the raw payload (json/xml) goes to stdout.
//   - provider / handler: read-only views over the registries with table, csv, json and yaml output.
//   - cache: clear, find, trigger and export over the three legacy cache shapes (post meta, oembed_cache posts,
//     oembed_* transients). Destructive clears can be preceded by a backup to local disk or GCS, and cache
//     mutations publish events to Pub/Sub when configured.
//   - serve: the oEmbed proxy endpoint over chi with health, readiness and metrics routes.
//
// Output contract: results go to stdout; "Warning: ..." lines go to stderr and exit 0; terminal failures print a
// single "Error: ..." line on stderr and exit 1. SIGINT and SIGTERM cancel the in-flight fetch.
package cmd
