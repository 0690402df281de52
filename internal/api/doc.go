// Package api hosts the HTTP server and middleware for the oEmbed proxy. Routes:
//   - GET /healthz and /readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /oembed/1.0/proxy?url=...&maxwidth=&maxheight=&discover=&format= returning the
//     provider's oEmbed payload with rendered html, cached in transients.
package api
