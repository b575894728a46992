// Package httputil holds the JSON request/response helpers shared by every
// API handler, so status codes and error envelopes stay uniform across the
// campaign, recipient, template, and configuration endpoints.
package httputil
