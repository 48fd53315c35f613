// Package server provides the HTTP API through which a transport reports
// intercepted exchanges to the Callisto engine and manages the proxy list.
//
// # Routes
//
//	POST   /v1/exchanges/{stage}   stage: before-request, headers-received, completed, error
//	GET    /v1/proxies
//	POST   /v1/proxies
//	PUT    /v1/proxies/{index}
//	DELETE /v1/proxies/{index}
//	GET    /v1/convert?direction=canonical|proxied&url=...
//	GET    /health, /ready, /version
//	GET    /metrics (configurable)
//
// An exchange event answers {"redirectTo": "..."} when the transport should
// redirect and {} otherwise.
//
// With server.auth enabled the /v1 routes require "Authorization: Bearer
// <key>" or "X-API-Key: <key>". With server.tls enabled the API is served over
// HTTPS; the certificate is reread when its files change.
package server
