// Package hostfunc provides host functions a running artifact can call
// through the bridge.
//
// Functions live in a [Registry] and exchange JSON arguments and results.
// The bridge registers only what the operator enables:
//
//	registry := hostfunc.NewRegistry()
//	hostfunc.NewKV(hostfunc.DefaultKVConfig()).Register(registry)
//	hostfunc.NewHTTP(hostfunc.HTTPConfig{
//	    AllowedHosts: []string{"api.example.com"},
//	}).Register(registry)
//
// HTTP requests are limited to explicitly allowed hosts and their
// subdomains, on the first hop and on every redirect. Denied requests and
// truncated responses are logged through the logger given with
// [WithHTTPLogger]. All operations have size limits.
package hostfunc
