// Package wasmboot bootstraps a single WebAssembly program, main.wasm.
//
// # Overview
//
// The loader fetches main.wasm relative to a base location with caching
// disabled, instantiates it against the runtime bridge's import table and
// runs it once. Failures are logged, never retried.
//
// # Basic Usage
//
//	host, _ := wasmhost.NewWazero(ctx)
//	defer host.Close(ctx)
//
//	fetcher, _ := loader.NewFetcher("http://localhost:9200/index.html")
//	b := bridge.New(bridge.WithStdout(os.Stdout))
//
//	l := loader.New(fetcher, loader.SelectInstantiator(host), b,
//	    loader.WithLogger(logger))
//	l.Start(ctx)
//
// # Enabling Capabilities
//
//	// Key-value store
//	b := bridge.New(bridge.WithKV(hostfunc.DefaultKVConfig()))
//
//	// HTTP access
//	b := bridge.New(bridge.WithHTTP(hostfunc.HTTPConfig{
//	    AllowedHosts: []string{"api.example.com"},
//	}))
//
// # Revalidation
//
// Attach an [artifactcache.Store] with [loader.WithCache] to reuse a stored
// copy when the origin answers 304 Not Modified. The [server] package serves
// content ETags for exactly this.
//
// See the [loader], [wasmhost], [bridge], and [hostfunc] packages for
// detailed API documentation.
package wasmboot
