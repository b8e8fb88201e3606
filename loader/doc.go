// Package loader fetches the artifact main.wasm, instantiates it against a
// runtime bridge and runs it, once, at program start.
//
// # Overview
//
// The sequence has three fallible stages: fetch, instantiate and run. A
// fetch or instantiation failure is logged once on the error channel and
// the loader stops; nothing is retried and nothing is returned to the
// caller. If the run stage ever returns, that is logged once on the
// informational channel.
//
//	host, _ := wasmhost.NewWazero(ctx)
//	fetcher, _ := loader.NewFetcher("http://localhost:9200/")
//	l := loader.New(fetcher, loader.SelectInstantiator(host), bridge.New(),
//	    loader.WithLogger(logger))
//	l.Start(ctx)
//
// # Instantiation strategy
//
// [SelectInstantiator] picks the strategy once. Hosts that can instantiate
// from a stream are used directly; other hosts get a fallback that buffers
// the whole body and then instantiates from bytes.
//
// # Caching
//
// The fetch always revalidates with the origin. An [artifactcache.Store]
// can be attached to [HTTPFetcher] so that a 304 Not Modified reuses the
// stored copy instead of downloading it again.
package loader
