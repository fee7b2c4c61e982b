package middleware

import "github.com/aretw0/tripvoice/pkg/ports"

// Middleware allows wrapping an AudioCache to add behavior.
type Middleware func(ports.AudioCache) ports.AudioCache

// Chain applies middlewares so that the first one is the outermost.
func Chain(cache ports.AudioCache, mws ...Middleware) ports.AudioCache {
	for i := len(mws) - 1; i >= 0; i-- {
		cache = mws[i](cache)
	}
	return cache
}
