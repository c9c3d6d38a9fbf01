// Package middleware decorates a RunStore with behaviour applied to every
// archived run: encryption at rest and redaction of sensitive text.
package middleware

import "github.com/aretw0/pipette/pkg/ports"

// Middleware allows wrapping a RunStore to add behavior.
type Middleware func(ports.RunStore) ports.RunStore

// Chain applies mws to store so that the first middleware sees a run first.
func Chain(store ports.RunStore, mws ...Middleware) ports.RunStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}
