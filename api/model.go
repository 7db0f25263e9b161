package api

import "github.com/atelier-ai/atelier/provider"

// Model names an upstream model and carries the Provider that serves it.
type Model interface {
	Name() string
	Provider() provider.Provider
}
