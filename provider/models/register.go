// Package models holds the process-wide model registry. Model ids map
// to the provider that serves them, so selecting a provider is a lookup,
// never an if/else chain: adding a provider means registering its models
// here, not touching the orchestrator.
package models

import (
	"github.com/atelier-ai/atelier/api"
	"github.com/atelier-ai/atelier/internal/registry"
)

var Global = registry.New[api.Model]()

func Add(model api.Model) {
	Global.Add(model.Name(), model)
}

func Get(name string) (api.Model, bool) {
	return Global.Get(name)
}

func GetOrAdd(name string, modelF func() api.Model) api.Model {
	m, _ := Global.GetOrAdd(name, modelF)
	return m
}

func Del(name string) {
	Global.Del(name)
}

// Names lists the registered model ids.
func Names() []string {
	return Global.Names()
}
