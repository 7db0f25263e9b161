package gemini

import (
	"sync"

	"github.com/alphadose/haxmap"
	"github.com/atelier-ai/atelier/api"
	"github.com/atelier-ai/atelier/provider"
)

var modelRegistry = haxmap.New[string, api.Model]()

func Flash() api.Model {
	return Model("gemini-2.0-flash")
}

func Pro() api.Model {
	return Model("gemini-1.5-pro")
}

func Model(name string) api.Model {
	m, _ := modelRegistry.GetOrCompute(name, func() api.Model {
		return &model{name: name}
	})
	return m
}

var _ api.Model = (*model)(nil)

type model struct {
	name string

	prov     provider.Provider
	provOnce sync.Once
}

func (m *model) Name() string {
	return m.name
}

func (m *model) Provider() provider.Provider {
	m.provOnce.Do(func() {
		m.prov = New()
	})
	return m.prov
}
