package anthropic

import (
	"sync"

	"github.com/alphadose/haxmap"
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/atelier-ai/atelier/api"
	"github.com/atelier-ai/atelier/provider"
)

var modelRegistry = haxmap.New[string, api.Model]()

func Claude35Sonnet(opts ...option.RequestOption) api.Model {
	return Model(string(anthropic.ModelClaude3_5SonnetLatest), opts...)
}

func Claude35Haiku(opts ...option.RequestOption) api.Model {
	return Model(string(anthropic.ModelClaude3_5HaikuLatest), opts...)
}

func Model(name string, opts ...option.RequestOption) api.Model {
	m, _ := modelRegistry.GetOrCompute(name, func() api.Model {
		return &model{
			name: name,
			opts: opts,
		}
	})
	return m
}

var _ api.Model = (*model)(nil)

type model struct {
	name string
	opts []option.RequestOption

	prov     provider.Provider
	provOnce sync.Once
}

func (m *model) Name() string {
	return m.name
}

func (m *model) Provider() provider.Provider {
	m.provOnce.Do(func() {
		m.prov = New(m.opts...)
	})
	return m.prov
}
