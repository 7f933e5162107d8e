package session

import (
	"github.com/cockroachdb/errors"

	"github.com/osa030/kamerplay/internal/app/objecturl"
	"github.com/osa030/kamerplay/internal/app/playback"
	"github.com/osa030/kamerplay/internal/app/resolver"
	"github.com/osa030/kamerplay/internal/infra/catalog"
	"github.com/osa030/kamerplay/internal/infra/config"
	"github.com/osa030/kamerplay/internal/infra/media"
	"github.com/osa030/kamerplay/internal/infra/probe"
)

// Factory builds sessions on top of the shared infrastructure.
type Factory struct {
	config   *config.Config
	catalog  *catalog.Client
	resolver *resolver.Resolver
	history  HistoryRecorder
}

// NewFactory creates a session factory. history may be nil.
func NewFactory(cfg *config.Config, catalogClient *catalog.Client, res *resolver.Resolver, history HistoryRecorder) (*Factory, error) {
	if catalogClient == nil {
		return nil, errors.New("catalog client is required")
	}
	if res == nil {
		res = resolver.New(nil)
	}
	return &Factory{
		config:   cfg,
		catalog:  catalogClient,
		resolver: res,
		history:  history,
	}, nil
}

// New creates a session for the viewer authenticated by token. Each session
// gets its own object URL registry, and its prober reads from it.
func (f *Factory) New(sessionID, viewerID, token string) (*Manager, error) {
	objects := objecturl.NewRegistry()
	prober := probe.New(objects, probe.Config{Timeout: f.config.CatalogTimeout()})
	outputCfg := f.config.Playback.Output

	deps := Deps{
		Catalog:  f.catalog.ForViewer(token),
		Resolver: f.resolver,
		NewOutput: func() (playback.Output, error) {
			return media.NewOutput(outputCfg.Type, outputCfg.Settings, prober)
		},
		Objects:    objects,
		Prober:     prober,
		History:    f.history,
		OwnerToken: token,
	}

	return NewManager(f.config, sessionID, viewerID, deps)
}
