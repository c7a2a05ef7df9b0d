package zetko

import (
	"context"

	"github.com/smallbiznis/gymgate/internal/gateprovider/adapters/httpgate"
	"github.com/smallbiznis/gymgate/internal/gateprovider/domain"
)

const ProviderName = "zetko"

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Provider() string {
	return ProviderName
}

func (f *Factory) NewAdapter(cfg domain.Config) (domain.Adapter, error) {
	client, err := httpgate.New(cfg)
	if err != nil {
		return nil, err
	}
	return &Adapter{client: client}, nil
}

// Adapter talks to the Zetko cloud controller. Paths are fixed by the vendor.
type Adapter struct {
	client *httpgate.Client
}

func (a *Adapter) OpenGate(ctx context.Context, memberID, gateID string) (*domain.Result, error) {
	return a.client.Post(ctx, domain.DefaultGateOpenPath, memberID, gateID)
}

func (a *Adapter) CheckAccess(ctx context.Context, memberID, gateID string) (*domain.Result, error) {
	return a.client.Post(ctx, domain.DefaultAccessCheckPath, memberID, gateID)
}
