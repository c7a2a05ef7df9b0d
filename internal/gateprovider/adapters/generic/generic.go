package generic

import (
	"context"
	"strings"

	"github.com/smallbiznis/gymgate/internal/gateprovider/adapters/httpgate"
	"github.com/smallbiznis/gymgate/internal/gateprovider/domain"
)

const (
	ProviderName   = "generic"
	deviceIDHeader = "X-Device-Id"
)

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
	if deviceID, ok := httpgate.ReadString(cfg.Settings, "device_id"); ok {
		client.Headers[deviceIDHeader] = deviceID
	}

	gateOpen, err := endpointPath(cfg.Endpoints, domain.EndpointGateOpen, domain.DefaultGateOpenPath)
	if err != nil {
		return nil, err
	}
	accessCheck, err := endpointPath(cfg.Endpoints, domain.EndpointAccessCheck, domain.DefaultAccessCheckPath)
	if err != nil {
		return nil, err
	}

	return &Adapter{client: client, gateOpenPath: gateOpen, accessCheckPath: accessCheck}, nil
}

// Adapter speaks the common controller protocol with operator-defined paths.
type Adapter struct {
	client          *httpgate.Client
	gateOpenPath    string
	accessCheckPath string
}

func (a *Adapter) OpenGate(ctx context.Context, memberID, gateID string) (*domain.Result, error) {
	return a.client.Post(ctx, a.gateOpenPath, memberID, gateID)
}

func (a *Adapter) CheckAccess(ctx context.Context, memberID, gateID string) (*domain.Result, error) {
	return a.client.Post(ctx, a.accessCheckPath, memberID, gateID)
}

func endpointPath(endpoints map[string]string, key, def string) (string, error) {
	path := strings.TrimSpace(endpoints[key])
	if path == "" {
		return def, nil
	}
	if strings.Contains(path, "://") {
		return "", domain.ErrInvalidConfig
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path, nil
}
