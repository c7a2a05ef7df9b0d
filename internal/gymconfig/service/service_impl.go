package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	auditdomain "github.com/smallbiznis/gymgate/internal/audit/domain"
	auditmasking "github.com/smallbiznis/gymgate/internal/audit/masking"
	"github.com/smallbiznis/gymgate/internal/cache"
	"github.com/smallbiznis/gymgate/internal/clock"
	"github.com/smallbiznis/gymgate/internal/config"
	"github.com/smallbiznis/gymgate/internal/gateprovider/adapters"
	gatedomain "github.com/smallbiznis/gymgate/internal/gateprovider/domain"
	"github.com/smallbiznis/gymgate/internal/gymconfig/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const maxNameLength = 120

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Cfg      config.Config
	Clock    clock.Clock
	Repo     domain.Repository
	Registry *adapters.Registry
	AuditSvc auditdomain.Service `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	clock    clock.Clock
	repo     domain.Repository
	registry *adapters.Registry
	auditSvc auditdomain.Service
	sealer   *sealer
	cache    cache.Cache[string, *domain.Resolved]
	cacheTTL time.Duration
	timeout  time.Duration
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("gymconfig.service"),
		clock:    p.Clock,
		repo:     p.Repo,
		registry: p.Registry,
		auditSvc: p.AuditSvc,
		sealer:   newSealer(p.Cfg.Secrets.GymConfigSecret),
		cache:    cache.NewTTLCache[string, *domain.Resolved](p.Clock),
		cacheTTL: p.Cfg.GymConfigCacheTTL,
		timeout:  p.Cfg.GateProviderTimeout,
	}
}

func (s *Service) Upsert(ctx context.Context, req domain.UpsertRequest) (*domain.ConfigSummary, error) {
	facilityID := strings.TrimSpace(req.FacilityID)
	if facilityID == "" {
		return nil, domain.ErrInvalidFacility
	}
	name := strings.TrimSpace(req.Name)
	if name == "" || len(name) > maxNameLength {
		return nil, domain.ErrInvalidName
	}
	provider := strings.ToLower(strings.TrimSpace(req.GateProvider))
	if !s.registry.ProviderExists(provider) {
		return nil, gatedomain.ErrProviderNotFound
	}

	settings := normalizeSettings(req.ProviderSettings)
	endpoints := normalizeEndpoints(req.Endpoints)
	baseURL := strings.TrimSpace(req.BaseURL)

	// Building the adapter is the validation: each factory knows what it needs.
	if _, err := s.registry.NewAdapter(provider, s.gateConfig(facilityID, provider, baseURL, settings, endpoints)); err != nil {
		return nil, err
	}

	hardware := normalizeSettings(req.HardwareSettings)
	if hardware != nil {
		if _, err := parseHardware(hardware); err != nil {
			return nil, err
		}
	}

	sealedSettings, err := s.sealer.seal(settings)
	if err != nil {
		return nil, err
	}
	sealedHardware, err := s.sealer.seal(hardware)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.FindByFacility(ctx, s.db, facilityID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	cfg := domain.GymConfiguration{
		FacilityID:       facilityID,
		Name:             name,
		GateProvider:     provider,
		BaseURL:          baseURL,
		ProviderSettings: sealedSettings,
		Endpoints:        endpointsMap(endpoints),
		HardwareSettings: sealedHardware,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if existing != nil {
		cfg.CreatedAt = existing.CreatedAt
	}
	if err := s.repo.Upsert(ctx, s.db, &cfg); err != nil {
		return nil, err
	}
	s.cache.Delete(facilityID)

	s.log.Info("gym configuration saved",
		zap.String("facility_id", facilityID),
		zap.String("gate_provider", provider),
	)

	if s.auditSvc != nil {
		action := "gym_config.update"
		if existing == nil {
			action = "gym_config.create"
		}
		metadata := map[string]any{"gate_provider": provider, "base_url": baseURL}
		if masked := auditmasking.MaskSettings(settings); masked != nil {
			metadata["masked_settings"] = masked
		}
		if err := s.auditSvc.AuditLog(ctx, facilityID, "", nil, action, "gym_configuration", &facilityID, metadata); err != nil {
			s.log.Warn("audit log failed", zap.String("action", action), zap.Error(err))
		}
	}

	return &domain.ConfigSummary{
		FacilityID:         facilityID,
		Name:               name,
		GateProvider:       provider,
		BaseURL:            baseURL,
		ProviderSettings:   auditmasking.MaskSettings(settings),
		Endpoints:          endpoints,
		HardwareConfigured: hardware != nil,
		UpdatedAt:          now,
	}, nil
}

func (s *Service) Get(ctx context.Context, facilityID string) (*domain.ConfigSummary, error) {
	facilityID = strings.TrimSpace(facilityID)
	if facilityID == "" {
		return nil, domain.ErrInvalidFacility
	}
	cfg, err := s.repo.FindByFacility(ctx, s.db, facilityID)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, domain.ErrNotFound
	}
	summary := s.summarize(cfg)
	return &summary, nil
}

func (s *Service) List(ctx context.Context) ([]domain.ConfigSummary, error) {
	items, err := s.repo.List(ctx, s.db)
	if err != nil {
		return nil, err
	}
	resp := make([]domain.ConfigSummary, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		resp = append(resp, s.summarize(item))
	}
	return resp, nil
}

func (s *Service) Resolve(ctx context.Context, facilityID string) (*domain.Resolved, error) {
	facilityID = strings.TrimSpace(facilityID)
	if facilityID == "" {
		return nil, domain.ErrInvalidFacility
	}
	if cached, ok := s.cache.Get(facilityID); ok {
		return cached, nil
	}

	cfg, err := s.repo.FindByFacility(ctx, s.db, facilityID)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, domain.ErrNotFound
	}

	settings, err := s.sealer.open(cfg.ProviderSettings)
	if err != nil {
		return nil, fmt.Errorf("%w: provider settings: %v", gatedomain.ErrInvalidConfig, err)
	}
	adapter, err := s.registry.NewAdapter(cfg.GateProvider,
		s.gateConfig(cfg.FacilityID, cfg.GateProvider, cfg.BaseURL, settings, readEndpoints(cfg.Endpoints)))
	if err != nil {
		return nil, err
	}

	resolved := &domain.Resolved{
		FacilityID: cfg.FacilityID,
		Name:       cfg.Name,
		Provider:   cfg.GateProvider,
		Adapter:    adapter,
	}
	hardware, err := s.sealer.open(cfg.HardwareSettings)
	if err != nil {
		s.log.Warn("unreadable hardware settings", zap.String("facility_id", facilityID), zap.Error(err))
	} else if hardware != nil {
		if parsed, err := parseHardware(hardware); err == nil {
			resolved.Hardware = parsed
		}
	}

	s.cache.Set(facilityID, resolved, s.cacheTTL)
	return resolved, nil
}

func (s *Service) gateConfig(facilityID, provider, baseURL string, settings map[string]any, endpoints map[string]string) gatedomain.Config {
	return gatedomain.Config{
		FacilityID: facilityID,
		Provider:   provider,
		BaseURL:    baseURL,
		Settings:   settings,
		Endpoints:  endpoints,
		Timeout:    s.timeout,
	}
}

func (s *Service) summarize(cfg *domain.GymConfiguration) domain.ConfigSummary {
	summary := domain.ConfigSummary{
		FacilityID:         cfg.FacilityID,
		Name:               cfg.Name,
		GateProvider:       cfg.GateProvider,
		BaseURL:            cfg.BaseURL,
		Endpoints:          readEndpoints(cfg.Endpoints),
		HardwareConfigured: !isEmptyEnvelope(cfg.HardwareSettings),
		UpdatedAt:          cfg.UpdatedAt,
	}
	settings, err := s.sealer.open(cfg.ProviderSettings)
	if err != nil {
		if !errors.Is(err, domain.ErrEncryptionKeyMissing) {
			s.log.Warn("unreadable provider settings", zap.String("facility_id", cfg.FacilityID), zap.Error(err))
		}
		return summary
	}
	summary.ProviderSettings = auditmasking.MaskSettings(settings)
	return summary
}

func parseHardware(values map[string]any) (*domain.HardwareSettings, error) {
	apiURL, _ := values["api_url"].(string)
	apiKey, _ := values["api_key"].(string)
	apiURL = strings.TrimRight(strings.TrimSpace(apiURL), "/")
	apiKey = strings.TrimSpace(apiKey)
	if apiURL == "" || apiKey == "" {
		return nil, domain.ErrInvalidHardware
	}
	if !strings.HasPrefix(apiURL, "http://") && !strings.HasPrefix(apiURL, "https://") {
		return nil, domain.ErrInvalidHardware
	}
	return &domain.HardwareSettings{APIURL: apiURL, APIKey: apiKey}, nil
}

func normalizeSettings(values map[string]any) map[string]any {
	if len(values) == 0 {
		return nil
	}
	normalized := make(map[string]any, len(values))
	for key, value := range values {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" || value == nil {
			continue
		}
		if cast, ok := value.(string); ok {
			cast = strings.TrimSpace(cast)
			if cast == "" {
				continue
			}
			normalized[trimmedKey] = cast
			continue
		}
		normalized[trimmedKey] = value
	}
	if len(normalized) == 0 {
		return nil
	}
	return normalized
}

func normalizeEndpoints(values map[string]string) map[string]string {
	if len(values) == 0 {
		return nil
	}
	out := make(map[string]string, len(values))
	for key, value := range values {
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" || value == "" {
			continue
		}
		out[key] = value
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func endpointsMap(values map[string]string) datatypes.JSONMap {
	if len(values) == 0 {
		return nil
	}
	out := make(datatypes.JSONMap, len(values))
	for key, value := range values {
		out[key] = value
	}
	return out
}

func readEndpoints(values datatypes.JSONMap) map[string]string {
	if len(values) == 0 {
		return nil
	}
	out := make(map[string]string, len(values))
	for key, value := range values {
		if cast, ok := value.(string); ok {
			out[key] = cast
		}
	}
	return out
}
