package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/smallbiznis/gymgate/internal/clock"
	"github.com/smallbiznis/gymgate/internal/config"
	"github.com/smallbiznis/gymgate/internal/gateprovider"
	gatedomain "github.com/smallbiznis/gymgate/internal/gateprovider/domain"
	"github.com/smallbiznis/gymgate/internal/gymconfig/domain"
	"github.com/smallbiznis/gymgate/internal/gymconfig/repository"
	"github.com/smallbiznis/gymgate/internal/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newConfigService(t *testing.T, secret string) (domain.Service, *gorm.DB) {
	t.Helper()
	db := testutil.NewDB(t, &domain.GymConfiguration{})
	cfg := config.Config{
		Secrets:             config.SecretsConfig{GymConfigSecret: secret},
		GymConfigCacheTTL:   time.Minute,
		GateProviderTimeout: time.Second,
	}
	svc := New(Params{
		DB:       db,
		Log:      zap.NewNop(),
		Cfg:      cfg,
		Clock:    clock.NewFakeClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)),
		Repo:     repository.Provide(),
		Registry: gateprovider.NewRegistry(),
	})
	return svc, db
}

func zetkoRequest(baseURL string) domain.UpsertRequest {
	return domain.UpsertRequest{
		FacilityID:       "gym_001",
		Name:             "Downtown Fitness",
		GateProvider:     "zetko",
		BaseURL:          baseURL,
		ProviderSettings: map[string]any{"api_key": "zetko_api_key_1234", "device_id": "zetko_device_001"},
	}
}

func TestUpsertRejectsUnknownProvider(t *testing.T) {
	svc, _ := newConfigService(t, "secret")
	req := zetkoRequest("https://api.zetko.com/v1")
	req.GateProvider = "acme"

	_, err := svc.Upsert(context.Background(), req)
	require.ErrorIs(t, err, gatedomain.ErrProviderNotFound)
}

func TestUpsertValidatesAdapterSettings(t *testing.T) {
	svc, _ := newConfigService(t, "secret")
	req := zetkoRequest("https://api.zetko.com/v1")
	req.ProviderSettings = map[string]any{"device_id": "d"}

	_, err := svc.Upsert(context.Background(), req)
	require.ErrorIs(t, err, gatedomain.ErrInvalidConfig)

	req = zetkoRequest("https://api.zetko.com/v1")
	req.HardwareSettings = map[string]any{"api_url": "not-a-url", "api_key": "k"}
	_, err = svc.Upsert(context.Background(), req)
	require.ErrorIs(t, err, domain.ErrInvalidHardware)
}

func TestUpsertRequiresEncryptionKey(t *testing.T) {
	svc, _ := newConfigService(t, "")
	_, err := svc.Upsert(context.Background(), zetkoRequest("https://api.zetko.com/v1"))
	require.ErrorIs(t, err, domain.ErrEncryptionKeyMissing)
}

func TestSettingsAreEncryptedAndMasked(t *testing.T) {
	svc, db := newConfigService(t, "secret")
	ctx := context.Background()

	summary, err := svc.Upsert(ctx, zetkoRequest("https://api.zetko.com/v1"))
	require.NoError(t, err)
	require.Equal(t, "****1234", summary.ProviderSettings["api_key"])

	var stored domain.GymConfiguration
	require.NoError(t, db.First(&stored, "facility_id = ?", "gym_001").Error)
	require.False(t, strings.Contains(string(stored.ProviderSettings), "zetko_api_key_1234"))

	got, err := svc.Get(ctx, "gym_001")
	require.NoError(t, err)
	require.Equal(t, "****1234", got.ProviderSettings["api_key"])
	require.Equal(t, "zetko_device_001", got.ProviderSettings["device_id"])
	require.False(t, got.HardwareConfigured)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestResolveBuildsAdapterAndRefreshesOnUpsert(t *testing.T) {
	var hitsA, hitsB int
	srvA := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer zetko_api_key_1234" {
			t.Errorf("unexpected authorization %q", got)
		}
		hitsA++
	}))
	defer srvA.Close()
	srvB := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { hitsB++ }))
	defer srvB.Close()

	svc, _ := newConfigService(t, "secret")
	ctx := context.Background()

	_, err := svc.Upsert(ctx, zetkoRequest(srvA.URL))
	require.NoError(t, err)

	resolved, err := svc.Resolve(ctx, "gym_001")
	require.NoError(t, err)
	require.Equal(t, "zetko", resolved.Provider)
	_, err = resolved.Adapter.OpenGate(ctx, "m-1", "main")
	require.NoError(t, err)

	again, err := svc.Resolve(ctx, "gym_001")
	require.NoError(t, err)
	require.Same(t, resolved, again)

	req := zetkoRequest(srvB.URL)
	req.HardwareSettings = map[string]any{"api_url": "https://hw.example.com/", "api_key": "hw"}
	_, err = svc.Upsert(ctx, req)
	require.NoError(t, err)

	refreshed, err := svc.Resolve(ctx, "gym_001")
	require.NoError(t, err)
	_, err = refreshed.Adapter.OpenGate(ctx, "m-1", "main")
	require.NoError(t, err)
	require.Equal(t, 1, hitsA)
	require.Equal(t, 1, hitsB)
	require.NotNil(t, refreshed.Hardware)
	require.Equal(t, "https://hw.example.com", refreshed.Hardware.APIURL)
}

func TestResolveCacheFollowsClock(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	svc := New(Params{
		DB:  testutil.NewDB(t, &domain.GymConfiguration{}),
		Log: zap.NewNop(),
		Cfg: config.Config{
			Secrets:             config.SecretsConfig{GymConfigSecret: "secret"},
			GymConfigCacheTTL:   time.Minute,
			GateProviderTimeout: time.Second,
		},
		Clock:    clk,
		Repo:     repository.Provide(),
		Registry: gateprovider.NewRegistry(),
	})
	ctx := context.Background()
	_, err := svc.Upsert(ctx, zetkoRequest("https://api.zetko.com/v1"))
	require.NoError(t, err)

	first, err := svc.Resolve(ctx, "gym_001")
	require.NoError(t, err)
	clk.Advance(59 * time.Second)
	cached, err := svc.Resolve(ctx, "gym_001")
	require.NoError(t, err)
	require.Same(t, first, cached)

	clk.Advance(time.Second)
	reloaded, err := svc.Resolve(ctx, "gym_001")
	require.NoError(t, err)
	require.NotSame(t, first, reloaded)
}

func TestResolveMissingConfiguration(t *testing.T) {
	svc, _ := newConfigService(t, "secret")
	_, err := svc.Resolve(context.Background(), "gym_404")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSealerRejectsWrongKey(t *testing.T) {
	sealed, err := newSealer("one").seal(map[string]any{"api_key": "k"})
	require.NoError(t, err)

	_, err = newSealer("two").open(sealed)
	require.Error(t, err)

	values, err := newSealer("one").open(sealed)
	require.NoError(t, err)
	require.Equal(t, "k", values["api_key"])
}
