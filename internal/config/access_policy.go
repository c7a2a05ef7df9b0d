package config

import (
	"errors"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// AccessPolicy carries the tunable thresholds of gate access and the
// membership lifecycle. Values are reloaded from access_policy.yml.
type AccessPolicy struct {
	QRValidity         time.Duration `mapstructure:"qrValidity"`
	BluetoothMinSignal int           `mapstructure:"bluetoothMinSignal"`
	FaceMatchThreshold float64       `mapstructure:"faceMatchThreshold"`
	FreezeDurationDays int           `mapstructure:"freezeDurationDays"`
	TransferFee        int64         `mapstructure:"transferFee"`
	TransferCurrency   string        `mapstructure:"transferCurrency"`
	AccessLogPageSize  int           `mapstructure:"accessLogPageSize"`
}

func DefaultAccessPolicy() AccessPolicy {
	return AccessPolicy{
		QRValidity:         5 * time.Minute,
		BluetoothMinSignal: -70,
		FaceMatchThreshold: 80,
		FreezeDurationDays: 30,
		TransferFee:        150,
		TransferCurrency:   "AED",
		AccessLogPageSize:  100,
	}
}

type accessPolicyFile struct {
	Access AccessPolicy `mapstructure:"access"`
}

type AccessPolicyHolder struct {
	current atomic.Value // holds AccessPolicy
}

// NewStaticAccessPolicy returns a holder that never reloads.
func NewStaticAccessPolicy(policy AccessPolicy) *AccessPolicyHolder {
	holder := &AccessPolicyHolder{}
	holder.current.Store(policy)
	return holder
}

func NewAccessPolicyHolder(cfg Config, log *zap.Logger) (*AccessPolicyHolder, error) {
	log = log.Named("config.access_policy")
	v := viper.New()

	if path := strings.TrimSpace(cfg.AccessPolicyPath); path != "" {
		v.SetConfigFile(filepath.Clean(path))
	} else {
		v.SetConfigName("access_policy")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/gymgate")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("GYMGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultAccessPolicy()
	v.SetDefault("access.qrValidity", defaults.QRValidity.String())
	v.SetDefault("access.bluetoothMinSignal", defaults.BluetoothMinSignal)
	v.SetDefault("access.faceMatchThreshold", defaults.FaceMatchThreshold)
	v.SetDefault("access.freezeDurationDays", defaults.FreezeDurationDays)
	v.SetDefault("access.transferFee", defaults.TransferFee)
	v.SetDefault("access.transferCurrency", defaults.TransferCurrency)
	v.SetDefault("access.accessLogPageSize", defaults.AccessLogPageSize)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		fileLoaded = false
	}

	policy, err := decodeAccessPolicy(v)
	if err != nil {
		return nil, err
	}

	holder := NewStaticAccessPolicy(policy)
	if !fileLoaded {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodeAccessPolicy(v)
		if err != nil {
			log.Warn("access policy reload ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("access policy reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *AccessPolicyHolder) Get() AccessPolicy {
	if h == nil {
		return DefaultAccessPolicy()
	}
	policy, ok := h.current.Load().(AccessPolicy)
	if !ok {
		return DefaultAccessPolicy()
	}
	return policy
}

// decodeAccessPolicy unmarshals all settings so file values merge with defaults.
func decodeAccessPolicy(v *viper.Viper) (AccessPolicy, error) {
	var file accessPolicyFile
	if err := v.Unmarshal(&file); err != nil {
		return AccessPolicy{}, err
	}
	if err := validateAccessPolicy(file.Access); err != nil {
		return AccessPolicy{}, err
	}
	return file.Access, nil
}

func validateAccessPolicy(p AccessPolicy) error {
	if p.QRValidity <= 0 {
		return errors.New("access.qrValidity must be positive")
	}
	if p.FaceMatchThreshold <= 0 || p.FaceMatchThreshold > 100 {
		return errors.New("access.faceMatchThreshold must be in (0, 100]")
	}
	if p.FreezeDurationDays <= 0 {
		return errors.New("access.freezeDurationDays must be positive")
	}
	if p.TransferFee < 0 {
		return errors.New("access.transferFee cannot be negative")
	}
	if strings.TrimSpace(p.TransferCurrency) == "" {
		return errors.New("access.transferCurrency cannot be empty")
	}
	if p.AccessLogPageSize <= 0 {
		return errors.New("access.accessLogPageSize must be positive")
	}
	return nil
}
