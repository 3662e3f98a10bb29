package config

import (
	"os"
	"sync"

	"gopkg.in/yaml.v2"
)

// TenantsConfig holds map of tenant overrides
type TenantsConfig struct {
	Tenants map[string]Config `yaml:"tenants"`
}

// Manager handles dynamic configuration resolution
type Manager struct {
	globalConfig  *Config
	tenantConfigs map[string]Config
	mu            sync.RWMutex
}

// NewManager loads both master and tenant configs
func NewManager(masterPath, tenantsPath string) (*Manager, error) {
	master, err := LoadConfig(masterPath)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(tenantsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return &Manager{globalConfig: master, tenantConfigs: make(map[string]Config)}, nil
		}
		return nil, err
	}
	defer f.Close()

	var tc TenantsConfig
	if err := yaml.NewDecoder(f).Decode(&tc); err != nil {
		return nil, err
	}

	return &Manager{
		globalConfig:  master,
		tenantConfigs: tc.Tenants,
	}, nil
}

// Get returns the effective config for a tenant, merging tenant overrides
// on top of the global config. Per-tenant overrides let a customer tighten
// dispatcher rate limits or SAR confidence thresholds without a global
// config reload.
func (m *Manager) Get(tenantID string) *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	effective := *m.globalConfig

	override, ok := m.tenantConfigs[tenantID]
	if !ok {
		return &effective
	}

	if override.Dispatcher.GlobalCapacity != 0 || override.Dispatcher.GlobalRefillPerSec != 0 {
		effective.Dispatcher = override.Dispatcher
	}
	if override.SAR.ConfidenceThreshold != 0 || override.SAR.MaxIterationsPerType != 0 {
		effective.SAR = override.SAR
	}
	if override.Compliance.DefaultLocale != "" {
		effective.Compliance = override.Compliance
	}
	if override.Router.CostBudgetUSD != 0 {
		effective.Router = override.Router
	}

	return &effective
}
