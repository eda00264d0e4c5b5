package app

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/nhle/change-adapter/internal/credential"
	"github.com/nhle/change-adapter/internal/model"
	"github.com/nhle/change-adapter/internal/source/servicenow"
	appsync "github.com/nhle/change-adapter/internal/sync"
)

// Instance pairs a constructed adapter with the configuration it came from.
type Instance struct {
	Config  model.AdapterConfig
	Adapter *servicenow.Adapter
}

// BuildAdapters constructs one adapter per configured instance. Passwords
// missing from the configuration are loaded from the system keyring; an
// instance whose password cannot be resolved is skipped with a warning.
func BuildAdapters(cfg *model.AppConfig, log zerolog.Logger) []Instance {
	instances := make([]Instance, 0, len(cfg.Instances))
	for _, inst := range cfg.Instances {
		a, err := BuildAdapter(inst, log)
		if err != nil {
			log.Warn().Err(err).Str("instance", inst.ID).Msg("skipping instance")
			continue
		}
		instances = append(instances, Instance{Config: inst, Adapter: a})
	}
	return instances
}

// BuildAdapter constructs the adapter of a single instance. Each adapter
// owns its event bus; opts are applied after the logger.
func BuildAdapter(
	inst model.AdapterConfig,
	log zerolog.Logger,
	opts ...servicenow.Option,
) (*servicenow.Adapter, error) {
	pw, err := credential.ResolvePassword(inst.ID, inst.Auth.Password)
	if err != nil {
		return nil, fmt.Errorf("resolving credentials: %w", err)
	}
	inst.Auth.Password = pw

	opts = append([]servicenow.Option{servicenow.WithLogger(log)}, opts...)
	return servicenow.NewAdapter(inst.ID, inst, opts...), nil
}

// RegisterEnabled registers every enabled instance with the poller and
// returns how many were registered.
func RegisterEnabled(p *appsync.Poller, instances []Instance) int {
	registered := 0
	for _, inst := range instances {
		if !inst.Config.Enabled {
			continue
		}
		p.Register(inst.Adapter, time.Duration(inst.Config.HealthIntervalSec)*time.Second)
		registered++
	}
	return registered
}

// Names maps instance IDs to their display names, falling back to the ID.
func Names(instances []Instance) map[string]string {
	names := make(map[string]string, len(instances))
	for _, inst := range instances {
		name := inst.Config.Name
		if name == "" {
			name = inst.Config.ID
		}
		names[inst.Config.ID] = name
	}
	return names
}
