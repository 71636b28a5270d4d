package testsupport

import (
	"testing"

	"showseed/internal/config"
	"showseed/internal/engine"
	"showseed/internal/engine/enginetest"
	"showseed/internal/logging"
)

// NewFakeEngine returns a fake engine and a Holder that builds it with the
// settings derived from cfg.
func NewFakeEngine(t testing.TB, cfg *config.Config) (*enginetest.Engine, *engine.Holder) {
	t.Helper()
	fake := enginetest.New()
	holder := engine.NewHolder(fake.Factory(), engine.SettingsFromConfig(cfg, nil), logging.NewNop())
	t.Cleanup(holder.Discard)
	return fake, holder
}
