package cache

import (
	"testing"
	"time"
)

func TestDefaultConfigValues(t *testing.T) {
	cfg := defaultConfig[string, int](1024, time.Minute, 4)
	if cfg.initialTableCap != defaultInitialTableCap {
		t.Errorf("initialTableCap = %d, want %d", cfg.initialTableCap, defaultInitialTableCap)
	}
	if !cfg.autoResize {
		t.Errorf("autoResize = false, want true by default")
	}
	if cfg.evictionPolicy != EvictionPolicyDefault {
		t.Errorf("evictionPolicy = %v, want EvictionPolicyDefault", cfg.evictionPolicy)
	}
	if cfg.weightFn(42) <= 0 {
		t.Errorf("default weightFn must return a positive weight")
	}
}

func TestWithInitialTableSizeIgnoresZero(t *testing.T) {
	cfg := defaultConfig[string, int](1024, time.Minute, 4)
	WithInitialTableSize[string, int](0)(cfg)
	if cfg.initialTableCap != defaultInitialTableCap {
		t.Errorf("WithInitialTableSize(0) changed initialTableCap to %d, want unchanged default", cfg.initialTableCap)
	}
	WithInitialTableSize[string, int](256)(cfg)
	if cfg.initialTableCap != 256 {
		t.Errorf("initialTableCap = %d, want 256", cfg.initialTableCap)
	}
}

func TestWithAutoResizeToggles(t *testing.T) {
	cfg := defaultConfig[string, int](1024, time.Minute, 4)
	WithAutoResize[string, int](false)(cfg)
	if cfg.autoResize {
		t.Errorf("autoResize still true after WithAutoResize(false)")
	}
}

func TestWithEvictionPolicySetsPolicy(t *testing.T) {
	cfg := defaultConfig[string, int](1024, time.Minute, 4)
	WithEvictionPolicy[string, int](EvictionPolicyTTL)(cfg)
	if cfg.evictionPolicy != EvictionPolicyTTL {
		t.Errorf("evictionPolicy = %v, want EvictionPolicyTTL", cfg.evictionPolicy)
	}
}

func TestApplyOptionsRejectsInvalidShards(t *testing.T) {
	cfg := defaultConfig[string, int](1024, time.Minute, 3)
	if err := applyOptions(cfg, nil); err == nil {
		t.Errorf("applyOptions accepted a non-power-of-two shard count")
	}
}

func TestApplyOptionsDerivesRotationStep(t *testing.T) {
	cfg := defaultConfig[string, int](1024, 4*time.Millisecond, 4)
	if err := applyOptions(cfg, nil); err != nil {
		t.Fatalf("applyOptions: %v", err)
	}
	if cfg.rotationStep <= 0 {
		t.Errorf("rotationStep = %v, want > 0", cfg.rotationStep)
	}
}

func TestWithWeightFnOverridesDefault(t *testing.T) {
	cfg := defaultConfig[string, int](1024, time.Minute, 4)
	WithWeightFn[string, int](func(v int) int { return v * 2 })(cfg)
	if got := cfg.weightFn(5); got != 10 {
		t.Errorf("weightFn(5) = %d, want 10", got)
	}
}

func TestWithWeightFnIgnoresNil(t *testing.T) {
	cfg := defaultConfig[string, int](1024, time.Minute, 4)
	before := cfg.weightFn
	WithWeightFn[string, int](nil)(cfg)
	if cfg.weightFn(3) != before(3) {
		t.Errorf("WithWeightFn(nil) replaced the default weight function")
	}
}
