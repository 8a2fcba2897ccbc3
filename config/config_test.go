package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestLoadDefaults(t *testing.T) {
	v := viper.New()
	v.SetDefault("HOUND_DATA_DIR", "/tmp/hound")
	v.SetDefault("OPENAI_MODEL", "gpt-4o-mini")
	v.SetDefault("AGENT_STEP_TIMEOUT", "30s")

	c := load(v)

	if c.DatabasePath != "/tmp/hound/hound.sqlite" {
		t.Errorf("DatabasePath = %q", c.DatabasePath)
	}
	if c.OpenAIClassifierModel != "gpt-4o-mini" {
		t.Errorf("classifier model should fall back to OPENAI_MODEL, got %q", c.OpenAIClassifierModel)
	}
	if c.AgentStepTimeout != 30*time.Second {
		t.Errorf("AgentStepTimeout = %v", c.AgentStepTimeout)
	}
}

func TestGetUsesEnvironment(t *testing.T) {
	v := newViper()
	if got := v.GetInt("AGENT_MAX_STEPS"); got != 5 {
		t.Errorf("default AGENT_MAX_STEPS = %d, want 5", got)
	}
	if got := v.GetFloat64("CONFIDENCE_THRESHOLD"); got != 0.6 {
		t.Errorf("default CONFIDENCE_THRESHOLD = %v, want 0.6", got)
	}
}

func TestIsDevelopment(t *testing.T) {
	tests := []struct {
		env  string
		want bool
	}{
		{"development", true},
		{"", true},
		{"production", false},
		{"PRODUCTION", false},
	}
	for _, tt := range tests {
		c := &Config{Env: tt.env}
		if got := c.IsDevelopment(); got != tt.want {
			t.Errorf("IsDevelopment(%q) = %v, want %v", tt.env, got, tt.want)
		}
	}
}
