package tracing

import (
	"strings"
	"testing"
)

func TestCreateSampler(t *testing.T) {
	tests := []struct {
		name     string
		strategy string
		ratio    float64
		wantErr  string
		desc     string
	}{
		{name: "always", strategy: SamplerAlways, desc: "AlwaysOnSampler"},
		{name: "default", strategy: "", desc: "AlwaysOnSampler"},
		{name: "never", strategy: SamplerNever, desc: "AlwaysOffSampler"},
		{name: "ratio", strategy: SamplerRatio, ratio: 0.25, desc: "TraceIDRatioBased{0.25}"},
		{name: "ratio too high", strategy: SamplerRatio, ratio: 1.5, wantErr: "between 0.0 and 1.0"},
		{name: "ratio negative", strategy: SamplerRatio, ratio: -0.1, wantErr: "between 0.0 and 1.0"},
		{name: "unknown", strategy: "sometimes", wantErr: "unknown sampler strategy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sampler, err := createSampler(tt.strategy, tt.ratio)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("createSampler() error = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("createSampler() error = %v", err)
			}
			desc := sampler.Description()
			if !strings.HasPrefix(desc, "ParentBased{root:"+tt.desc) {
				t.Errorf("Description() = %q, want ParentBased wrapping %s", desc, tt.desc)
			}
		})
	}
}
