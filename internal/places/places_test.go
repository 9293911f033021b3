package places

import "testing"

func TestSearchParams_Normalize(t *testing.T) {
	tests := []struct {
		name       string
		in         SearchParams
		wantRadius int
		wantLimit  int
	}{
		{"zero values get defaults", SearchParams{}, DefaultRadiusM, DefaultLimit},
		{"negative values get defaults", SearchParams{RadiusM: -1, Limit: -5}, DefaultRadiusM, DefaultLimit},
		{"explicit values kept", SearchParams{RadiusM: 1000, Limit: 25}, 1000, 25},
		{"limit clamped to max", SearchParams{Limit: 500}, DefaultRadiusM, MaxLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.Normalize()
			if got.RadiusM != tt.wantRadius {
				t.Errorf("RadiusM = %d, want %d", got.RadiusM, tt.wantRadius)
			}
			if got.Limit != tt.wantLimit {
				t.Errorf("Limit = %d, want %d", got.Limit, tt.wantLimit)
			}
		})
	}
}
