package splat

import "testing"

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig()
	if c.TileSize != DefaultTileSize {
		t.Errorf("TileSize = %d, want %d", c.TileSize, DefaultTileSize)
	}
	if c.AABBPaddingFactor != DefaultAABBPaddingFactor {
		t.Errorf("AABBPaddingFactor = %v, want %v", c.AABBPaddingFactor, DefaultAABBPaddingFactor)
	}
	if c.Sigma != DefaultSigma {
		t.Errorf("Sigma = %v, want %v", c.Sigma, DefaultSigma)
	}
	if c.EarlyAlphaCutoff != DefaultEarlyAlphaCutoff {
		t.Errorf("EarlyAlphaCutoff = %v, want %v", c.EarlyAlphaCutoff, DefaultEarlyAlphaCutoff)
	}
}

func TestConfigWithDefaults(t *testing.T) {
	tests := []struct {
		name     string
		in       Config
		wantTile int
	}{
		{"zero value gets every default", Config{}, DefaultTileSize},
		{"explicit tile size kept", Config{TileSize: 32}, 32},
		{"below minimum clamped up", Config{TileSize: 1}, MinTileSize},
		{"negative tile size replaced by default", Config{TileSize: -8}, DefaultTileSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.withDefaults()
			if got.TileSize != tt.wantTile {
				t.Errorf("TileSize = %d, want %d", got.TileSize, tt.wantTile)
			}
			if got.AABBPaddingFactor <= 0 {
				t.Error("AABBPaddingFactor should never be zero after withDefaults")
			}
			if got.Sigma <= 0 {
				t.Error("Sigma should never be zero after withDefaults")
			}
			if got.EarlyAlphaCutoff <= 0 {
				t.Error("EarlyAlphaCutoff should never be zero after withDefaults")
			}
		})
	}
}

func TestConfigWithDefaultsPreservesExplicitValues(t *testing.T) {
	c := Config{
		TileSize:          8,
		AABBPaddingFactor: 2.0,
		Sigma:             0.75,
		EarlyAlphaCutoff:  0.95,
		BackgroundColour:  [3]float32{0.1, 0.2, 0.3},
	}
	got := c.withDefaults()
	if got != c {
		t.Errorf("withDefaults() mutated a fully-specified Config: got %+v, want %+v", got, c)
	}
}
