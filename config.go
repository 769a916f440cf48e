package splat

// Default tuning values (spec.md §6). Combined, Sigma and AABBPadding give
// roughly 95% Gaussian energy capture inside the projected AABB.
const (
	DefaultTileSize          = 16
	DefaultAABBPaddingFactor = 1.5
	DefaultSigma             = 0.5
	DefaultEarlyAlphaCutoff  = 0.99
)

// MinTileSize is the smallest tile size this implementation accepts;
// smaller tiles make atomic contention in the tile counter dominate.
const MinTileSize = 4

// Config holds the tunable parameters of the rasterisation pipeline
// (spec.md §6). The zero value is not valid; use DefaultConfig or let
// NewRenderer apply defaults to unset fields.
type Config struct {
	// TileSize is the square tile dimension in pixels used for binning.
	// The current pipeline compiles its tile-counter, tile-filler, and
	// rasteriser shaders against a fixed 16px tile (internal/gpu's
	// TileSizeDefault), so this field is validated and clamped like any
	// other setting but does not yet change GPU-side behaviour; it is
	// carried on Config so a future per-size shader build can read it
	// without an API change.
	TileSize int

	// AABBPaddingFactor multiplies screen_radius to form each splat's
	// screen-space bounding box.
	AABBPaddingFactor float32

	// Sigma is the Gaussian falloff standard deviation, in units of
	// normalized distance from splat centre to screen_radius.
	Sigma float32

	// EarlyAlphaCutoff is the accumulated alpha at which the rasteriser
	// stops walking a tile's splat list.
	EarlyAlphaCutoff float32

	// BackgroundColour is the fixed RGB used for the final opaque
	// composite and for empty/off-screen pixels.
	BackgroundColour [3]float32

	// DisableEarlyTermination, when true, forces every tile walk to
	// completion, ignoring EarlyAlphaCutoff.
	DisableEarlyTermination bool
}

// DefaultConfig returns the spec.md §6 default tuning values.
func DefaultConfig() Config {
	return Config{
		TileSize:          DefaultTileSize,
		AABBPaddingFactor: DefaultAABBPaddingFactor,
		Sigma:             DefaultSigma,
		EarlyAlphaCutoff:  DefaultEarlyAlphaCutoff,
		BackgroundColour:  [3]float32{0, 0, 0},
	}
}

// withDefaults fills zero-valued fields with DefaultConfig's values and
// clamps TileSize to a sane minimum. It never mutates a fully-specified
// Config.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.TileSize <= 0 {
		c.TileSize = d.TileSize
	}
	if c.TileSize < MinTileSize {
		c.TileSize = MinTileSize
	}
	if c.AABBPaddingFactor <= 0 {
		c.AABBPaddingFactor = d.AABBPaddingFactor
	}
	if c.Sigma <= 0 {
		c.Sigma = d.Sigma
	}
	if c.EarlyAlphaCutoff <= 0 {
		c.EarlyAlphaCutoff = d.EarlyAlphaCutoff
	}
	return c
}
