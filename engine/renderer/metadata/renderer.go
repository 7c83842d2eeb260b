package metadata

/** @brief The default number of frames the CPU may record ahead of the GPU. */
const DefaultFramesInFlight uint8 = 3

/** @brief Top level engine configuration, loaded from a TOML file. */
type EngineConfig struct {
	/** @brief The name of the application */
	ApplicationName string `toml:"application_name"`
	/** @brief One of debug, info, warn, error. */
	LogLevel string `toml:"log_level"`
	/** @brief The renderer configuration. */
	Renderer RendererConfig `toml:"renderer"`
}

type RendererConfig struct {
	/** @brief Number of frame slots in the frame ring. */
	FramesInFlight uint8 `toml:"frames_in_flight"`
	/**
	 * @brief How long NewFrame waits on a fence before giving up, in
	 * milliseconds. 0 waits forever.
	 */
	FenceTimeoutMS uint32 `toml:"fence_timeout_ms"`
	/** @brief The number of goroutines recording command buffers in parallel. */
	Workers int `toml:"workers"`
	/** @brief Path of the render graph description. */
	GraphPath string `toml:"graph"`
	/** @brief Rebuild the render graph when its description changes on disk. */
	HotReload bool `toml:"hot_reload"`
	/** @brief Stop after this many frames. 0 runs until quit. */
	MaxFrames uint64 `toml:"max_frames"`
	/** @brief Size of the back buffer. */
	Width  uint32 `toml:"width"`
	Height uint32 `toml:"height"`
}

// Defaults fills every zero value with its default.
func (c *EngineConfig) Defaults() {
	if c.ApplicationName == "" {
		c.ApplicationName = "framegraph"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Renderer.FramesInFlight == 0 {
		c.Renderer.FramesInFlight = DefaultFramesInFlight
	}
	if c.Renderer.Workers <= 0 {
		c.Renderer.Workers = 1
	}
	if c.Renderer.Width == 0 {
		c.Renderer.Width = 1280
	}
	if c.Renderer.Height == 0 {
		c.Renderer.Height = 720
	}
}
