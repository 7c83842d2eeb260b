package metadata

/**
 * @brief The configuration of a render graph.
 * Used as a serialization target.
 */
type RenderGraphConfig struct {
	/** @brief The Name of the graph. */
	Name string `toml:"name"`
	/** @brief The passes, in execution order. */
	Passes []RenderPassConfig `toml:"pass"`
}

type RenderPassConfig struct {
	/** @brief The Name of this pass. Unique within the graph. */
	Name string `toml:"name"`
	/** @brief One of graphics, compute, clear, present. */
	Kind string `toml:"kind"`
	/** @brief Name of the execute callback registered by the application. Optional. */
	Callback string `toml:"callback"`
	/** @brief The clear colour used by clear passes. */
	ClearColour [4]float32 `toml:"clear_colour"`
	/** @brief The typed resource slots of this pass. */
	Resources []PassResourceConfig `toml:"resource"`
	/** @brief Techniques accepted by graphics passes. */
	Techniques []TechniqueConfig `toml:"technique"`
}

type PassResourceConfig struct {
	/** @brief The Name of the slot. Unique within the pass. */
	Name string `toml:"name"`
	/** @brief Either buffer or texture. */
	Kind string `toml:"kind"`
	/** @brief The state required before the pass executes, e.g. "render_target". Read states may be joined with '|'. */
	State string `toml:"state"`
	/** @brief A single subresource. Nil targets every subresource. */
	Subresource *uint32 `toml:"subresource"`
	/**
	 * @brief The producer of this slot: "pass.slot" for another pass' slot
	 * or "@name" for a supplier registered by the application.
	 */
	From string `toml:"from"`
}

type TechniqueConfig struct {
	/** @brief The Name of the technique. Unique within the pass. */
	Name string `toml:"name"`
	/** @brief Channel mask matched against the filter passed on submission. */
	Channels uint32 `toml:"channels"`
	/** @brief Name of the pipeline state registered by the application. */
	Pipeline string `toml:"pipeline"`
}
