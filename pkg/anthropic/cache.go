package anthropic

// BuildCachedSystemBlocks constructs system content blocks with a cache
// breakpoint set to a 1-hour TTL. The lookup prompts are fixed strings
// reused across many requests, so repeated calls hit the warm cache.
func BuildCachedSystemBlocks(text string) []SystemBlock {
	return []SystemBlock{
		{
			Text: text,
			CacheControl: &CacheControl{
				TTL: "1h",
			},
		},
	}
}
