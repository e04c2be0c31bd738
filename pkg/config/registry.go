package config

// Persistent state keys (Registry)
const (
	KeyDispatchMinDelay    = "dispatch_min_delay"
	KeyDispatchSettleDelay = "dispatch_settle_delay"

	KeyMinPostInterval    = "scheduler_min_post_interval"
	KeyMaxPostInterval    = "scheduler_max_post_interval"
	KeyMinCommentInterval = "scheduler_min_comment_interval"
	KeyMaxCommentInterval = "scheduler_max_comment_interval"
	KeyImagePostChance    = "scheduler_image_post_chance"
	KeyCommentChance      = "scheduler_comment_chance"

	KeyGenerationTimeout = "responder_generation_timeout"
	KeyHistoryLimit      = "responder_history_limit"
)
