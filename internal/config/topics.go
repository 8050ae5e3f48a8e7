package config

const (
	// TopicCheckSubmit is the NSQ topic for asynchronous duplicate checks.
	TopicCheckSubmit = "articles.check"

	// CheckChannel is the consumer channel for the check worker.
	CheckChannel = "detector"
)
