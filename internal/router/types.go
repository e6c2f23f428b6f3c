package router

// BufferStats contains buffer statistics.
type BufferStats struct {
	Count         int
	Capacity      int
	Peak          int
	TotalReceived int64
	TotalSent     int64
	ResizeCount   int
}

// RouterConfig holds configuration for a Router.
type RouterConfig struct {
	// Initial capacity of every subscriber stream. Default: 256
	SubscriberBufferSize int
}

// DefaultRouterConfig returns default configuration.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		SubscriberBufferSize: 256,
	}
}

// RouterStats contains runtime statistics.
type RouterStats struct {
	Received    int64
	Handled     int64
	Subscribers []BufferStats
}
