package ingest

// Config holds ingest worker configuration
type Config struct {
	Workers   int // Number of parallel processing goroutines
	QueueSize int // Size of the processing queue

	// EntityID owns proposals created from webhook deliveries
	EntityID string

	Filter FilterOptions
}

const (
	defaultWorkers   = 3
	defaultQueueSize = 256
)
