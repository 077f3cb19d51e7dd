package chat

import (
	"context"

	"github.com/Laisky/errors/v2"
)

// Start primes the global message id counter and launches the persistence
// worker as a background goroutine. Call once at process startup after
// model.InitDB and common.InitRedisClients.
func Start(ctx context.Context) error {
	if err := primeMessageCounter(ctx); err != nil {
		return errors.Wrap(err, "prime chat message counter")
	}
	go RunPersistenceWorker(ctx)
	return nil
}
