// Package appctx holds the process-wide collaborators that HTTP handlers
// need but that don't belong on every function signature: the fetcher and
// calculator clients, and the external-system stubs. Package-level
// singletons wired once in main (the chat.Default/eventhub.Default
// convention) instead of a constructor-injected struct, since gin
// handlers are referenced directly as bare functions and have no instance
// to carry dependencies on.
package appctx

import (
	"github.com/aquareto/aquareto-server/calculator"
	"github.com/aquareto/aquareto-server/external"
	"github.com/aquareto/aquareto-server/fetcher"
)

var (
	// Fetcher is the shared external fetcher client. Set once in main
	// before the router starts serving.
	Fetcher *fetcher.Fetcher

	// Calculator is the shared difficulty/performance RPC client.
	Calculator *calculator.Client

	// Mailer sends verification, reset, and notification emails.
	Mailer external.Mailer = external.SMTPMailer{}

	// GeoLookup resolves a client IP to a country code at registration.
	GeoLookup external.GeoLookup = external.SubnetGeoLookup{}

	// FileStorage backs avatar/cover/replay uploads.
	FileStorage external.FileStorage = external.NewMemoryFileStorage()

	// BBCode renders user profile/comment markup.
	BBCode external.BBCodeRenderer = external.PlainBBCodeRenderer{}

	// Plugins is the startup-time id -> handler registry.
	Plugins = external.NewPluginRegistry()
)

// Init builds the process-wide Fetcher/Calculator clients. Call once at
// startup before the router starts serving.
func Init() {
	Fetcher = fetcher.New()
	Calculator = calculator.NewFromConfig()
}
