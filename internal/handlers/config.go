package handlers

import (
	"maps"

	"github.com/danielgtaylor/huma/v2"
	_ "github.com/danielgtaylor/huma/v2/formats/cbor"
)

// NewAPIConfig returns the Huma config shared by the server and route tests. The tracker
// snippet posts JSON as text/plain through navigator.sendBeacon, so text/plain bodies are
// decoded as JSON.
func NewAPIConfig(title, version string) huma.Config {
	config := huma.DefaultConfig(title, version)

	formats := maps.Clone(config.Formats)
	formats["text/plain"] = huma.DefaultJSONFormat
	config.Formats = formats

	return config
}
