// Package endpoints defines every HTTP operation the fableforge server
// exposes, each paired with the CLI command that calls it.
package endpoints

import (
	"github.com/fableforge/fableforge/internal/api"
)

// All returns all endpoint instances in registration order.
func All() []api.Endpoint {
	return []api.Endpoint{
		// Health endpoints
		&HealthEndpoint{},
		&ReadyEndpoint{},

		// Book endpoints
		&CreateBookEndpoint{},
		&GetBookEndpoint{},
		&ListPagesEndpoint{},

		// Generation endpoints
		&GenerateEndpoint{},
		&GetJobEndpoint{},
		&RegeneratePageEndpoint{},
		&RegenerateCoverEndpoint{},

		// Print composition endpoints
		&ComposeInteriorEndpoint{},
		&ComposeCoverEndpoint{},

		// Runtime settings endpoints
		&ListSettingsEndpoint{},
		&GetSettingEndpoint{},
		&UpdateSettingEndpoint{},
		&ResetSettingEndpoint{},

		// Asset serving
		&AssetEndpoint{},
	}
}
