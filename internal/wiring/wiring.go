// Package wiring registers all graft nodes for the application.
package wiring

import (
	// Register adapter nodes.
	_ "github.com/AqwozTheDeveloper/crabby/internal/adapters/cas"
	_ "github.com/AqwozTheDeveloper/crabby/internal/adapters/config"
	_ "github.com/AqwozTheDeveloper/crabby/internal/adapters/fs"
	_ "github.com/AqwozTheDeveloper/crabby/internal/adapters/logger"
	_ "github.com/AqwozTheDeveloper/crabby/internal/adapters/manifest"
	_ "github.com/AqwozTheDeveloper/crabby/internal/adapters/registry"
	_ "github.com/AqwozTheDeveloper/crabby/internal/adapters/shell"
	_ "github.com/AqwozTheDeveloper/crabby/internal/adapters/telemetry/progrock"
	_ "github.com/AqwozTheDeveloper/crabby/internal/adapters/workspace"
	// Register app and engine nodes.
	_ "github.com/AqwozTheDeveloper/crabby/internal/app"
	_ "github.com/AqwozTheDeveloper/crabby/internal/engine/installer"
	_ "github.com/AqwozTheDeveloper/crabby/internal/engine/resolver"
)
