package render

import "errors"

// Sentinel errors returned (wrapped) from Render.
var (
	// ErrTextureUnitsExceeded is returned when a draw binds more textures
	// than the device has texture units.
	ErrTextureUnitsExceeded = errors.New("render: texture units exceeded")

	// ErrUnknownShader is returned when a material's model has no built-in
	// shader and the material carries no source of its own.
	ErrUnknownShader = errors.New("render: unknown shader")

	// ErrContextLost is returned by operations other than Render that need
	// a live device.
	ErrContextLost = errors.New("render: context lost")
)
