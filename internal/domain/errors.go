package domain

import "errors"

// Sentinel errors shared across the repository, service and discord layers.
var (
	// ErrGameNotFound means an upstream game search returned zero results.
	ErrGameNotFound = errors.New("game not found")

	// ErrAlreadyMonitored means the destination already monitors the name.
	ErrAlreadyMonitored = errors.New("game already monitored")

	// ErrNotMonitored means the destination does not monitor the name.
	ErrNotMonitored = errors.New("game not monitored")

	// ErrIntervalTooShort rejects poll intervals below the upstream-safe floor.
	ErrIntervalTooShort = errors.New("poll interval below minimum")

	// ErrNoDestination means no destination row exists for the guild.
	ErrNoDestination = errors.New("destination not found")

	// ErrCycleInFlight means a poll cycle is already running.
	ErrCycleInFlight = errors.New("poll cycle already in flight")

	// ErrDeliveryForbidden marks a send rejected for missing permissions.
	ErrDeliveryForbidden = errors.New("delivery forbidden")

	// ErrDeliveryNotFound marks a send against a deleted or unknown channel.
	ErrDeliveryNotFound = errors.New("delivery channel not found")
)
