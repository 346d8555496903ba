package constants

import "time"

const (
	// MinPollIntervalSeconds is the floor for both the global cycle period and
	// per-destination interval settings; anything lower risks upstream rate
	// limiting.
	MinPollIntervalSeconds = 30
	DefaultPollIntervalSec = 60
)

const (
	ExternalAPITimeout = 10 * time.Second
	DatabaseTimeout    = 5 * time.Second
	CycleTimeout       = 5 * time.Minute
	// InteractionTimeout bounds command handlers that call the upstream API.
	InteractionTimeout = 30 * time.Second
)

const (
	// RunPageSize is the upstream page cap for the pending-runs query.
	RunPageSize = 20
	// MaxRunPages bounds cursor-style pagination within one game and cycle.
	MaxRunPages = 5
	// SearchMaxResults bounds a game-name search.
	SearchMaxResults = 10
	// GameFetchConcurrency bounds parallel per-game fetches inside a cycle.
	GameFetchConcurrency = 4
)

const (
	DBMaxOpenConns    = 10
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 1 * time.Hour
	DBMaxIdleTime     = 10 * time.Minute
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	// DisambiguationCandidates caps the choices offered for an ambiguous name.
	DisambiguationCandidates = 5
	// DisambiguationTimeout is how long an operator has to pick a candidate.
	DisambiguationTimeout = 60 * time.Second
	// RecentRunsKept is the size of the in-memory announced-runs ring.
	RecentRunsKept = 20
)
