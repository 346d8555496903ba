package domain

import (
	"time"
)

// Destination is a Discord guild configured to receive run notifications.
// Rows are never deleted; removing the bot from a guild only flips Enabled off.
type Destination struct {
	GuildID             string
	DisplayName         string
	ChannelID           string // empty until an admin binds a channel
	PingRoleID          string // empty means no ping
	PollIntervalSeconds int
	Enabled             bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Notifiable reports whether the destination can actually receive alerts.
func (d *Destination) Notifiable() bool {
	return d.Enabled && d.ChannelID != ""
}

// MonitoredGame links a destination to a game under the name the operator
// typed. GameID stays empty until the directory resolves the name upstream;
// unresolved entries are excluded from polling but stay visible so the
// operator can re-resolve them.
type MonitoredGame struct {
	ID             string // nanoid
	GuildID        string
	RawName        string
	NormalizedName string
	GameID         string
	CreatedAt      time.Time
}

// Game is a verified upstream game record.
type Game struct {
	ID           string
	Name         string
	Abbreviation string
	ReleaseYear  int
	PlayerCount  int
	Weblink      string
	VerifiedAt   time.Time
}

// GameCandidate is one search result annotated against the searched term.
type GameCandidate struct {
	Game      Game `json:"game"`
	Exact     bool `json:"exact"`
	Substring bool `json:"substring"`
}

// CachedSearch is a persisted upstream search result set for one case-folded
// term. Candidate order is the upstream result order and must be preserved.
type CachedSearch struct {
	Term       string
	Candidates []GameCandidate
	SearchedAt time.Time
}

// SeenRun records a run id that has been announced to at least one destination.
type SeenRun struct {
	RunID  string
	GameID string
	SeenAt time.Time
}

// GameTarget is one entry of the per-cycle poll target set: a resolved game id
// monitored by at least one enabled destination with a bound channel.
type GameTarget struct {
	GameID string
	Name   string
}

// RunAlert is the destination-agnostic notification payload built from a run.
// Every field is already resolved to display form; missing data renders as
// "Unknown" rather than failing the alert.
type RunAlert struct {
	RunID        string
	GameID       string
	GameName     string
	Runner       string
	Category     string
	Time         string
	Platform     string
	Submitted    string
	Weblink      string
	VideoURL     string
	ThumbnailURL string
}

// CycleStats summarizes one completed poll cycle.
type CycleStats struct {
	CycleID   string
	StartedAt time.Time
	Duration  time.Duration
	Games     int
	RunsFound int
	Announced int
	Failures  int
}
