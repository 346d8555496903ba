package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/aCatWithSchizophrenia/SRCNotifications/internal/api"
	"github.com/aCatWithSchizophrenia/SRCNotifications/internal/constants"
	"github.com/aCatWithSchizophrenia/SRCNotifications/internal/domain"
)

// buildAlert resolves every presentation field of a run into display form.
// Lookups degrade to fallbacks instead of failing the alert.
func (s *NotifierService) buildAlert(ctx context.Context, run *api.RunResource, gameID, gameName string) *domain.RunAlert {
	runner, thumbnail := s.resolveRunner(ctx, run.Players)

	elapsed := "Unknown"
	if run.Times.PrimaryT > 0 {
		elapsed = FormatDuration(run.Times.PrimaryT)
	}

	weblink := run.Weblink
	if weblink == "" {
		weblink = "https://www.speedrun.com"
	}

	var videoURL string
	if run.Videos != nil && len(run.Videos.Links) > 0 {
		videoURL = run.Videos.Links[0].URI
	}

	return &domain.RunAlert{
		RunID:        run.ID,
		GameID:       gameID,
		GameName:     gameName,
		Runner:       runner,
		Category:     s.resolveCategory(ctx, run),
		Time:         elapsed,
		Platform:     s.resolvePlatform(ctx, run),
		Submitted:    FormatSubmitted(run.Submitted),
		Weblink:      weblink,
		VideoURL:     videoURL,
		ThumbnailURL: thumbnail,
	}
}

// resolveRunner returns the display name and avatar URL of the first
// player. Guest names are used verbatim; registered users are resolved via
// a user lookup with the raw id as fallback.
func (s *NotifierService) resolveRunner(ctx context.Context, players []api.RunPlayer) (string, string) {
	if len(players) == 0 {
		return "Unknown", ""
	}

	p := players[0]
	switch {
	case p.Rel == "guest":
		if p.Name != "" {
			return p.Name, ""
		}
		return "Unknown", ""
	case p.Rel == "user" && p.ID != "":
		apiCtx, cancel := context.WithTimeout(ctx, constants.ExternalAPITimeout)
		defer cancel()

		user, err := s.src.GetUser(apiCtx, p.ID)
		if err != nil {
			s.logger.Warn().Err(err).Str("user_id", p.ID).Msg("user lookup failed")
			return p.ID, ""
		}
		name := user.Data.Names.International
		if name == "" {
			name = p.ID
		}
		return name, user.Data.Assets.Image.URI
	case p.Name != "":
		return p.Name, ""
	}
	return "Unknown", ""
}

// resolveCategory builds the "Category - Level | Variable: Choice" line.
// Embedded data is preferred; bare ids from a summary record are looked up
// individually, and any piece that stays unknown renders as such.
func (s *NotifierService) resolveCategory(ctx context.Context, run *api.RunResource) string {
	categoryName := "Unknown Category"
	categoryID := ""
	if run.Category.Data != nil {
		categoryID = run.Category.Data.ID
		if run.Category.Data.Name != "" {
			categoryName = run.Category.Data.Name
		}
	} else if run.Category.ID != "" {
		categoryID = run.Category.ID
		apiCtx, cancel := context.WithTimeout(ctx, constants.ExternalAPITimeout)
		cat, err := s.src.GetCategory(apiCtx, run.Category.ID)
		cancel()
		if err != nil {
			s.logger.Debug().Err(err).Str("category_id", run.Category.ID).Msg("category lookup failed")
		} else if cat.Data.Name != "" {
			categoryName = cat.Data.Name
		}
	}

	var levelName string
	if run.Level.Data != nil {
		levelName = run.Level.Data.Name
	} else if run.Level.ID != "" {
		apiCtx, cancel := context.WithTimeout(ctx, constants.ExternalAPITimeout)
		lvl, err := s.src.GetLevel(apiCtx, run.Level.ID)
		cancel()
		if err != nil {
			s.logger.Debug().Err(err).Str("level_id", run.Level.ID).Msg("level lookup failed")
		} else {
			levelName = lvl.Data.Name
		}
	}

	variables := run.Variables.Data
	if variables == nil && categoryID != "" {
		apiCtx, cancel := context.WithTimeout(ctx, constants.ExternalAPITimeout)
		vars, err := s.src.ListCategoryVariables(apiCtx, categoryID)
		cancel()
		if err != nil {
			s.logger.Debug().Err(err).Str("category_id", categoryID).Msg("variables lookup failed")
		} else {
			variables = vars.Data
		}
	}

	var details []string
	for _, v := range variables {
		valueID, ok := run.Values[v.ID]
		if !ok || valueID == "" {
			continue
		}
		label := valueID
		if val, ok := v.Values.Values[valueID]; ok && val.Label != "" {
			label = val.Label
		}
		name := v.Name
		if name == "" {
			name = "Unknown"
		}
		details = append(details, name+": "+label)
	}

	result := categoryName
	if levelName != "" {
		result += " - " + levelName
	}
	if len(details) > 0 {
		result += " | " + strings.Join(details, " | ")
	}
	return result
}

// resolvePlatform prefers the embedded platform name. A bare system value
// long enough to be an opaque id is looked up; shorter values are already
// names and pass through.
func (s *NotifierService) resolvePlatform(ctx context.Context, run *api.RunResource) string {
	if run.Platform.Data != nil && run.Platform.Data.Name != "" {
		return run.Platform.Data.Name
	}

	sys := run.System.Platform
	if sys == "" {
		return "Unknown"
	}
	if len(sys) >= 6 {
		apiCtx, cancel := context.WithTimeout(ctx, constants.ExternalAPITimeout)
		defer cancel()

		platform, err := s.src.GetPlatform(apiCtx, sys)
		if err == nil && platform.Data.Name != "" {
			return platform.Data.Name
		}
		s.logger.Debug().Str("platform_id", sys).Msg("platform lookup failed, using raw value")
	}
	return sys
}

// FormatDuration renders elapsed seconds as H:MM:SS.mmm, M:SS.mmm or S.mmm
// depending on magnitude.
func FormatDuration(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	ms := int64(math.Round(seconds * 1000))

	h := ms / 3600000
	m := (ms % 3600000) / 60000
	s := (ms % 60000) / 1000
	frac := ms % 1000

	switch {
	case h > 0:
		return fmt.Sprintf("%d:%02d:%02d.%03d", h, m, s, frac)
	case m > 0:
		return fmt.Sprintf("%d:%02d.%03d", m, s, frac)
	default:
		return fmt.Sprintf("%d.%03d", s, frac)
	}
}

// FormatSubmitted renders the upstream submission timestamp; values that do
// not parse pass through verbatim.
func FormatSubmitted(submitted string) string {
	if submitted == "" {
		return "Unknown"
	}
	t, err := time.Parse(time.RFC3339, submitted)
	if err != nil {
		return submitted
	}
	return t.UTC().Format("2006-01-02 15:04 UTC")
}
