package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/dojo-hub/dojo-progress/internal/application/query"
	"github.com/dojo-hub/dojo-progress/internal/domain/leaderboard"
	"github.com/dojo-hub/dojo-progress/internal/domain/student"
	"github.com/dojo-hub/dojo-progress/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// WARM LEADERBOARD JOB
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardReader is the read-through leaderboard query.
type LeaderboardReader interface {
	Handle(ctx context.Context, q query.GetAchievementLeaderboardQuery) (*query.GetAchievementLeaderboardResult, error)
}

// WarmLeaderboardJob pre-computes the default leaderboards of every
// organization so the first reader after an invalidation hits the cache.
type WarmLeaderboardJob struct {
	students student.Repository
	reader   LeaderboardReader
	log      *logger.Logger
	config   WarmLeaderboardConfig
}

// WarmLeaderboardConfig contains configuration for the warm-up.
type WarmLeaderboardConfig struct {
	Timeframes []leaderboard.Timeframe
	Limit      int
	Timeout    time.Duration
}

// DefaultWarmLeaderboardConfig warms the week, month and all-time boards.
func DefaultWarmLeaderboardConfig() WarmLeaderboardConfig {
	return WarmLeaderboardConfig{
		Timeframes: []leaderboard.Timeframe{leaderboard.TimeframeWeek, leaderboard.TimeframeMonth, leaderboard.TimeframeAll},
		Limit:      query.DefaultLeaderboardLimit,
		Timeout:    5 * time.Minute,
	}
}

// NewWarmLeaderboardJob creates the job.
func NewWarmLeaderboardJob(students student.Repository, reader LeaderboardReader, log *logger.Logger, config WarmLeaderboardConfig) *WarmLeaderboardJob {
	if log == nil {
		log = logger.Nop()
	}
	if len(config.Timeframes) == 0 {
		config.Timeframes = DefaultWarmLeaderboardConfig().Timeframes
	}
	return &WarmLeaderboardJob{
		students: students,
		reader:   reader,
		log:      log.With(logger.JobName("warm_leaderboard")),
		config:   config,
	}
}

func (j *WarmLeaderboardJob) Name() string { return "warm_leaderboard" }

func (j *WarmLeaderboardJob) Description() string {
	return "Pre-computes cached achievement leaderboards per organization"
}

// Run queries every (organization, timeframe) pair. Individual failures are
// joined into the returned error after all pairs were attempted.
func (j *WarmLeaderboardJob) Run(ctx context.Context) error {
	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	orgs, err := j.students.ListOrganizationIDs(ctx)
	if err != nil {
		return err
	}

	var errs []error
	warmed, hits := 0, 0
	for _, orgID := range orgs {
		for _, tf := range j.config.Timeframes {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := j.reader.Handle(ctx, query.GetAchievementLeaderboardQuery{
				OrganizationID: orgID,
				Timeframe:      tf,
				Limit:          j.config.Limit,
			})
			if err != nil {
				j.log.Warn("leaderboard warm-up failed",
					logger.OrganizationID(orgID),
					logger.String("timeframe", string(tf)),
					logger.Err(err),
				)
				errs = append(errs, err)
				continue
			}
			if res.FromCache {
				hits++
			} else {
				warmed++
			}
		}
	}

	j.log.Info("leaderboards warmed",
		logger.Count("organizations", len(orgs)),
		logger.Count("computed", warmed),
		logger.Count("already_cached", hits),
	)
	return errors.Join(errs...)
}
