// Package jobs contains the worker's scheduled jobs.
package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dojo-hub/dojo-progress/internal/application/saga"
	"github.com/dojo-hub/dojo-progress/internal/domain/student"
	"github.com/dojo-hub/dojo-progress/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// UNLOCK SWEEP JOB
// ══════════════════════════════════════════════════════════════════════════════

// AchievementChecker runs the unlock flow for one student.
type AchievementChecker interface {
	Execute(ctx context.Context, input saga.AchievementCheckInput) (*saga.AchievementFlowResult, error)
}

// OrganizationGate decides per organization whether the sweep runs there.
type OrganizationGate func(organizationID string) bool

// UnlockSweepJob walks every active student and grants achievements whose
// progress has reached 100. It catches unlocks that no event triggered,
// e.g. after a bulk attendance import or a newly created achievement.
type UnlockSweepJob struct {
	students student.Repository
	checker  AchievementChecker
	gate     OrganizationGate
	log      *logger.Logger
	config   UnlockSweepConfig

	lastStats atomic.Pointer[SweepStats]
}

// UnlockSweepConfig contains configuration for the sweep.
type UnlockSweepConfig struct {
	// Concurrency is the number of students checked in parallel.
	Concurrency int

	// Timeout bounds the whole sweep.
	Timeout time.Duration
}

// DefaultUnlockSweepConfig returns sensible defaults.
func DefaultUnlockSweepConfig() UnlockSweepConfig {
	return UnlockSweepConfig{
		Concurrency: 4,
		Timeout:     20 * time.Minute,
	}
}

// SweepStats contains statistics from a sweep run.
type SweepStats struct {
	StartedAt            time.Time
	Duration             time.Duration
	Organizations        int
	SkippedOrganizations int
	StudentsChecked      int
	StudentsFailed       int
	AchievementsUnlocked int
	XPAwarded            int
}

// NewUnlockSweepJob creates the job. A nil gate enables every organization.
func NewUnlockSweepJob(students student.Repository, checker AchievementChecker, gate OrganizationGate, log *logger.Logger, config UnlockSweepConfig) *UnlockSweepJob {
	if log == nil {
		log = logger.Nop()
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}
	if gate == nil {
		gate = func(string) bool { return true }
	}
	return &UnlockSweepJob{
		students: students,
		checker:  checker,
		gate:     gate,
		log:      log.With(logger.JobName("unlock_sweep")),
		config:   config,
	}
}

func (j *UnlockSweepJob) Name() string { return "unlock_sweep" }

func (j *UnlockSweepJob) Description() string {
	return "Grants achievements whose progress reached 100 for every active student"
}

// Run sweeps all organizations. A failure for one student is logged and
// counted; only listing failures and cancellation fail the run.
func (j *UnlockSweepJob) Run(ctx context.Context) error {
	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	stats := &SweepStats{StartedAt: time.Now()}
	defer func() {
		stats.Duration = time.Since(stats.StartedAt)
		j.lastStats.Store(stats)
	}()

	orgs, err := j.students.ListOrganizationIDs(ctx)
	if err != nil {
		return err
	}

	for _, orgID := range orgs {
		if !j.gate(orgID) {
			stats.SkippedOrganizations++
			continue
		}
		stats.Organizations++
		if err := j.sweepOrganization(ctx, orgID, stats); err != nil {
			return err
		}
	}

	j.log.Info("unlock sweep finished",
		logger.Count("organizations", stats.Organizations),
		logger.Count("students", stats.StudentsChecked),
		logger.Count("failed", stats.StudentsFailed),
		logger.Count("unlocked", stats.AchievementsUnlocked),
		logger.XPAmount(stats.XPAwarded),
	)
	return nil
}

// SweepOrganization runs the sweep for a single organization outside the
// schedule, e.g. after an achievement was created there. The gate and the
// configured timeout still apply. Stats of the scheduled run are untouched.
func (j *UnlockSweepJob) SweepOrganization(ctx context.Context, organizationID string) (*SweepStats, error) {
	stats := &SweepStats{StartedAt: time.Now()}
	if !j.gate(organizationID) {
		stats.SkippedOrganizations = 1
		return stats, nil
	}

	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	stats.Organizations = 1
	err := j.sweepOrganization(ctx, organizationID, stats)
	stats.Duration = time.Since(stats.StartedAt)

	j.log.Info("organization sweep finished",
		logger.OrganizationID(organizationID),
		logger.Count("students", stats.StudentsChecked),
		logger.Count("failed", stats.StudentsFailed),
		logger.Count("unlocked", stats.AchievementsUnlocked),
	)
	return stats, err
}

func (j *UnlockSweepJob) sweepOrganization(ctx context.Context, orgID string, stats *SweepStats) error {
	ids, err := j.students.ListActiveIDs(ctx, orgID)
	if err != nil {
		return err
	}

	var checked, failed, unlocked, xp atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.config.Concurrency)

	for _, id := range ids {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			res, err := j.checker.Execute(gctx, saga.AchievementCheckInput{
				StudentID:    id,
				TriggerEvent: "scheduled_sweep",
			})
			checked.Add(1)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				failed.Add(1)
				j.log.Warn("student sweep failed", logger.StudentID(id), logger.Err(err))
				return nil
			}
			unlocked.Add(int64(len(res.NewAchievements)))
			xp.Add(int64(res.TotalXPAwarded))
			return nil
		})
	}
	err = g.Wait()

	stats.StudentsChecked += int(checked.Load())
	stats.StudentsFailed += int(failed.Load())
	stats.AchievementsUnlocked += int(unlocked.Load())
	stats.XPAwarded += int(xp.Load())
	return err
}

// LastStats returns statistics of the previous run, or nil.
func (j *UnlockSweepJob) LastStats() *SweepStats {
	return j.lastStats.Load()
}
