package config

import (
	"hash/fnv"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// FeatureFlags manages feature toggles with gradual per-organization rollout.
// Organizations are bucketed by a hash of their ID, so a school keeps its
// bucket while the percentage grows.
type FeatureFlags struct {
	mu sync.RWMutex

	features map[string]*Feature

	// organizationID -> feature -> enabled
	orgOverrides map[string]map[string]bool

	now func() time.Time
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool

	// Rollout percentage (0-100) by hash of the organization ID
	RolloutPercent int

	// Empty means all organizations
	TargetOrganizations []string

	// Time-based activation
	EnabledFrom  *time.Time
	EnabledUntil *time.Time
}

// FeatureContext provides context for feature flag evaluation.
type FeatureContext struct {
	OrganizationID string
	IsAdmin        bool
}

// Predefined feature flag names.
const (
	// Evaluate a student's achievements concurrently
	FeatureEvaluationParallel = "evaluation.parallel"

	// Read-through cache for achievement leaderboards
	FeatureLeaderboardCache = "leaderboard.cache"

	// Scheduled unlock sweep over active students
	FeatureUnlockSweep = "unlock.sweep"

	// Add XPReward to the student's total on unlock
	FeatureUnlockXPAward = "unlock.xp_award"
)

// LoadFeatureFlags loads feature flags from environment variables.
func LoadFeatureFlags() *FeatureFlags {
	ff := newFeatureFlags()
	ff.loadFromEnvironment()
	return ff
}

func newFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{
		features:     make(map[string]*Feature),
		orgOverrides: make(map[string]map[string]bool),
		now:          time.Now,
	}
	ff.initializeDefaults()
	return ff
}

// initializeDefaults sets up all features with default values.
func (ff *FeatureFlags) initializeDefaults() {
	ff.features[FeatureEvaluationParallel] = &Feature{
		Name:           FeatureEvaluationParallel,
		Description:    "Evaluate achievements on a bounded worker pool",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureLeaderboardCache] = &Feature{
		Name:           FeatureLeaderboardCache,
		Description:    "Cache computed leaderboards",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureUnlockSweep] = &Feature{
		Name:           FeatureUnlockSweep,
		Description:    "Grant completed achievements on schedule",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureUnlockXPAward] = &Feature{
		Name:           FeatureUnlockXPAward,
		Description:    "Award achievement XP on unlock",
		Enabled:        true,
		RolloutPercent: 100,
	}
}

// loadFromEnvironment loads feature flag overrides from env vars.
// Format: FEATURE_<NAME>=true|false|<percent>
// Example: FEATURE_UNLOCK_SWEEP=false
// Example: FEATURE_LEADERBOARD_CACHE=50 (50% of organizations)
// Targeting: FEATURE_<NAME>_ORGS=org-1,org-2
func (ff *FeatureFlags) loadFromEnvironment() {
	for name, feature := range ff.features {
		envKey := featureNameToEnvKey(name)

		feature.TargetOrganizations = getEnvStringSlice(envKey+"_ORGS", feature.TargetOrganizations)

		val := os.Getenv(envKey)
		if val == "" {
			continue
		}

		if b, err := strconv.ParseBool(val); err == nil {
			feature.Enabled = b
			if b {
				feature.RolloutPercent = 100
			} else {
				feature.RolloutPercent = 0
			}
			continue
		}

		if p, err := strconv.Atoi(val); err == nil && p >= 0 && p <= 100 {
			feature.Enabled = p > 0
			feature.RolloutPercent = p
		}
	}
}

// featureNameToEnvKey converts feature name to environment variable key.
// "unlock.xp_award" -> "FEATURE_UNLOCK_XP_AWARD"
func featureNameToEnvKey(name string) string {
	key := strings.ToUpper(name)
	key = strings.ReplaceAll(key, ".", "_")
	return "FEATURE_" + key
}

// IsEnabled checks if a feature is enabled for the given context.
// A nil context asks whether the feature is on anywhere.
func (ff *FeatureFlags) IsEnabled(featureName string, ctx *FeatureContext) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	if ctx != nil && ctx.OrganizationID != "" {
		if overrides, ok := ff.orgOverrides[ctx.OrganizationID]; ok {
			if enabled, ok := overrides[featureName]; ok {
				return enabled
			}
		}
	}

	feature, ok := ff.features[featureName]
	if !ok {
		return false
	}

	if ctx != nil && ctx.IsAdmin {
		return true
	}

	if !feature.Enabled {
		return false
	}

	now := ff.now()
	if feature.EnabledFrom != nil && now.Before(*feature.EnabledFrom) {
		return false
	}
	if feature.EnabledUntil != nil && now.After(*feature.EnabledUntil) {
		return false
	}

	if len(feature.TargetOrganizations) > 0 && ctx != nil && ctx.OrganizationID != "" {
		matched := false
		for _, org := range feature.TargetOrganizations {
			if org == ctx.OrganizationID {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	if feature.RolloutPercent < 100 && ctx != nil && ctx.OrganizationID != "" {
		return isInRollout(ctx.OrganizationID, featureName, feature.RolloutPercent)
	}

	return feature.RolloutPercent > 0
}

// IsEnabledFor is IsEnabled for a plain organization ID.
func (ff *FeatureFlags) IsEnabledFor(featureName, organizationID string) bool {
	return ff.IsEnabled(featureName, &FeatureContext{OrganizationID: organizationID})
}

// Gate returns a per-organization predicate for featureName.
func (ff *FeatureFlags) Gate(featureName string) func(organizationID string) bool {
	return func(organizationID string) bool {
		return ff.IsEnabledFor(featureName, organizationID)
	}
}

// isInRollout determines if an organization falls into the rollout
// percentage. The bucket is stable per organization and feature.
func isInRollout(organizationID, featureName string, percent int) bool {
	h := fnv.New32a()
	h.Write([]byte(featureName))
	h.Write([]byte(organizationID))
	return int(h.Sum32()%100) < percent
}

// SetOrganizationOverride forces a feature on or off for one organization.
func (ff *FeatureFlags) SetOrganizationOverride(organizationID, featureName string, enabled bool) {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	if _, ok := ff.orgOverrides[organizationID]; !ok {
		ff.orgOverrides[organizationID] = make(map[string]bool)
	}
	ff.orgOverrides[organizationID][featureName] = enabled
}

// ClearOrganizationOverrides removes all overrides for an organization.
func (ff *FeatureFlags) ClearOrganizationOverrides(organizationID string) {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	delete(ff.orgOverrides, organizationID)
}

// SetRolloutPercent updates the rollout percentage for a feature.
// Thread-safe for live updates.
func (ff *FeatureFlags) SetRolloutPercent(featureName string, percent int) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	feature, ok := ff.features[featureName]
	if !ok {
		return ErrFeatureNotFound
	}

	if percent < 0 || percent > 100 {
		return ErrInvalidRolloutPercent
	}

	feature.RolloutPercent = percent
	feature.Enabled = percent > 0

	return nil
}

// GetAllFeatures returns a copy of all feature configurations.
func (ff *FeatureFlags) GetAllFeatures() map[string]*Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	result := make(map[string]*Feature, len(ff.features))
	for k, v := range ff.features {
		featureCopy := *v
		result[k] = &featureCopy
	}
	return result
}

// Summary lists features as "name=percent" in name order, for startup logs.
func (ff *FeatureFlags) Summary() []string {
	features := ff.GetAllFeatures()
	out := make([]string, 0, len(features))
	for name, f := range features {
		out = append(out, name+"="+strconv.Itoa(f.RolloutPercent))
	}
	sort.Strings(out)
	return out
}

// --- Errors ---

var (
	ErrFeatureNotFound       = &FeatureFlagError{Message: "feature not found"}
	ErrInvalidRolloutPercent = &FeatureFlagError{Message: "rollout percent must be 0-100"}
)

// FeatureFlagError represents a feature flag error.
type FeatureFlagError struct {
	Message string
}

func (e *FeatureFlagError) Error() string {
	return e.Message
}
