// Package config loads application configuration and feature flags from
// environment variables.
package config

import (
	"hash/fnv"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// FeatureFlags controls which parts of the engine are active without
// redeploying. Flags gate whole subsystems (ticks, nudges) as well as
// per-member rollouts.
type FeatureFlags struct {
	mu sync.RWMutex

	// Core features
	features map[string]*Feature

	// Override rules (for testing/debugging)
	memberOverrides map[string]map[string]bool // memberID -> feature -> enabled
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool

	// Rollout percentage (0-100)
	// Members are assigned based on hash of their ID
	RolloutPercent int

	// Time-based activation
	EnabledFrom  *time.Time
	EnabledUntil *time.Time
}

// FeatureContext provides context for feature flag evaluation.
type FeatureContext struct {
	MemberID string
	IsAdmin  bool
}

// Predefined feature flag names.
const (
	// === Tick Features ===
	FeatureTicksUnlock       = "ticks.unlock"        // Hourly lesson unlock tick
	FeatureTicksReminders    = "ticks.reminders"     // Hourly reminder dispatch
	FeatureTicksSupportNudge = "ticks.support_nudge" // Daily nudge for inactive members

	// === Lesson Features ===
	FeatureLessonCommitments = "lessons.commitments" // Advisory commitments on lessons

	// === Progress Features ===
	FeatureProgressStreaks    = "progress.streaks"    // Streak tracking
	FeatureProgressMilestones = "progress.milestones" // Next-milestone hints in progress view

	// === Notification Features ===
	FeatureNotifyFollowUp = "notify.follow_up" // Second reminder slot for two-reminder members

	// === Experimental Features ===
	FeatureExperimentalWeeklyDigest = "experimental.weekly_digest" // Weekly summary mail
)

// LoadFeatureFlags loads feature flags from environment variables.
func LoadFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{
		features:        make(map[string]*Feature),
		memberOverrides: make(map[string]map[string]bool),
	}

	// Initialize all features with defaults
	ff.initializeDefaults()

	// Load overrides from environment
	ff.loadFromEnvironment()

	return ff
}

// initializeDefaults sets up all features with default values.
func (ff *FeatureFlags) initializeDefaults() {
	// Ticks are the heart of the engine - enabled by default
	ff.features[FeatureTicksUnlock] = &Feature{
		Name:           FeatureTicksUnlock,
		Description:    "Hourly lesson unlock tick",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureTicksReminders] = &Feature{
		Name:           FeatureTicksReminders,
		Description:    "Hourly reminder dispatch",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureTicksSupportNudge] = &Feature{
		Name:           FeatureTicksSupportNudge,
		Description:    "Daily nudge for members with no recent activity",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureLessonCommitments] = &Feature{
		Name:           FeatureLessonCommitments,
		Description:    "Advisory completion commitments on lessons",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureProgressStreaks] = &Feature{
		Name:           FeatureProgressStreaks,
		Description:    "Daily streak tracking",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureProgressMilestones] = &Feature{
		Name:           FeatureProgressMilestones,
		Description:    "Next-milestone hints in the progress view",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureNotifyFollowUp] = &Feature{
		Name:           FeatureNotifyFollowUp,
		Description:    "Second reminder slot two hours after the first",
		Enabled:        true,
		RolloutPercent: 100,
	}

	// Experimental features - disabled by default
	ff.features[FeatureExperimentalWeeklyDigest] = &Feature{
		Name:           FeatureExperimentalWeeklyDigest,
		Description:    "Weekly progress summary mail",
		Enabled:        false,
		RolloutPercent: 0,
	}
}

// loadFromEnvironment loads feature flag overrides from env vars.
// Format: FEATURE_<NAME>=true|false|<percent>
// Example: FEATURE_TICKS_REMINDERS=true
// Example: FEATURE_EXPERIMENTAL_WEEKLY_DIGEST=25 (25% rollout)
func (ff *FeatureFlags) loadFromEnvironment() {
	for name, feature := range ff.features {
		envKey := featureNameToEnvKey(name)
		if val := os.Getenv(envKey); val != "" {
			// Try parsing as boolean
			if b, err := strconv.ParseBool(val); err == nil {
				feature.Enabled = b
				if b {
					feature.RolloutPercent = 100
				} else {
					feature.RolloutPercent = 0
				}
				continue
			}

			// Try parsing as percentage
			if p, err := strconv.Atoi(val); err == nil && p >= 0 && p <= 100 {
				feature.Enabled = p > 0
				feature.RolloutPercent = p
			}
		}
	}
}

// featureNameToEnvKey converts feature name to environment variable key.
// "ticks.support_nudge" -> "FEATURE_TICKS_SUPPORT_NUDGE"
func featureNameToEnvKey(name string) string {
	key := strings.ToUpper(name)
	key = strings.ReplaceAll(key, ".", "_")
	return "FEATURE_" + key
}

// IsEnabled checks if a feature is enabled for the given context.
func (ff *FeatureFlags) IsEnabled(featureName string, ctx *FeatureContext) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	// Check member overrides first
	if ctx != nil && ctx.MemberID != "" {
		if overrides, ok := ff.memberOverrides[ctx.MemberID]; ok {
			if enabled, ok := overrides[featureName]; ok {
				return enabled
			}
		}
	}

	feature, ok := ff.features[featureName]
	if !ok {
		return false
	}

	// Admin users get all features
	if ctx != nil && ctx.IsAdmin {
		return true
	}

	// Check if feature is enabled at all
	if !feature.Enabled {
		return false
	}

	// Check time-based activation
	now := time.Now()
	if feature.EnabledFrom != nil && now.Before(*feature.EnabledFrom) {
		return false
	}
	if feature.EnabledUntil != nil && now.After(*feature.EnabledUntil) {
		return false
	}

	// Check rollout percentage
	if feature.RolloutPercent < 100 && ctx != nil && ctx.MemberID != "" {
		return ff.isInRollout(ctx.MemberID, featureName, feature.RolloutPercent)
	}

	return feature.RolloutPercent > 0
}

// isInRollout determines if a member is in the rollout percentage.
// Uses consistent hashing so members stay in their bucket.
func (ff *FeatureFlags) isInRollout(memberID, featureName string, percent int) bool {
	h := fnv.New32a()
	h.Write([]byte(featureName))
	h.Write([]byte(memberID))
	hash := h.Sum32()

	// Map to 0-99 range
	bucket := int(hash % 100)

	return bucket < percent
}

// SetMemberOverride sets a feature override for a specific member.
// Useful for testing and debugging.
func (ff *FeatureFlags) SetMemberOverride(memberID, featureName string, enabled bool) {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	if _, ok := ff.memberOverrides[memberID]; !ok {
		ff.memberOverrides[memberID] = make(map[string]bool)
	}
	ff.memberOverrides[memberID][featureName] = enabled
}

// ClearMemberOverrides removes all overrides for a member.
func (ff *FeatureFlags) ClearMemberOverrides(memberID string) {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	delete(ff.memberOverrides, memberID)
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

// EnableFeature enables a feature at 100% rollout.
func (ff *FeatureFlags) EnableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 100)
}

// DisableFeature disables a feature completely.
func (ff *FeatureFlags) DisableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 0)
}

// GetAllFeatures returns a copy of all feature configurations.
func (ff *FeatureFlags) GetAllFeatures() map[string]*Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	result := make(map[string]*Feature, len(ff.features))
	for k, v := range ff.features {
		// Return a copy
		featureCopy := *v
		result[k] = &featureCopy
	}
	return result
}

// --- Convenience methods for common checks ---

// TicksEnabled checks if any scheduled tick is enabled.
func (ff *FeatureFlags) TicksEnabled(ctx *FeatureContext) bool {
	return ff.IsEnabled(FeatureTicksUnlock, ctx) ||
		ff.IsEnabled(FeatureTicksReminders, ctx) ||
		ff.IsEnabled(FeatureTicksSupportNudge, ctx)
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
