// Package reconcile keeps v<major> floating tags pointed at the latest
// release of their major line.
package reconcile

import (
	"context"
	"fmt"

	"github.com/schaermu/vtagsync/internal/git"
	"github.com/schaermu/vtagsync/internal/tagset"
)

const (
	msgNoSemverTags = "No SemVer tags found"
	msgNoChanges    = "No changes were made"
	msgMappedTags   = "Successfully created/updated v-tags"
	dryRunSuffix    = " (dry-run)"
)

// Engine orchestrates one reconciliation pass against a repository
type Engine struct {
	git     git.Client
	logger  Logger
	publish bool
	dryRun  bool
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the logger; the default discards everything.
func WithLogger(l Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithPublish controls whether every mutation is pushed to the remote (default true).
func WithPublish(publish bool) Option {
	return func(e *Engine) { e.publish = publish }
}

// WithDryRun computes and reports the plan without touching the repository.
func WithDryRun(dryRun bool) Option {
	return func(e *Engine) { e.dryRun = dryRun }
}

// NewEngine creates a new reconciliation engine
func NewEngine(client git.Client, opts ...Option) *Engine {
	e := &Engine{
		git:     client,
		logger:  nopLogger{},
		publish: true,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes a complete reconciliation pass.
//
// Failures to read the repository (listing tags, resolving targets) are
// returned as errors. Mutation failures stop the pass and are reported in the
// Result as FAILED_TO_REMAP_TAG together with the outcomes applied so far.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	e.logger.Info("starting reconciliation", "publish", e.publish, "dry_run", e.dryRun)

	allTags, err := e.git.ListTags(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	e.logger.Debug("listed tags", "count", len(allTags), "tags", allTags)

	latest := tagset.LatestPerMajor(allTags)
	if latest.Len() == 0 {
		e.logger.Info("no semver tags found")
		return &Result{
			Succeeded: true,
			Reason:    ReasonNoSemverTags,
			Message:   msgNoSemverTags,
			Data:      &Outcomes{},
		}, nil
	}
	e.logger.Info("latest semver tags", "count", latest.Len(), "tags", latest.Tags())

	floating := tagset.FloatingTags(allTags)
	e.logger.Info("floating tags", "tags", tagset.SortedNames(floating))

	plan, err := e.buildPlan(ctx, latest, floating)
	if err != nil {
		return nil, fmt.Errorf("failed to build plan: %w", err)
	}

	e.logger.Info("reconciliation plan",
		"lines", len(plan.Decisions),
		"changes", plan.Changes())

	if e.dryRun {
		e.logPlanDetails(plan)
	}

	outcomes := &Outcomes{}
	if err := e.applyPlan(ctx, plan, outcomes); err != nil {
		e.logger.Error("failed to remap tag", "error", err, "applied", outcomes.Len())
		return &Result{
			Succeeded: false,
			Reason:    ReasonFailedToRemapTag,
			Message:   err.Error(),
			Data:      outcomes,
		}, nil
	}

	if outcomes.Len() == 0 {
		e.logger.Info("floating tags already up to date")
		return &Result{
			Succeeded: true,
			Reason:    ReasonNoChanges,
			Message:   msgNoChanges,
			Data:      outcomes,
		}, nil
	}

	e.logger.Info("reconciliation completed", "changed", outcomes.Len())
	msg := msgMappedTags
	if e.dryRun {
		// Nothing was mutated; the outcomes describe what would have been done
		msg += dryRunSuffix
	}
	return &Result{
		Succeeded: true,
		Reason:    ReasonMappedTags,
		Message:   msg,
		Data:      outcomes,
	}, nil
}

// buildPlan resolves the targets involved and decides one action per major line
func (e *Engine) buildPlan(ctx context.Context, latest tagset.Selection, floating map[string]struct{}) (*Plan, error) {
	names := latest.Tags()
	names = append(names, tagset.SortedNames(floating)...)

	targets, err := git.ResolveTargets(ctx, e.git, names)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("resolved targets", "targets", targets)

	plan := &Plan{Decisions: make([]Decision, 0, latest.Len())}
	for _, major := range latest.Majors() {
		release, _ := latest.Tag(major)
		d := Decision{
			Major:    major,
			Release:  release,
			Floating: tagset.FloatingName(major),
			New:      targets[release],
		}

		if _, exists := floating[d.Floating]; exists {
			d.Old = targets[d.Floating]
			if d.Old == d.New {
				d.Action = ActionSkip
			} else {
				d.Action = ActionRetarget
			}
		} else {
			d.Action = ActionCreate
		}

		plan.Decisions = append(plan.Decisions, d)
	}

	return plan, nil
}

// applyPlan executes decisions in order and stops at the first failure.
// Outcomes of decisions applied before the failure stay recorded.
func (e *Engine) applyPlan(ctx context.Context, plan *Plan, outcomes *Outcomes) error {
	for _, d := range plan.Decisions {
		switch d.Action {
		case ActionSkip:
			e.logger.Info("floating tag already points at latest release, skipping",
				"tag", d.Floating, "release", d.Release, "target", d.New)
			continue

		case ActionRetarget:
			e.logger.Info("floating tag points at a different commit, updating",
				"tag", d.Floating, "release", d.Release, "old", d.Old, "new", d.New)
			if !e.dryRun {
				if err := e.git.ForceRetag(ctx, d.Floating, d.New); err != nil {
					return err
				}
				if err := e.maybePublish(ctx, d.Floating, true); err != nil {
					return err
				}
			}
			outcomes.Set(d.Floating, Outcome{State: StateUpdated, OldTarget: d.Old, NewTarget: d.New})

		case ActionCreate:
			e.logger.Info("floating tag does not exist, creating",
				"tag", d.Floating, "release", d.Release, "target", d.New)
			if !e.dryRun {
				if err := e.git.CreateTag(ctx, d.Floating, d.New); err != nil {
					return err
				}
				if err := e.maybePublish(ctx, d.Floating, false); err != nil {
					return err
				}
			}
			outcomes.Set(d.Floating, Outcome{State: StateCreated, OldTarget: "", NewTarget: d.New})
		}
	}

	return nil
}

func (e *Engine) maybePublish(ctx context.Context, tag string, force bool) error {
	if !e.publish {
		return nil
	}
	e.logger.Debug("publishing tag", "tag", tag, "force", force)
	return e.git.Publish(ctx, tag, force)
}

// logPlanDetails logs detailed plan information for dry-run
func (e *Engine) logPlanDetails(plan *Plan) {
	for _, d := range plan.Decisions {
		switch d.Action {
		case ActionCreate:
			e.logger.Info("[dry-run] would create", "tag", d.Floating, "target", d.New)
		case ActionRetarget:
			e.logger.Info("[dry-run] would retarget", "tag", d.Floating, "old", d.Old, "new", d.New)
		}
	}
}
