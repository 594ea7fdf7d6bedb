package maintenance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"notes-serverless/internal/auth"
	"notes-serverless/internal/observability"
)

var ErrSweepInProgress = errors.New("activity sweep already in progress")

type AccountStore interface {
	ListWithLoginActivity(ctx context.Context) ([]auth.Account, error)
	UpdateStatus(ctx context.Context, id string, status auth.Status) error
}

type NoteStore interface {
	MarkOverdue(ctx context.Context, now time.Time) (int64, error)
}

type SweepResult struct {
	AccountsScanned     int       `json:"accounts_scanned"`
	AccountsDeactivated int       `json:"accounts_deactivated"`
	NotesMarkedOverdue  int64     `json:"notes_marked_overdue"`
	StartedAt           time.Time `json:"started_at"`
	FinishedAt          time.Time `json:"finished_at"`
}

// Sweeper applies the inactivity rule to every active account with known
// login timestamps and marks past-due pending notes as overdue. At most one
// run is in flight at a time.
type Sweeper struct {
	accounts AccountStore
	notes    NoteStore
	policy   auth.ActivityPolicy
	logger   *observability.Logger
	metrics  *observability.Metrics
	now      func() time.Time

	mu sync.Mutex
}

func NewSweeper(
	accounts AccountStore,
	notes NoteStore,
	policy auth.ActivityPolicy,
	logger *observability.Logger,
	metrics *observability.Metrics,
) *Sweeper {
	if policy.ThresholdDays <= 0 {
		policy = auth.DefaultActivityPolicy()
	}
	return &Sweeper{
		accounts: accounts,
		notes:    notes,
		policy:   policy,
		logger:   logger,
		metrics:  metrics,
		now:      time.Now,
	}
}

// Run returns ErrSweepInProgress instead of waiting when another run holds
// the lock.
func (s *Sweeper) Run(ctx context.Context) (SweepResult, error) {
	if !s.mu.TryLock() {
		s.metrics.SweepSkipped()
		s.logger.Warn("activity_sweep_skipped", map[string]any{"reason": "in_progress"})
		return SweepResult{}, ErrSweepInProgress
	}
	defer s.mu.Unlock()

	result, err := s.sweep(ctx)
	if err != nil {
		s.metrics.SweepFailed()
		s.logger.Error("activity_sweep_failed", map[string]any{
			"error":                err.Error(),
			"accounts_deactivated": result.AccountsDeactivated,
			"notes_marked_overdue": result.NotesMarkedOverdue,
		})
		return result, err
	}

	s.metrics.SweepCompleted(int64(result.AccountsDeactivated), result.NotesMarkedOverdue)
	s.logger.Info("activity_sweep_completed", map[string]any{
		"accounts_scanned":     result.AccountsScanned,
		"accounts_deactivated": result.AccountsDeactivated,
		"notes_marked_overdue": result.NotesMarkedOverdue,
		"duration_ms":          result.FinishedAt.Sub(result.StartedAt).Milliseconds(),
	})
	return result, nil
}

func (s *Sweeper) sweep(ctx context.Context) (SweepResult, error) {
	now := s.now().UTC()
	result := SweepResult{StartedAt: now}

	overdue, err := s.notes.MarkOverdue(ctx, now)
	if err != nil {
		return result, fmt.Errorf("mark overdue notes: %w", err)
	}
	result.NotesMarkedOverdue = overdue

	accounts, err := s.accounts.ListWithLoginActivity(ctx)
	if err != nil {
		return result, fmt.Errorf("list accounts: %w", err)
	}
	result.AccountsScanned = len(accounts)

	for i := range accounts {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		account := accounts[i]
		if !s.policy.Apply(&account) {
			continue
		}

		if err := s.accounts.UpdateStatus(ctx, account.ID, account.Status); err != nil {
			// Deleted between the listing and the update.
			if errors.Is(err, auth.ErrAccountNotFound) {
				continue
			}
			return result, fmt.Errorf("deactivate account %s: %w", account.ID, err)
		}

		gap, _ := account.GapDays()
		s.logger.Info("account_deactivated", map[string]any{
			"account_id": account.ID,
			"gap_days":   gap,
		})
		result.AccountsDeactivated++
	}

	result.FinishedAt = s.now().UTC()
	return result, nil
}
