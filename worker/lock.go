package worker

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// LockInfo describes who holds the worker lock and for how long.
type LockInfo struct {
	ID          string    `json:"id"`
	Owner       string    `json:"owner"`
	AcquiredAt  time.Time `json:"acquired_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	Environment string    `json:"environment"`
}

// LockManager serializes worker runs across instances sharing a host via a
// lock file. Two pods sweeping the same tables at once is wasteful, not
// dangerous, so a file lock is sufficient here.
type LockManager struct {
	LockFilePath string
	LockTimeout  time.Duration
	Environment  string
}

func NewLockManager(lockPath string, timeout time.Duration, env string) *LockManager {
	return &LockManager{
		LockFilePath: lockPath,
		LockTimeout:  timeout,
		Environment:  env,
	}
}

func (lm *LockManager) AcquireLock(ownerID string) (*LockInfo, error) {
	if err := os.MkdirAll(filepath.Dir(lm.LockFilePath), 0755); err != nil {
		return nil, err
	}

	if existing, err := lm.readLockFile(); err == nil {
		if time.Now().Before(existing.ExpiresAt) {
			if existing.Owner == ownerID && existing.Environment == lm.Environment {
				return lm.extendLock(existing)
			}
			return nil, fmt.Errorf("lock held by %s until %s", existing.Owner, existing.ExpiresAt)
		}
	}

	lockInfo := &LockInfo{
		ID:          fmt.Sprintf("worker-lock-%d", time.Now().UnixNano()),
		Owner:       ownerID,
		AcquiredAt:  time.Now(),
		ExpiresAt:   time.Now().Add(lm.LockTimeout),
		Environment: lm.Environment,
	}

	if err := lm.writeLockFile(lockInfo); err != nil {
		return nil, fmt.Errorf("failed to create lock file: %w", err)
	}
	return lockInfo, nil
}

func (lm *LockManager) ReleaseLock(ownerID string) error {
	existing, err := lm.readLockFile()
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if existing.Owner != ownerID {
		return fmt.Errorf("cannot release lock owned by %s", existing.Owner)
	}
	return os.Remove(lm.LockFilePath)
}

func (lm *LockManager) extendLock(existing *LockInfo) (*LockInfo, error) {
	extended := &LockInfo{
		ID:          existing.ID,
		Owner:       existing.Owner,
		AcquiredAt:  existing.AcquiredAt,
		ExpiresAt:   time.Now().Add(lm.LockTimeout),
		Environment: existing.Environment,
	}
	if err := lm.writeLockFile(extended); err != nil {
		return nil, err
	}
	return extended, nil
}

func (lm *LockManager) readLockFile() (*LockInfo, error) {
	data, err := os.ReadFile(lm.LockFilePath)
	if err != nil {
		return nil, err
	}

	var lockInfo LockInfo
	if err := json.Unmarshal(data, &lockInfo); err != nil {
		return nil, fmt.Errorf("failed to parse lock file: %w", err)
	}
	return &lockInfo, nil
}

func (lm *LockManager) writeLockFile(lockInfo *LockInfo) error {
	data, err := json.MarshalIndent(lockInfo, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(lm.LockFilePath, data, 0644)
}
