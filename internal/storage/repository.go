package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"benefitmetrics-backend/internal/onboarding"

	"go.uber.org/zap"
)

// Remote is the onboarding service as seen from the device.
type Remote interface {
	FetchProgress(ctx context.Context, userID string) (*onboarding.ProgressEnvelope, error)
	SaveProgress(ctx context.Context, userID string, st *onboarding.ProgressState) error
	RecordStep(ctx context.Context, userID string, req onboarding.StepRequest) (*onboarding.ProgressEnvelope, error)
	MarkComplete(ctx context.Context, userID string, req onboarding.CompleteRequest) error
	ResetProgress(ctx context.Context, userID string, role onboarding.Role) error
}

// ErrNoRemoteRecord is returned by a Remote when the user has no progress
// stored for the requested role.
var ErrNoRemoteRecord = errors.New("no remote onboarding record")

// Source says where a loaded state came from.
type Source string

const (
	SourceRemote   Source = "remote"
	SourceLocal    Source = "local"
	SourceDefaults Source = "defaults"
)

// Reconcile chooses between the remote and cached snapshots: remote wins
// whenever it answered, the cache covers a failed remote, and the registry
// defaults cover both missing. The result is always re-derived.
func Reconcile(role onboarding.Role, remote *onboarding.ProgressState, remoteErr error, local *onboarding.ProgressState) (*onboarding.ProgressState, Source) {
	if remoteErr == nil && remote != nil {
		return onboarding.Normalize(remote, role), SourceRemote
	}
	if local != nil {
		return onboarding.Normalize(local, role), SourceLocal
	}
	return onboarding.NewProgressState(role), SourceDefaults
}

// Repository implements onboarding.Store over a local cache and a remote.
// Writes go to the cache first, then to the remote, and both are awaited.
type Repository struct {
	local  LocalStore
	remote Remote
	logger *zap.Logger
}

var _ onboarding.Store = (*Repository)(nil)

func NewRepository(local LocalStore, remote Remote, logger *zap.Logger) *Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repository{local: local, remote: remote, logger: logger}
}

func (r *Repository) Load(ctx context.Context, userID string, role onboarding.Role) *onboarding.ProgressState {
	remote, remoteErr := r.fetchRemote(ctx, userID, role)
	if remoteErr != nil {
		r.logger.Info("Remote onboarding progress unavailable, using local cache",
			zap.String("role", string(role)), zap.Error(remoteErr))
	}

	var local *onboarding.ProgressState
	if remoteErr != nil {
		var err error
		local, err = r.readLocal(ctx, role)
		if err != nil {
			r.logger.Warn("Failed to read local onboarding cache", zap.Error(err))
		}
	}

	st, source := Reconcile(role, remote, remoteErr, local)
	if source == SourceRemote {
		if err := r.writeLocal(ctx, st); err != nil {
			r.logger.Warn("Failed to refresh local onboarding cache", zap.Error(err))
		}
	}
	r.logger.Debug("Onboarding progress reconciled",
		zap.String("role", string(role)), zap.String("source", string(source)))
	return st
}

func (r *Repository) fetchRemote(ctx context.Context, userID string, role onboarding.Role) (*onboarding.ProgressState, error) {
	if r.remote == nil {
		return nil, errors.New("no remote configured")
	}
	env, err := r.remote.FetchProgress(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !env.Success {
		return nil, fmt.Errorf("remote reported failure: %s", env.Error)
	}
	st, ok := env.Get(role)
	if !ok {
		return nil, ErrNoRemoteRecord
	}
	return st, nil
}

func (r *Repository) readLocal(ctx context.Context, role onboarding.Role) (*onboarding.ProgressState, error) {
	raw, ok, err := r.local.Get(ctx, LocalKey(role))
	if err != nil || !ok {
		return nil, err
	}
	var st onboarding.ProgressState
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return nil, fmt.Errorf("decode cached snapshot: %w", err)
	}
	return &st, nil
}

func (r *Repository) writeLocal(ctx context.Context, st *onboarding.ProgressState) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return r.local.Set(ctx, LocalKey(st.Role), string(raw))
}

// Save writes st to the cache and then to the remote. Both writes are
// attempted; the joined error reports whichever failed.
func (r *Repository) Save(ctx context.Context, userID string, st *onboarding.ProgressState) error {
	var errs []error
	if err := r.writeLocal(ctx, st); err != nil {
		errs = append(errs, fmt.Errorf("local: %w", err))
	}
	if r.remote != nil {
		if err := r.remote.SaveProgress(ctx, userID, st); err != nil {
			errs = append(errs, fmt.Errorf("remote: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (r *Repository) Reset(ctx context.Context, userID string, role onboarding.Role) error {
	var errs []error
	if err := r.local.Delete(ctx, LocalKey(role)); err != nil {
		errs = append(errs, fmt.Errorf("local: %w", err))
	}
	if r.remote != nil {
		if err := r.remote.ResetProgress(ctx, userID, role); err != nil {
			errs = append(errs, fmt.Errorf("remote: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (r *Repository) RecordStep(ctx context.Context, userID string, req onboarding.StepRequest) error {
	if r.remote == nil {
		return nil
	}
	_, err := r.remote.RecordStep(ctx, userID, req)
	return err
}

func (r *Repository) MarkComplete(ctx context.Context, userID string, req onboarding.CompleteRequest) error {
	if r.remote == nil {
		return nil
	}
	return r.remote.MarkComplete(ctx, userID, req)
}
