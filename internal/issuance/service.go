package issuance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/m3rciful/couponbot/core/logger"
)

// Service applies the issuance rules on top of a Store.
type Service struct {
	store Store
}

// NewService returns a Service backed by store.
func NewService(store Store) *Service {
	return &Service{store: store}
}

func storeErr(op string, err error) error {
	if errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
}

// EnsureUser returns the record for id, creating it with hint when absent.
// An existing name is replaced by a non-empty, different hint unless the
// coupon was already issued.
func (s *Service) EnsureUser(ctx context.Context, id int64, hint string) (User, error) {
	u, err := s.store.FindByIdentity(ctx, id)
	switch {
	case errors.Is(err, ErrUserNotFound):
		u, err = s.store.Create(ctx, id, hint)
		if err != nil {
			return User{}, storeErr("create", err)
		}
		logger.Info(ctx, logger.CompIssuance, "user.created", slog.Int64("user_id", id))
		return u, nil
	case err != nil:
		return User{}, storeErr("find", err)
	}

	if hint == "" || hint == u.DisplayName || u.HasReceivedCoupon {
		return u, nil
	}
	if err := s.store.UpdateName(ctx, id, hint); err != nil {
		return User{}, storeErr("update name", err)
	}
	u.DisplayName = hint
	return u, nil
}

// IsIssued reports whether id already received a coupon. Unknown users have not.
func (s *Service) IsIssued(ctx context.Context, id int64) (bool, error) {
	st, err := s.State(ctx, id)
	if err != nil {
		return false, err
	}
	return st == StateIssued, nil
}

// CheckClaimable returns ErrAlreadyIssued when id already received a coupon.
func (s *Service) CheckClaimable(ctx context.Context, id int64) error {
	issued, err := s.IsIssued(ctx, id)
	if err != nil {
		return err
	}
	if issued {
		return ErrAlreadyIssued
	}
	return nil
}

// State returns where id currently is in the lifecycle.
func (s *Service) State(ctx context.Context, id int64) (State, error) {
	u, err := s.store.FindByIdentity(ctx, id)
	switch {
	case errors.Is(err, ErrUserNotFound):
		return StateNew, nil
	case err != nil:
		return StateNew, storeErr("find", err)
	case u.HasReceivedCoupon:
		return StateIssued, nil
	}
	return StateRegistered, nil
}

// RecordIssuance flips the coupon flag for id. Repeating it is harmless.
func (s *Service) RecordIssuance(ctx context.Context, id int64) error {
	if err := s.store.SetIssued(ctx, id); err != nil {
		return storeErr("set issued", err)
	}
	logger.Info(ctx, logger.CompIssuance, "coupon.issued",
		slog.String("status", "ok"),
		slog.Int64("user_id", id),
	)
	return nil
}

// Stats counts all users and those who already got a coupon.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	total, err := s.store.CountAll(ctx)
	if err != nil {
		return Stats{}, storeErr("count all", err)
	}
	issued, err := s.store.CountIssued(ctx)
	if err != nil {
		return Stats{}, storeErr("count issued", err)
	}
	return Stats{Total: total, Issued: issued}, nil
}

// Users lists every user in order of first contact.
func (s *Service) Users(ctx context.Context) ([]User, error) {
	users, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, storeErr("list", err)
	}
	return users, nil
}
