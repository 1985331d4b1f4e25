// Package issuance tracks which users have already received their coupon.
//
// A user moves New -> Registered -> Issued and never back. Once issued, the
// stored name is frozen and no further coupon is granted.
package issuance

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrStoreUnavailable wraps every failure reported by the Store.
	ErrStoreUnavailable = errors.New("issuance: store unavailable")
	// ErrAlreadyIssued is returned when a coupon was granted before.
	ErrAlreadyIssued = errors.New("issuance: coupon already issued")
	// ErrUserNotFound is returned by Store implementations for unknown identities.
	ErrUserNotFound = errors.New("issuance: user not found")
)

// User is the persisted record of one chat participant.
type User struct {
	Identity          int64
	DisplayName       string
	FirstSeenAt       time.Time
	HasReceivedCoupon bool
}

// State is the position of a user in the issuance lifecycle.
type State int

const (
	StateNew State = iota
	StateRegistered
	StateIssued
)

func (s State) String() string {
	switch s {
	case StateRegistered:
		return "registered"
	case StateIssued:
		return "issued"
	default:
		return "new"
	}
}

// Stats summarises the user table for the admin report.
type Stats struct {
	Total  int
	Issued int
}

// Store persists users. Implementations return ErrUserNotFound for unknown
// identities and must make Create a get-or-create.
type Store interface {
	FindByIdentity(ctx context.Context, id int64) (User, error)
	Create(ctx context.Context, id int64, name string) (User, error)
	UpdateName(ctx context.Context, id int64, name string) error
	SetIssued(ctx context.Context, id int64) error
	CountAll(ctx context.Context) (int, error)
	CountIssued(ctx context.Context) (int, error)
	ListAll(ctx context.Context) ([]User, error)
}
