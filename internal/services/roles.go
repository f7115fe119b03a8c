package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"tally/internal/core"
	"tally/internal/lock"
	tlog "tally/internal/log"
	"tally/internal/ports"
)

// MaxRenewalDays caps a single admin renewal.
const MaxRenewalDays = 3650

// RoleResolver answers "what may this user do in this chat right now".
// Nothing is cached: expiry and operator grants are read on every call.
type RoleResolver struct {
	store  ports.PrincipalStore
	locker lock.Locker
	rootID int64
	now    func() time.Time
	logger *slog.Logger
}

// NewRoleResolver builds a resolver. rootID 0 means no root identity.
func NewRoleResolver(store ports.PrincipalStore, locker lock.Locker, rootID int64) *RoleResolver {
	return &RoleResolver{
		store:  store,
		locker: locker,
		rootID: rootID,
		now:    time.Now,
		logger: slog.Default().With(tlog.FieldComponent, tlog.ComponentRoles),
	}
}

// WithClock replaces the time source used for expiry checks and renewals.
func (r *RoleResolver) WithClock(now func() time.Time) *RoleResolver {
	r.now = now
	return r
}

// IsRoot reports whether userID is the configured root identity.
func (r *RoleResolver) IsRoot(userID int64) bool {
	return r.rootID != 0 && userID == r.rootID
}

// Resolve returns the user's effective role in chatID. The first matching
// check wins: root, active admin, chat operator.
func (r *RoleResolver) Resolve(ctx context.Context, userID, chatID int64) (core.Role, error) {
	if r.IsRoot(userID) {
		return core.RoleRoot, nil
	}

	admin, err := r.store.GetAdmin(ctx, userID)
	if err != nil {
		return core.RoleNone, fmt.Errorf("resolve role: %w", err)
	}
	if admin != nil && admin.Active(r.now()) {
		return core.RoleAdmin, nil
	}

	op, err := r.store.GetOperator(ctx, userID, chatID)
	if err != nil {
		return core.RoleNone, fmt.Errorf("resolve role: %w", err)
	}
	if op != nil {
		return core.RoleOperator, nil
	}
	return core.RoleNone, nil
}

// Require resolves the user's role and fails with core.ErrUnauthorized when
// it is below need. The resolved role is returned either way.
func (r *RoleResolver) Require(ctx context.Context, userID, chatID int64, need core.Role) (core.Role, error) {
	have, err := r.Resolve(ctx, userID, chatID)
	if err != nil {
		return core.RoleNone, err
	}
	if !have.AtLeast(need) {
		return have, core.Denied(have, need)
	}
	return have, nil
}

// Admin returns the user's admin grant, active or not, or nil.
func (r *RoleResolver) Admin(ctx context.Context, userID int64) (*core.Admin, error) {
	a, err := r.store.GetAdmin(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load admin: %w", err)
	}
	return a, nil
}

// RenewAdmin extends the user's global admin grant by days, counted from the
// current expiry if it is still in the future and from now otherwise.
func (r *RoleResolver) RenewAdmin(ctx context.Context, userID int64, days int) (core.Admin, error) {
	if days < 1 || days > MaxRenewalDays {
		return core.Admin{}, fmt.Errorf("%w: got %d, want 1..%d", core.ErrInvalidDays, days, MaxRenewalDays)
	}

	unlock, err := r.locker.Lock(ctx, "admin:"+strconv.FormatInt(userID, 10))
	if err != nil {
		return core.Admin{}, err
	}
	defer unlock()

	existing, err := r.store.GetAdmin(ctx, userID)
	if err != nil {
		return core.Admin{}, fmt.Errorf("renew admin: %w", err)
	}

	now := r.now().UTC()
	base := now
	if existing != nil && existing.ExpireAt.After(now) {
		base = existing.ExpireAt
	}
	renewed := core.Admin{UserID: userID, ExpireAt: base.Add(time.Duration(days) * 24 * time.Hour)}

	if err := r.store.UpsertAdmin(ctx, renewed); err != nil {
		return core.Admin{}, fmt.Errorf("renew admin: %w", err)
	}

	r.logger.InfoContext(ctx, "Admin renewed",
		tlog.FieldUserID, userID,
		"days", days,
		"expire_at", renewed.ExpireAt)
	return renewed, nil
}

// ListAdmins returns the admins whose grant is still active.
func (r *RoleResolver) ListAdmins(ctx context.Context) ([]core.Admin, error) {
	all, err := r.store.ListAdmins(ctx)
	if err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	now := r.now()
	active := all[:0]
	for _, a := range all {
		if a.Active(now) {
			active = append(active, a)
		}
	}
	return active, nil
}

func (r *RoleResolver) GrantOperator(ctx context.Context, chatID, userID int64, name string) error {
	if userID == 0 {
		return fmt.Errorf("%w: missing user", core.ErrValidation)
	}
	if err := r.store.UpsertOperator(ctx, core.Operator{UserID: userID, ChatID: chatID, DisplayName: name}); err != nil {
		return fmt.Errorf("grant operator: %w", err)
	}
	r.logger.InfoContext(ctx, "Operator granted", tlog.FieldChatID, chatID, tlog.FieldUserID, userID)
	return nil
}

// RevokeOperator reports whether a grant existed.
func (r *RoleResolver) RevokeOperator(ctx context.Context, chatID, userID int64) (bool, error) {
	removed, err := r.store.DeleteOperator(ctx, userID, chatID)
	if err != nil {
		return false, fmt.Errorf("revoke operator: %w", err)
	}
	if removed {
		r.logger.InfoContext(ctx, "Operator revoked", tlog.FieldChatID, chatID, tlog.FieldUserID, userID)
	}
	return removed, nil
}

func (r *RoleResolver) ListOperators(ctx context.Context, chatID int64) ([]core.Operator, error) {
	ops, err := r.store.ListOperators(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("list operators: %w", err)
	}
	return ops, nil
}
