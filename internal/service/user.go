// Package service contains the business logic layer of the application.
//
// The layering follows the usual three-tier shape:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (business layer) → validates, enforces policy, orchestrates
//	Repository (data layer)  → reads/writes the database
//
// Services receive the repository interfaces, the storage layer, and the
// auth utilities via their constructors, and know nothing about HTTP.
//
// Every operation that acts on behalf of someone takes the actor as an
// explicit parameter — a *model.User, or nil for anonymous — rather than
// reading any ambient "current user" state. The actor plus the target goes
// through the policy table exactly once per operation.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/sakif/fileshare/internal/apperror"
	"github.com/sakif/fileshare/internal/auth"
	"github.com/sakif/fileshare/internal/model"
	"github.com/sakif/fileshare/internal/policy"
	"github.com/sakif/fileshare/internal/repository"
	"github.com/sakif/fileshare/internal/storage"
)

// Validation constants.
const (
	MaxNameLength     = 50
	MinPasswordLength = 6
	MaxPasswordLength = 50
)

// emailRe accepts the usual name@host.tld shape. Deliberately simple — the
// definitive validity check for an email address is sending mail to it,
// which is out of scope; this only catches obvious typos.
var emailRe = regexp.MustCompile(`(?i)^[\w+\-.]+@[a-z\d\-.]+\.[a-z]+$`)

// UserService handles account lifecycle: registration, authentication,
// profile updates, and deletion, keeping the user's storage directory in
// lockstep with the record.
type UserService struct {
	users     repository.UserRepository
	items     repository.ItemRepository
	store     *storage.Store
	passwords *auth.PasswordService
	logger    *slog.Logger
}

// NewUserService creates a UserService with all required dependencies.
func NewUserService(
	users repository.UserRepository,
	items repository.ItemRepository,
	store *storage.Store,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *UserService {
	return &UserService{
		users:     users,
		items:     items,
		store:     store,
		passwords: passwords,
		logger:    logger,
	}
}

// Register creates a new account on behalf of actor (nil for anonymous).
//
// Who may register is policy, not validation: self-registration is open
// only while zero accounts exist; after that only an admin may create
// users. The very first account is auto-promoted to admin, which
// bootstraps an admin-run system without a seeding step.
//
// The storage directory is provisioned before the record is inserted, so
// at no point does a user record exist without its directory. If the
// insert then fails, the directory is left in place — provisioning is
// idempotent and derived from the email, so removing it could destroy the
// files of a concurrently created account with the same address.
func (s *UserService) Register(ctx context.Context, actor *model.User, name, email, password, confirmation string) (*model.User, error) {
	count, err := s.users.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting users: %w", err)
	}

	if err := policy.Check(actor, policy.RegisterUser, policy.Target{UserCount: count}); err != nil {
		return nil, err
	}

	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)

	if name == "" {
		return nil, apperror.ValidationFailed("name", "name is required")
	}
	if len(name) > MaxNameLength {
		return nil, apperror.ValidationFailed("name",
			fmt.Sprintf("name must be %d characters or less", MaxNameLength))
	}
	if email == "" {
		return nil, apperror.ValidationFailed("email", "email is required")
	}
	if !emailRe.MatchString(email) {
		return nil, apperror.ValidationFailed("email", "email address is not valid")
	}
	if err := validatePassword(password, confirmation); err != nil {
		return nil, err
	}

	// Pre-check for a taken address to return a clean field error. The
	// NOCASE unique index remains the backstop for a concurrent duplicate.
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, apperror.ValidationFailed("email", "email address is already taken")
	} else if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("checking email: %w", err)
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, apperror.ValidationFailed("password", err.Error())
	}
	salt, err := auth.NewSalt()
	if err != nil {
		return nil, fmt.Errorf("generating salt: %w", err)
	}

	root, err := s.store.Provision(email)
	if err != nil {
		return nil, fmt.Errorf("provisioning storage: %w", err)
	}

	user := &model.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Salt:         salt,
		StorageRoot:  root,
		Admin:        count == 0, // first user ever becomes the admin
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user registered",
		slog.String("id", user.ID),
		slog.String("email", user.Email),
		slog.Bool("admin", user.Admin),
	)

	return user, nil
}

// Authenticate verifies an email/password pair and returns the account on
// success. Unknown email and wrong password produce the identical error,
// so callers cannot be used as an oracle for which addresses have
// accounts.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	invalid := apperror.Unauthorized("invalid email or password")

	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, invalid
		}
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		return nil, invalid
	}

	return user, nil
}

// GetByID returns the user for the given internal ID.
func (s *UserService) GetByID(ctx context.Context, id string) (*model.User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "user ID is required")
	}
	return s.users.GetByID(ctx, id)
}

// Profile returns a user together with the items the actor is allowed to
// see on their profile. The profile itself is public; the embedded item
// list is filtered by the item-visibility rule, so owners see everything
// and everyone else sees shared items only.
func (s *UserService) Profile(ctx context.Context, actor *model.User, id string, limit, offset int) (*model.User, []model.Item, error) {
	user, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	if err := policy.Check(actor, policy.ViewUser, policy.Target{User: user}); err != nil {
		return nil, nil, err
	}

	filter := repository.ItemFilter{UserID: user.ID}
	if actor == nil || actor.ID != user.ID {
		shared := true
		filter.Shared = &shared
	}

	items, err := s.items.ListByUser(ctx, filter, repository.ListOptions{Limit: limit, Offset: offset})
	if err != nil {
		return nil, nil, fmt.Errorf("listing profile items: %w", err)
	}

	return user, items, nil
}

// List returns all users, newest first. Admin only.
func (s *UserService) List(ctx context.Context, actor *model.User, limit, offset int) ([]model.User, error) {
	if err := policy.Check(actor, policy.ListUsers, policy.Target{}); err != nil {
		return nil, err
	}

	users, err := s.users.List(ctx, repository.ListOptions{Limit: limit, Offset: offset})
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}

	return users, nil
}

// Update edits the target user's own profile: display name and password.
// Email (and therefore the storage root derived from it) is immutable.
// An empty field means "leave unchanged".
//
// Changing the password rotates the user's salt, which invalidates every
// session token issued before the change.
func (s *UserService) Update(ctx context.Context, actor *model.User, id, name, password, confirmation string) (*model.User, error) {
	user, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := policy.Check(actor, policy.EditUser, policy.Target{User: user}); err != nil {
		return nil, err
	}

	if name = strings.TrimSpace(name); name != "" {
		if len(name) > MaxNameLength {
			return nil, apperror.ValidationFailed("name",
				fmt.Sprintf("name must be %d characters or less", MaxNameLength))
		}
		user.Name = name
	}

	if password != "" {
		if err := validatePassword(password, confirmation); err != nil {
			return nil, err
		}
		hash, err := s.passwords.Hash(password)
		if err != nil {
			return nil, apperror.ValidationFailed("password", err.Error())
		}
		salt, err := auth.NewSalt()
		if err != nil {
			return nil, fmt.Errorf("generating salt: %w", err)
		}
		user.PasswordHash = hash
		user.Salt = salt
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user updated", slog.String("id", user.ID))
	return user, nil
}

// Delete destroys an account: every file in the user's storage directory,
// the directory itself, all their item records (via the database cascade),
// and finally the user record. Allowed for the user themselves or an
// admin.
//
// Order matters. The filesystem is decommissioned before the record is
// deleted, and a decommission failure aborts the whole operation — a user
// record must never outlive its files silently, and a directory we don't
// fully understand (unexpected subdirectories) must never be destroyed on
// autopilot.
func (s *UserService) Delete(ctx context.Context, actor *model.User, id string) error {
	user, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := policy.Check(actor, policy.DeleteUser, policy.Target{User: user}); err != nil {
		return err
	}

	if err := s.store.Decommission(user.StorageRoot); err != nil {
		s.logger.Error("storage decommission failed",
			slog.String("userID", user.ID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("decommissioning storage: %w", err)
	}

	if err := s.users.Delete(ctx, user.ID); err != nil {
		return err
	}

	s.logger.Info("user deleted",
		slog.String("id", user.ID),
		slog.String("by", actor.ID),
	)
	return nil
}

// validatePassword enforces the password rules shared by registration and
// profile update.
func validatePassword(password, confirmation string) error {
	if password == "" {
		return apperror.ValidationFailed("password", "password is required")
	}
	if len(password) < MinPasswordLength {
		return apperror.ValidationFailed("password",
			fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}
	if len(password) > MaxPasswordLength {
		return apperror.ValidationFailed("password",
			fmt.Sprintf("password must be %d characters or less", MaxPasswordLength))
	}
	if password != confirmation {
		return apperror.ValidationFailed("passwordConfirmation", "password confirmation does not match")
	}
	return nil
}
