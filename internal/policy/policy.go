// Package policy is the access-control decision engine. Given an actor
// (a user, or nil for anonymous), an operation, and the operation's target,
// it answers allow or deny.
//
// The rules form one flat table — each operation maps to exactly one rule,
// so there is no precedence to reason about. The package is pure: it never
// touches the database or filesystem, and it never errors on a well-formed
// request; it only decides.
//
// Every denial is one of two kinds, and the kind tells the HTTP layer what
// to do with it:
//
//	apperror.ErrUnauthorized — the actor is anonymous and signing in could
//	    change the outcome (→ 401, the API's redirect-to-sign-in)
//	apperror.ErrForbidden — the actor is signed in and still not permitted
//	    (→ 403, redirect-to-denied)
package policy

import (
	"github.com/sakif/fileshare/internal/apperror"
	"github.com/sakif/fileshare/internal/model"
)

// Operation enumerates everything an actor can ask to do.
type Operation int

const (
	CreateItem Operation = iota
	ViewItem
	EditItem
	DeleteItem
	RegisterUser
	ViewUser
	EditUser
	ListUsers
	DeleteUser
)

// String returns the operation name for logs and error messages.
func (op Operation) String() string {
	switch op {
	case CreateItem:
		return "create item"
	case ViewItem:
		return "view item"
	case EditItem:
		return "edit item"
	case DeleteItem:
		return "delete item"
	case RegisterUser:
		return "register user"
	case ViewUser:
		return "view user"
	case EditUser:
		return "edit user"
	case ListUsers:
		return "list users"
	case DeleteUser:
		return "delete user"
	}
	return "unknown"
}

// Target carries the entity an operation acts on. Only the fields relevant
// to the operation need to be set: Item for item operations, User for user
// operations, UserCount for RegisterUser (whose rule depends on whether any
// accounts exist yet).
type Target struct {
	Item      *model.Item
	User      *model.User
	UserCount int
}

// rule decides one operation. A nil error means allow; a non-nil message
// means deny, with Check translating the denial into the unauthorized or
// forbidden kind based on whether the actor is anonymous.
type rule func(actor *model.User, t Target) (allowed bool, denyMessage string)

// rules is the policy table. One entry per operation.
var rules = map[Operation]rule{
	CreateItem: func(actor *model.User, _ Target) (bool, string) {
		return actor != nil, "you must be signed in to upload items"
	},

	ViewItem: func(actor *model.User, t Target) (bool, string) {
		if t.Item.Shared {
			return true, ""
		}
		return actor != nil && actor.ID == t.Item.UserID, "this item is private"
	},

	EditItem: func(actor *model.User, t Target) (bool, string) {
		return actor != nil && actor.ID == t.Item.UserID, "only the owner may edit this item"
	},

	DeleteItem: func(actor *model.User, t Target) (bool, string) {
		return actor != nil && actor.ID == t.Item.UserID, "only the owner may delete this item"
	},

	// The first account ever created becomes the admin; once any account
	// exists, only an admin may create more. This bootstraps an admin-run
	// user-management system without a separate seeding step.
	RegisterUser: func(actor *model.User, t Target) (bool, string) {
		if t.UserCount == 0 {
			return true, ""
		}
		return actor != nil && actor.Admin, "only an admin may create new accounts"
	},

	// Profiles are public; the embedded item list is filtered per ViewItem.
	ViewUser: func(_ *model.User, _ Target) (bool, string) {
		return true, ""
	},

	EditUser: func(actor *model.User, t Target) (bool, string) {
		return actor != nil && actor.ID == t.User.ID, "you may only edit your own profile"
	},

	ListUsers: func(actor *model.User, _ Target) (bool, string) {
		return actor != nil && actor.Admin, "admin access required"
	},

	// Item deletion is owner-only, but account deletion keeps an
	// administrative escape hatch: removing an account is safety-critical
	// and must not depend on the owner being able (or willing) to do it.
	DeleteUser: func(actor *model.User, t Target) (bool, string) {
		return actor != nil && (actor.Admin || actor.ID == t.User.ID),
			"you may only delete your own account"
	},
}

// Check evaluates the policy table for (actor, op, target). It returns nil
// when the operation is allowed, and an *apperror.AppError of the
// unauthorized or forbidden kind when it is not.
func Check(actor *model.User, op Operation, t Target) error {
	allowed, message := rules[op](actor, t)
	if allowed {
		return nil
	}
	if actor == nil {
		return apperror.Unauthorized("sign in to " + op.String())
	}
	return apperror.Forbidden(message)
}
