package service

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/sakif/fileshare/internal/apperror"
	"github.com/sakif/fileshare/internal/model"
)

// =========================================================================
// REGISTER TESTS
// =========================================================================

func TestRegister_FirstUserBecomesAdmin(t *testing.T) {
	f := newFixture(t)

	user := f.register(t, nil, "Alice", "alice@example.com", "foobar")

	if !user.Admin {
		t.Error("first registered user should be admin")
	}
	if user.ID == "" {
		t.Error("Register() did not set user.ID")
	}
	if user.Salt == "" {
		t.Error("Register() did not set user.Salt")
	}
	if user.PasswordHash == "" || user.PasswordHash == "foobar" {
		t.Error("Register() must store a hash, never the raw password")
	}
}

func TestRegister_StorageRootExistsImmediately(t *testing.T) {
	f := newFixture(t)

	user := f.register(t, nil, "Alice", "alice@example.com", "foobar")

	info, err := os.Stat(user.StorageRoot)
	if err != nil {
		t.Fatalf("storage root missing after Register(): %v", err)
	}
	if !info.IsDir() {
		t.Error("storage root is not a directory")
	}

	entries, _ := os.ReadDir(user.StorageRoot)
	if len(entries) != 0 {
		t.Errorf("fresh storage root has %d entries, want 0", len(entries))
	}
}

func TestRegister_SecondSelfRegistrationDenied(t *testing.T) {
	f := newFixture(t)
	f.register(t, nil, "Alice", "alice@example.com", "foobar")

	_, err := f.userSvc.Register(context.Background(), nil, "Eve", "eve@example.com", "foobar", "foobar")
	if !errors.Is(err, apperror.ErrUnauthorized) {
		t.Errorf("anonymous second registration error = %v, want ErrUnauthorized", err)
	}
}

func TestRegister_NonAdminCannotCreateUsers(t *testing.T) {
	f := newFixture(t)
	admin := f.register(t, nil, "Admin", "admin@example.com", "foobar")
	member := f.register(t, admin, "Member", "member@example.com", "foobar")

	_, err := f.userSvc.Register(context.Background(), member, "Eve", "eve@example.com", "foobar", "foobar")
	if !errors.Is(err, apperror.ErrForbidden) {
		t.Errorf("non-admin registration error = %v, want ErrForbidden", err)
	}
}

func TestRegister_AdminCreatedUserIsNotAdmin(t *testing.T) {
	f := newFixture(t)
	admin := f.register(t, nil, "Admin", "admin@example.com", "foobar")

	member := f.register(t, admin, "Member", "member@example.com", "foobar")
	if member.Admin {
		t.Error("only the first user should be auto-promoted to admin")
	}
}

func TestRegister_Validation(t *testing.T) {
	tests := []struct {
		name         string
		userName     string
		email        string
		password     string
		confirmation string
		wantField    string
	}{
		{"empty name", "", "a@example.com", "foobar", "foobar", "name"},
		{"name too long", strings.Repeat("x", 51), "a@example.com", "foobar", "foobar", "name"},
		{"empty email", "Alice", "", "foobar", "foobar", "email"},
		{"malformed email", "Alice", "not-an-email", "foobar", "foobar", "email"},
		{"empty password", "Alice", "a@example.com", "", "", "password"},
		{"password too short", "Alice", "a@example.com", "12345", "12345", "password"},
		{"password too long", "Alice", "a@example.com", strings.Repeat("p", 51), strings.Repeat("p", 51), "password"},
		{"confirmation mismatch", "Alice", "a@example.com", "foobar", "foobaz", "passwordConfirmation"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.userSvc.Register(context.Background(), nil, tt.userName, tt.email, tt.password, tt.confirmation)
			if !errors.Is(err, apperror.ErrValidation) {
				t.Fatalf("error = %v, want ErrValidation", err)
			}
			var appErr *apperror.AppError
			if errors.As(err, &appErr) && appErr.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", appErr.Field, tt.wantField)
			}
		})
	}
}

func TestRegister_DuplicateEmailCaseInsensitive(t *testing.T) {
	f := newFixture(t)
	admin := f.register(t, nil, "First", "User@Example.com", "foobar")

	_, err := f.userSvc.Register(context.Background(), admin, "Second", "user@example.com", "foobar", "foobar")
	if !errors.Is(err, apperror.ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation for duplicate email", err)
	}
}

// =========================================================================
// AUTHENTICATE TESTS
// =========================================================================

func TestAuthenticate_Success(t *testing.T) {
	f := newFixture(t)
	registered := f.register(t, nil, "Alice", "alice@example.com", "foobar")

	user, err := f.userSvc.Authenticate(context.Background(), "alice@example.com", "foobar")
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if user.ID != registered.ID {
		t.Errorf("ID = %q, want %q", user.ID, registered.ID)
	}
}

func TestAuthenticate_CaseInsensitiveEmail(t *testing.T) {
	f := newFixture(t)
	f.register(t, nil, "Alice", "alice@example.com", "foobar")

	if _, err := f.userSvc.Authenticate(context.Background(), "ALICE@EXAMPLE.COM", "foobar"); err != nil {
		t.Errorf("Authenticate() with different email case error = %v", err)
	}
}

func TestAuthenticate_FailuresAreIndistinguishable(t *testing.T) {
	f := newFixture(t)
	f.register(t, nil, "Alice", "alice@example.com", "foobar")

	_, errWrongPassword := f.userSvc.Authenticate(context.Background(), "alice@example.com", "wrong!")
	_, errUnknownEmail := f.userSvc.Authenticate(context.Background(), "nobody@example.com", "foobar")

	if errWrongPassword == nil || errUnknownEmail == nil {
		t.Fatal("both failures should return errors")
	}
	// Same message for both — the login endpoint must not reveal which
	// addresses have accounts.
	if errWrongPassword.Error() != errUnknownEmail.Error() {
		t.Errorf("failure messages differ: %q vs %q", errWrongPassword, errUnknownEmail)
	}
}

// =========================================================================
// UPDATE TESTS
// =========================================================================

func TestUpdate_Name(t *testing.T) {
	f := newFixture(t)
	user := f.register(t, nil, "Old Name", "alice@example.com", "foobar")

	updated, err := f.userSvc.Update(context.Background(), user, user.ID, "New Name", "", "")
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Name != "New Name" {
		t.Errorf("Name = %q, want %q", updated.Name, "New Name")
	}
}

func TestUpdate_PasswordRotatesSalt(t *testing.T) {
	f := newFixture(t)
	user := f.register(t, nil, "Alice", "alice@example.com", "foobar")
	oldSalt := user.Salt

	updated, err := f.userSvc.Update(context.Background(), user, user.ID, "", "newpassword", "newpassword")
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Salt == oldSalt {
		t.Error("password change must rotate the salt so old tokens die")
	}

	if _, err := f.userSvc.Authenticate(context.Background(), "alice@example.com", "newpassword"); err != nil {
		t.Errorf("Authenticate() with new password error = %v", err)
	}
	if _, err := f.userSvc.Authenticate(context.Background(), "alice@example.com", "foobar"); err == nil {
		t.Error("Authenticate() with old password should fail")
	}
}

func TestUpdate_OtherUsersProfileForbidden(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, nil, "Alice", "alice@example.com", "foobar")
	bob := f.register(t, alice, "Bob", "bob@example.com", "foobar")

	_, err := f.userSvc.Update(context.Background(), bob, alice.ID, "Hacked", "", "")
	if !errors.Is(err, apperror.ErrForbidden) {
		t.Errorf("error = %v, want ErrForbidden", err)
	}

	// Even the admin cannot edit someone else's profile.
	_, err = f.userSvc.Update(context.Background(), alice, bob.ID, "Renamed", "", "")
	if !errors.Is(err, apperror.ErrForbidden) {
		t.Errorf("admin edit error = %v, want ErrForbidden", err)
	}
}

// =========================================================================
// LIST / PROFILE TESTS
// =========================================================================

func TestList_AdminOnly(t *testing.T) {
	f := newFixture(t)
	admin := f.register(t, nil, "Admin", "admin@example.com", "foobar")
	member := f.register(t, admin, "Member", "member@example.com", "foobar")

	users, err := f.userSvc.List(context.Background(), admin, 0, 0)
	if err != nil {
		t.Fatalf("List() as admin error = %v", err)
	}
	if len(users) != 2 {
		t.Errorf("List() returned %d users, want 2", len(users))
	}

	if _, err := f.userSvc.List(context.Background(), member, 0, 0); !errors.Is(err, apperror.ErrForbidden) {
		t.Errorf("List() as member error = %v, want ErrForbidden", err)
	}
	if _, err := f.userSvc.List(context.Background(), nil, 0, 0); !errors.Is(err, apperror.ErrUnauthorized) {
		t.Errorf("List() anonymous error = %v, want ErrUnauthorized", err)
	}
}

func TestProfile_FiltersItemsByViewer(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, nil, "Alice", "alice@example.com", "foobar")
	bob := f.register(t, alice, "Bob", "bob@example.com", "foobar")

	mustStoreItem(t, f, alice, "public.txt", true)
	mustStoreItem(t, f, alice, "secret.txt", false)

	// The owner sees both items.
	_, mine, err := f.userSvc.Profile(context.Background(), alice, alice.ID, 0, 0)
	if err != nil {
		t.Fatalf("Profile() error = %v", err)
	}
	if len(mine) != 2 {
		t.Errorf("owner sees %d items, want 2", len(mine))
	}

	// A stranger sees only the shared one.
	_, theirs, err := f.userSvc.Profile(context.Background(), bob, alice.ID, 0, 0)
	if err != nil {
		t.Fatalf("Profile() error = %v", err)
	}
	if len(theirs) != 1 || theirs[0].Filename != "public.txt" {
		t.Errorf("stranger sees %v, want just public.txt", theirs)
	}

	// Anonymous gets the same filtered view.
	_, anon, err := f.userSvc.Profile(context.Background(), nil, alice.ID, 0, 0)
	if err != nil {
		t.Fatalf("anonymous Profile() error = %v", err)
	}
	if len(anon) != 1 {
		t.Errorf("anonymous sees %d items, want 1", len(anon))
	}
}

// =========================================================================
// DELETE TESTS
// =========================================================================

func TestDelete_SelfRemovesStorageAndItems(t *testing.T) {
	f := newFixture(t)
	admin := f.register(t, nil, "Admin", "admin@example.com", "foobar")
	user := f.register(t, admin, "Doomed", "doomed@example.com", "foobar")
	item := mustStoreItem(t, f, user, "file.txt", true)

	if err := f.userSvc.Delete(context.Background(), user, user.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if _, err := os.Stat(user.StorageRoot); !os.IsNotExist(err) {
		t.Error("storage root still exists after account deletion")
	}
	if _, err := f.users.GetByID(context.Background(), user.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Error("user record still exists after deletion")
	}
	if _, err := f.items.GetByID(context.Background(), item.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Error("item record survived the owner's deletion")
	}
}

func TestDelete_AdminCanDeleteAnyUser(t *testing.T) {
	f := newFixture(t)
	admin := f.register(t, nil, "Admin", "admin@example.com", "foobar")
	user := f.register(t, admin, "Member", "member@example.com", "foobar")

	if err := f.userSvc.Delete(context.Background(), admin, user.ID); err != nil {
		t.Fatalf("admin Delete() error = %v", err)
	}
}

func TestDelete_StrangerForbidden(t *testing.T) {
	f := newFixture(t)
	admin := f.register(t, nil, "Admin", "admin@example.com", "foobar")
	alice := f.register(t, admin, "Alice", "alice@example.com", "foobar")
	bob := f.register(t, admin, "Bob", "bob@example.com", "foobar")

	if err := f.userSvc.Delete(context.Background(), bob, alice.ID); !errors.Is(err, apperror.ErrForbidden) {
		t.Errorf("error = %v, want ErrForbidden", err)
	}
}

func TestDelete_AbortsOnUnexpectedSubdirectory(t *testing.T) {
	f := newFixture(t)
	user := f.register(t, nil, "Alice", "alice@example.com", "foobar")

	if err := os.Mkdir(user.StorageRoot+"/intruder", 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	if err := f.userSvc.Delete(context.Background(), user, user.ID); err == nil {
		t.Fatal("Delete() should abort when decommission fails")
	}

	// The record must survive an aborted deletion — files first, record
	// second, and a failure in between leaves both in place.
	if _, err := f.users.GetByID(context.Background(), user.ID); err != nil {
		t.Errorf("user record deleted despite decommission failure: %v", err)
	}
}

// mustStoreItem uploads an item through the item service.
func mustStoreItem(t *testing.T, f *fixture, owner *model.User, filename string, shared bool) *model.Item {
	t.Helper()
	item, err := f.itemSvc.Store(context.Background(), owner, filename, int64(len("content")), strings.NewReader("content"), shared)
	if err != nil {
		t.Fatalf("storing item %s: %v", filename, err)
	}
	return item
}
