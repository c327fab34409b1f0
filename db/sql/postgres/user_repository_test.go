package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/forumkit/forumkit/auth"
	"github.com/forumkit/forumkit/internal/testutil/postgrescontainer"
)

var testDB *sql.DB

func TestMain(m *testing.M) {
	if err := postgrescontainer.Setup(); err != nil {
		fmt.Printf("skipping postgres integration tests: %v\n", err)
		os.Exit(0)
	}

	db, err := Open(WithDSN(postgrescontainer.DSN()))
	if err != nil {
		fmt.Printf("connect to test postgres: %v\n", err)
		_ = postgrescontainer.Teardown()
		os.Exit(1)
	}
	if err := ApplyMigrations(context.Background(), db, UserTableSchema); err != nil {
		fmt.Printf("apply migrations: %v\n", err)
		_ = db.Close()
		_ = postgrescontainer.Teardown()
		os.Exit(1)
	}
	testDB = db

	code := m.Run()

	_ = db.Close()
	_ = postgrescontainer.Teardown()
	os.Exit(code)
}

func newRepo(t *testing.T) *UserRepository {
	t.Helper()
	if _, err := testDB.Exec(`TRUNCATE users RESTART IDENTITY`); err != nil {
		t.Fatalf("truncate users: %v", err)
	}
	return NewUserRepository(testDB)
}

func TestCreateAndGetUser(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	created, err := repo.CreateUser(ctx, auth.User{
		Username: "ada",
		Email:    "ada@example.com",
		FullName: "Ada Lovelace",
		Password: "$2a$04$hash",
	})
	if err != nil {
		t.Fatalf("CreateUser error: %v", err)
	}
	if created.ID == 0 {
		t.Fatal("expected assigned ID")
	}
	if created.Role != auth.RoleUser {
		t.Errorf("Role = %q, want default USER", created.Role)
	}

	byID, err := repo.GetUserByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetUserByID error: %v", err)
	}
	if byID.Username != "ada" || byID.Email != "ada@example.com" || byID.FullName != "Ada Lovelace" {
		t.Errorf("GetUserByID = %+v", byID)
	}

	byName, err := repo.GetUserByUsername(ctx, "ada")
	if err != nil {
		t.Fatalf("GetUserByUsername error: %v", err)
	}
	if byName.ID != created.ID {
		t.Errorf("GetUserByUsername ID = %d, want %d", byName.ID, created.ID)
	}

	byEmail, err := repo.GetUserByEmail(ctx, "ada@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail error: %v", err)
	}
	if byEmail.ID != created.ID {
		t.Errorf("GetUserByEmail ID = %d, want %d", byEmail.ID, created.ID)
	}
}

func TestCreateUserUniqueness(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	if _, err := repo.CreateUser(ctx, auth.User{
		Username: "ada", Email: "ada@example.com", Password: "x",
	}); err != nil {
		t.Fatalf("CreateUser error: %v", err)
	}

	_, err := repo.CreateUser(ctx, auth.User{
		Username: "ada", Email: "other@example.com", Password: "x",
	})
	if !errors.Is(err, auth.ErrUsernameTaken) {
		t.Errorf("duplicate username = %v, want ErrUsernameTaken", err)
	}

	_, err = repo.CreateUser(ctx, auth.User{
		Username: "eve", Email: "ada@example.com", Password: "x",
	})
	if !errors.Is(err, auth.ErrEmailTaken) {
		t.Errorf("duplicate email = %v, want ErrEmailTaken", err)
	}
}

func TestGetUserMissing(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	if _, err := repo.GetUserByID(ctx, 404); !errors.Is(err, auth.ErrUserNotFound) {
		t.Errorf("GetUserByID = %v, want ErrUserNotFound", err)
	}
	if _, err := repo.GetUserByUsername(ctx, "nobody"); !errors.Is(err, auth.ErrUserNotFound) {
		t.Errorf("GetUserByUsername = %v, want ErrUserNotFound", err)
	}
	if _, err := repo.GetUserByEmail(ctx, "nobody@example.com"); !errors.Is(err, auth.ErrUserNotFound) {
		t.Errorf("GetUserByEmail = %v, want ErrUserNotFound", err)
	}
}

func TestUpdatePassword(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	user, err := repo.CreateUser(ctx, auth.User{
		Username: "ada", Email: "ada@example.com", Password: "old",
	})
	if err != nil {
		t.Fatalf("CreateUser error: %v", err)
	}

	if err := repo.UpdatePassword(ctx, user.ID, "new"); err != nil {
		t.Fatalf("UpdatePassword error: %v", err)
	}
	stored, err := repo.GetUserByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUserByID error: %v", err)
	}
	if stored.Password != "new" {
		t.Errorf("Password = %q, want new", stored.Password)
	}

	if err := repo.UpdatePassword(ctx, 404, "new"); !errors.Is(err, auth.ErrUserNotFound) {
		t.Errorf("UpdatePassword(missing) = %v, want ErrUserNotFound", err)
	}
}

func TestUpdateAvatar(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	user, err := repo.CreateUser(ctx, auth.User{
		Username: "ada", Email: "ada@example.com", Password: "x",
	})
	if err != nil {
		t.Fatalf("CreateUser error: %v", err)
	}

	if err := repo.UpdateAvatar(ctx, user.ID, "avatars/ada.png"); err != nil {
		t.Fatalf("UpdateAvatar error: %v", err)
	}
	stored, _ := repo.GetUserByID(ctx, user.ID)
	if stored.Avatar != "avatars/ada.png" {
		t.Errorf("Avatar = %q", stored.Avatar)
	}

	if err := repo.UpdateAvatar(ctx, 404, "x"); !errors.Is(err, auth.ErrUserNotFound) {
		t.Errorf("UpdateAvatar(missing) = %v, want ErrUserNotFound", err)
	}
}

// A row written with an unknown role must come back as USER, never as a
// higher privilege.
func TestUnknownRoleDegrades(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	if _, err := testDB.ExecContext(ctx,
		`INSERT INTO users (username, email, password, role) VALUES ('odd', 'odd@example.com', 'x', 'SUPERUSER')`,
	); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	user, err := repo.GetUserByUsername(ctx, "odd")
	if err != nil {
		t.Fatalf("GetUserByUsername error: %v", err)
	}
	if user.Role != auth.RoleUser {
		t.Errorf("Role = %q, want degraded USER", user.Role)
	}
}
