package auth

import (
	"context"
	"errors"
)

var (
	ErrUserNotFound       = errors.New("auth: user not found")
	ErrUsernameTaken      = errors.New("auth: username already in use")
	ErrEmailTaken         = errors.New("auth: email already in use")
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrUserInvalidInput   = errors.New("auth: invalid user input")
)

// User models the persisted account record.
type User struct {
	ID       int64
	Username string
	Email    string
	FullName string
	Password string // bcrypt encoded
	Role     Role
	Avatar   string
}

// Principal projects the account onto the request-scoped identity value.
func (u User) Principal() Principal {
	display := u.FullName
	if display == "" {
		display = u.Username
	}
	return Principal{
		ID:          u.ID,
		Username:    u.Username,
		Role:        u.Role,
		DisplayName: display,
		Avatar:      u.Avatar,
	}
}

// UserRepository abstracts account persistence so callers can map to any
// table schema.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) (User, error)
	GetUserByID(ctx context.Context, id int64) (User, error)
	GetUserByUsername(ctx context.Context, username string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	UpdatePassword(ctx context.Context, id int64, encoded string) error
}

// UserService orchestrates registration, credential checks, and principal
// lookups on top of a repository. It satisfies PrincipalStore so the
// authentication middleware can consume it directly.
type UserService struct {
	repo   UserRepository
	hasher PasswordHasher
}

func NewUserService(repo UserRepository, hasher PasswordHasher) (*UserService, error) {
	if repo == nil || hasher == nil {
		return nil, ErrUserInvalidInput
	}
	return &UserService{repo: repo, hasher: hasher}, nil
}

// Register hashes the password and persists a new USER-role account.
func (s *UserService) Register(ctx context.Context, username, email string, plainPassword []byte) (User, error) {
	if username == "" || email == "" {
		return User{}, ErrUserInvalidInput
	}
	encoded, err := s.hasher.Hash(ctx, plainPassword)
	if err != nil {
		return User{}, err
	}
	return s.repo.CreateUser(ctx, User{
		Username: username,
		Email:    email,
		Password: encoded,
		Role:     RoleUser,
	})
}

// Authenticate checks username/password and returns the account's principal.
// A missing user and a wrong password both report ErrInvalidCredentials so
// the login surface cannot be used to probe for usernames.
func (s *UserService) Authenticate(ctx context.Context, username string, plainPassword []byte) (Principal, error) {
	if username == "" || len(plainPassword) == 0 {
		return Principal{}, ErrInvalidCredentials
	}
	user, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return Principal{}, ErrInvalidCredentials
		}
		return Principal{}, err
	}
	if err := s.hasher.Compare(ctx, plainPassword, user.Password); err != nil {
		if errors.Is(err, ErrPasswordMismatch) {
			return Principal{}, ErrInvalidCredentials
		}
		return Principal{}, err
	}
	return user.Principal(), nil
}

// ChangePassword verifies the current password before storing a new hash.
func (s *UserService) ChangePassword(ctx context.Context, id int64, current, next []byte) error {
	user, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.hasher.Compare(ctx, current, user.Password); err != nil {
		if errors.Is(err, ErrPasswordMismatch) {
			return ErrInvalidCredentials
		}
		return err
	}
	encoded, err := s.hasher.Hash(ctx, next)
	if err != nil {
		return err
	}
	return s.repo.UpdatePassword(ctx, id, encoded)
}

// FindByID implements PrincipalStore.
func (s *UserService) FindByID(ctx context.Context, id int64) (Principal, error) {
	user, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return Principal{}, ErrPrincipalNotFound
		}
		return Principal{}, err
	}
	return user.Principal(), nil
}
