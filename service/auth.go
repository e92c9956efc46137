package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"el-store/model"
	"el-store/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type RegisterInput struct {
	Login       string `json:"login"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	Password    string `json:"password"`
}

func validateAccount(in *RegisterInput) error {
	in.Login = strings.TrimSpace(in.Login)
	in.DisplayName = strings.TrimSpace(in.DisplayName)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))

	if in.Login == "" || in.DisplayName == "" || in.Email == "" || in.Password == "" {
		return invalid("all fields are required")
	}
	if utf8.RuneCountInString(in.Login) > model.MaxLoginLen {
		return invalid(fmt.Sprintf("login must be at most %d characters", model.MaxLoginLen))
	}
	if utf8.RuneCountInString(in.DisplayName) > model.MaxDisplayNameLen {
		return invalid(fmt.Sprintf("display name must be at most %d characters", model.MaxDisplayNameLen))
	}
	if !model.ValidEmail(in.Email) {
		return invalid("invalid email")
	}
	if len(in.Password) < model.MinPasswordLen {
		return invalid(fmt.Sprintf("password must be at least %d characters", model.MinPasswordLen))
	}
	return nil
}

func (s *Service) newUser(ctx context.Context, in RegisterInput, role model.Role) (model.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.opts.BcryptCost)
	if err != nil {
		return model.User{}, fmt.Errorf("hash password: %w", err)
	}
	now := s.now().UTC()
	u := model.User{
		ID:           model.NewID(),
		Login:        in.Login,
		DisplayName:  in.DisplayName,
		Email:        in.Email,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return model.User{}, invalid("a user with this login or email already exists")
		}
		return model.User{}, err
	}
	return u, nil
}

// Register creates a customer account.
func (s *Service) Register(ctx context.Context, in RegisterInput) (model.User, error) {
	if err := validateAccount(&in); err != nil {
		return model.User{}, err
	}
	exists, err := s.store.UserExists(ctx, in.Login, in.Email)
	if err != nil {
		return model.User{}, err
	}
	if exists {
		return model.User{}, invalid("a user with this login or email already exists")
	}
	u, err := s.newUser(ctx, in, model.RoleCustomer)
	if err != nil {
		return model.User{}, err
	}
	s.log.Info("user registered", zap.String("user_id", u.ID), zap.String("login", u.Login))
	return u, nil
}

// Login checks credentials. login may also be the account email.
func (s *Service) Login(ctx context.Context, login, password string) (model.User, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return model.User{}, invalid("login and password are required")
	}
	u, err := s.store.GetUserByLoginOrEmail(ctx, login)
	if errors.Is(err, store.ErrNotFound) {
		u, err = s.store.GetUserByLoginOrEmail(ctx, strings.ToLower(login))
	}
	if errors.Is(err, store.ErrNotFound) {
		return model.User{}, ErrUnauthorized
	}
	if err != nil {
		return model.User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return model.User{}, ErrUnauthorized
	}
	return u, nil
}

// StartSession opens a server-side session for u.
func (s *Service) StartSession(ctx context.Context, u model.User) (model.Session, error) {
	sess := model.Session{
		ID:        uuid.NewString(),
		UserID:    u.ID,
		Login:     u.Login,
		Role:      u.Role,
		ExpiresAt: s.now().Add(s.opts.SessionTTL).UTC(),
	}
	if err := s.store.CreateSession(ctx, sess); err != nil {
		return model.Session{}, fmt.Errorf("create session: %w", err)
	}
	return sess, nil
}

// Session returns the live session with the given id, or ErrUnauthorized.
func (s *Service) Session(ctx context.Context, id string) (model.Session, error) {
	if id == "" {
		return model.Session{}, ErrUnauthorized
	}
	sess, err := s.store.GetSession(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return model.Session{}, ErrUnauthorized
	}
	return sess, err
}

func (s *Service) Logout(ctx context.Context, id string) error {
	return s.store.DeleteSession(ctx, id)
}

// CurrentUser resolves the user behind a session. It returns nil without an
// error when there is no session or the user is gone, in which case the
// session is dropped.
func (s *Service) CurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	sess, err := s.Session(ctx, sessionID)
	if errors.Is(err, ErrUnauthorized) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	u, err := s.store.GetUserByID(ctx, sess.UserID)
	if errors.Is(err, store.ErrNotFound) {
		if err := s.store.DeleteSession(ctx, sess.ID); err != nil {
			s.log.Warn("drop orphan session", zap.Error(err))
		}
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CleanupSessions removes expired sessions and returns how many went.
func (s *Service) CleanupSessions(ctx context.Context) (int64, error) {
	return s.store.DeleteExpiredSessions(ctx)
}
