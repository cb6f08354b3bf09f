package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AnshRaj112/rockhunter-backend/internal/models"
	"github.com/AnshRaj112/rockhunter-backend/internal/store"
	"github.com/AnshRaj112/rockhunter-backend/pkg/utils"
)

var (
	ErrUsernameTaken      = errors.New("Username already exists")
	ErrEmailTaken         = errors.New("Email already registered")
	ErrInvalidCredentials = errors.New("Invalid username/email or password")
	ErrNotSignedIn        = errors.New("not signed in")
)

// IdentityService keeps user accounts and the signed-in user in the local store.
type IdentityService struct {
	mu  sync.Mutex
	kv  store.KV
	now func() time.Time
}

func NewIdentityService(kv store.KV) *IdentityService {
	return &IdentityService{kv: kv, now: time.Now}
}

// SignUp creates an account and signs it in. Nothing is stored when any
// check fails.
func (s *IdentityService) SignUp(username, email, password string) (models.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)

	if err := utils.ValidateUsername(username); err != nil {
		return models.User{}, err
	}
	if err := utils.ValidateEmail(email); err != nil {
		return models.User{}, err
	}
	if err := utils.ValidatePassword(password); err != nil {
		return models.User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.loadUsers()
	if err != nil {
		return models.User{}, err
	}
	for _, u := range users {
		if strings.EqualFold(u.Username, username) {
			return models.User{}, ErrUsernameTaken
		}
		if utils.NormalizeEmail(u.Email) == utils.NormalizeEmail(email) {
			return models.User{}, ErrEmailTaken
		}
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}

	user := models.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		JoinDate:     s.now().UTC(),
	}
	users = append(users, user)
	if err := s.saveUsers(users); err != nil {
		return models.User{}, err
	}
	if err := s.setCurrent(user); err != nil {
		return models.User{}, err
	}
	return user.Public(), nil
}

// SignIn accepts either the username or the email as the login.
func (s *IdentityService) SignIn(login, password string) (models.User, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return models.User{}, ErrInvalidCredentials
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.loadUsers()
	if err != nil {
		return models.User{}, err
	}
	for _, u := range users {
		if !strings.EqualFold(u.Username, login) && utils.NormalizeEmail(u.Email) != utils.NormalizeEmail(login) {
			continue
		}
		ok, err := utils.VerifyPassword(password, u.PasswordHash)
		if err != nil || !ok {
			return models.User{}, ErrInvalidCredentials
		}
		if err := s.setCurrent(u); err != nil {
			return models.User{}, err
		}
		return u.Public(), nil
	}
	return models.User{}, ErrInvalidCredentials
}

func (s *IdentityService) SignOut() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kv.Remove(store.CurrentUserKey)
}

// CurrentUser returns the signed-in user, or nil when nobody is.
func (s *IdentityService) CurrentUser() (*models.User, error) {
	raw, ok, err := s.kv.Get(store.CurrentUserKey)
	if err != nil {
		return nil, err
	}
	if !ok || raw == "" {
		return nil, nil
	}
	var user models.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return nil, fmt.Errorf("decode %s: %w", store.CurrentUserKey, err)
	}
	return &user, nil
}

// Profile returns the signed-in user's rocks and counts.
func (s *IdentityService) Profile(rocks []models.Rock) (models.Profile, error) {
	user, err := s.CurrentUser()
	if err != nil {
		return models.Profile{}, err
	}
	if user == nil {
		return models.Profile{}, ErrNotSignedIn
	}
	return models.ProfileFor(*user, rocks), nil
}

func (s *IdentityService) loadUsers() ([]models.User, error) {
	raw, ok, err := s.kv.Get(store.UsersKey)
	if err != nil {
		return nil, err
	}
	if !ok || raw == "" {
		return nil, nil
	}
	var users []models.User
	if err := json.Unmarshal([]byte(raw), &users); err != nil {
		return nil, fmt.Errorf("decode %s: %w", store.UsersKey, err)
	}
	return users, nil
}

func (s *IdentityService) saveUsers(users []models.User) error {
	data, err := json.Marshal(users)
	if err != nil {
		return fmt.Errorf("encode users: %w", err)
	}
	return s.kv.Set(store.UsersKey, string(data))
}

// setCurrent stores the session copy of u, without the password hash.
func (s *IdentityService) setCurrent(u models.User) error {
	data, err := json.Marshal(u.Public())
	if err != nil {
		return fmt.Errorf("encode current user: %w", err)
	}
	return s.kv.Set(store.CurrentUserKey, string(data))
}
