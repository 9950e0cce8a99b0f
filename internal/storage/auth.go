package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"planboard/internal/model"
	"planboard/internal/store"
)

// credentials is what the local store remembers about an account so
// that sign-in keeps working without the backend. The password is kept
// verbatim; the local store is single-user and sits on the user's own
// disk.
type credentials struct {
	User     model.User `json:"user"`
	Password string     `json:"password"`
}

// Login signs the user in. Online, the backend authenticates; if it is
// unreachable the session demotes and the local account takes over: the
// stored password is checked, and a first-ever sign-in on this device
// creates the account on the spot. A wrong password is a wrong password
// in either mode and never changes the operating mode.
func (s *Service) Login(ctx context.Context, email, password string) (*model.User, error) {
	r := s.currentRemote()
	if r == nil {
		return s.localLogin(ctx, email, password)
	}

	u, err := r.SignIn(ctx, email, password)
	if err != nil {
		if store.Demotes(err) {
			s.demote(err)
			return s.localLogin(ctx, email, password)
		}
		return nil, fmt.Errorf("login: %w", err)
	}

	if err := s.setUser(ctx, u); err != nil {
		return nil, err
	}
	if err := s.storeCredentials(ctx, *u, password); err != nil {
		s.log.Warn().Err(err).Msg("could not store offline credentials")
	}
	return u, nil
}

// Register creates an account. Offline registration creates a local
// account that exists only on this device.
func (s *Service) Register(ctx context.Context, name, email, password string) (*model.User, error) {
	r := s.currentRemote()
	if r == nil {
		return s.localRegister(ctx, name, email, password)
	}

	u, err := r.SignUp(ctx, name, email, password)
	if err != nil {
		if store.Demotes(err) {
			s.demote(err)
			return s.localRegister(ctx, name, email, password)
		}
		return nil, fmt.Errorf("register: %w", err)
	}

	if err := s.setUser(ctx, u); err != nil {
		return nil, err
	}
	if err := s.storeCredentials(ctx, *u, password); err != nil {
		s.log.Warn().Err(err).Msg("could not store offline credentials")
	}
	return u, nil
}

// Logout ends the session. The backend sign-out is best effort; local
// board data stays put so the next sign-in finds it.
func (s *Service) Logout(ctx context.Context) error {
	if r := s.currentRemote(); r != nil {
		if err := r.SignOut(ctx); err != nil {
			s.log.Warn().Err(err).Msg("remote sign-out failed")
		}
	}
	s.mu.Lock()
	s.user = nil
	s.mu.Unlock()
	if err := s.local.Delete(ctx, store.KeyUser); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

func (s *Service) localLogin(ctx context.Context, email, password string) (*model.User, error) {
	b, err := s.local.Get(ctx, store.CredentialKey(email))
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if b == nil {
		// Nothing stored yet. A fresh install has no account to check
		// against, so the first offline sign-in creates one from the
		// address and remembers the password.
		return s.localRegister(ctx, nameFromEmail(email), email, password)
	}
	var cred credentials
	if err := json.Unmarshal(b, &cred); err != nil {
		return nil, fmt.Errorf("login: decode credentials: %w", err)
	}
	if cred.Password != password {
		return nil, fmt.Errorf("login: %w", store.ErrInvalidCredentials)
	}
	if err := s.setUser(ctx, &cred.User); err != nil {
		return nil, err
	}
	u := cred.User
	return &u, nil
}

func (s *Service) localRegister(ctx context.Context, name, email, password string) (*model.User, error) {
	existing, err := s.local.Get(ctx, store.CredentialKey(email))
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("register: account for %s already stored: %w", email, store.ErrInvalidCredentials)
	}
	u := &model.User{
		ID:    model.NewUserID(),
		Name:  name,
		Email: email,
	}
	if err := s.setUser(ctx, u); err != nil {
		return nil, err
	}
	if err := s.storeCredentials(ctx, *u, password); err != nil {
		return nil, err
	}
	out := *u
	return &out, nil
}

func nameFromEmail(email string) string {
	if at := strings.IndexByte(email, '@'); at > 0 {
		return email[:at]
	}
	return email
}

func (s *Service) setUser(ctx context.Context, u *model.User) error {
	b, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	if err := s.local.Put(ctx, store.KeyUser, b); err != nil {
		return fmt.Errorf("persist user: %w", err)
	}
	s.mu.Lock()
	cp := *u
	s.user = &cp
	s.mu.Unlock()
	return nil
}

func (s *Service) storeCredentials(ctx context.Context, u model.User, password string) error {
	b, err := json.Marshal(credentials{User: u, Password: password})
	if err != nil {
		return err
	}
	return s.local.Put(ctx, store.CredentialKey(u.Email), b)
}
