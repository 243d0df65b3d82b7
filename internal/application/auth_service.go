package application

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/account-service/internal/domain/entity"
	"github.com/oksasatya/account-service/internal/domain/errs"
	"github.com/oksasatya/account-service/internal/domain/readmodel"
	repo "github.com/oksasatya/account-service/internal/domain/repository"
	"github.com/oksasatya/account-service/pkg/helpers"
)

type AuthService struct {
	Store   repo.EventStore
	Queries *AccountQueries
	Hasher  PasswordHasher
	JWT     *helpers.JWTManager
	Logger  *logrus.Logger
}

type TokenPair struct {
	AccessToken        string
	AccessTokenExpiry  time.Time
	RefreshToken       string
	RefreshTokenExpiry time.Time
}

type LoginResult struct {
	Account *readmodel.Account
	Tokens  TokenPair
}

func NewAuthService(store repo.EventStore, queries *AccountQueries, hasher PasswordHasher, jwt *helpers.JWTManager, logger *logrus.Logger) *AuthService {
	return &AuthService{Store: store, Queries: queries, Hasher: hasher, JWT: jwt, Logger: logger}
}

// Login checks the password of an approved, unblocked account and issues
// tokens carrying its current roles.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	a, err := s.activeByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if !s.Hasher.Verify(password, a.PasswordHash()) {
		if s.Logger != nil {
			s.Logger.WithField("account_id", a.ID()).Info("login rejected: wrong password")
		}
		return nil, errs.ErrInvalidCredentials
	}
	return s.issue(a)
}

// Refresh reissues tokens from a refresh token. Roles are read again so
// grants made since login take effect.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*LoginResult, error) {
	claims, err := s.JWT.ParseRefreshToken(refreshToken)
	if err != nil {
		return nil, errs.ErrInvalidCredentials
	}
	a, err := s.load(ctx, claims.AccountID)
	if err != nil {
		return nil, err
	}
	return s.issue(a)
}

func (s *AuthService) activeByEmail(ctx context.Context, email string) (*entity.Account, error) {
	id, found, err := s.Queries.lookupEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errs.ErrInvalidCredentials
	}
	return s.load(ctx, id)
}

func (s *AuthService) load(ctx context.Context, id string) (*entity.Account, error) {
	records, err := s.Store.Events(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, errs.ErrInvalidCredentials
	}
	a, err := entity.LoadAccount(records)
	if err != nil {
		return nil, err
	}
	if a.IsDeleted() || a.IsBlocked() || !a.Approved() {
		if s.Logger != nil {
			s.Logger.WithFields(logrus.Fields{
				"account_id": id,
				"deleted":    a.IsDeleted(),
				"blocked":    a.IsBlocked(),
				"approved":   a.Approved(),
			}).Info("login rejected: account inactive")
		}
		return nil, errs.ErrInvalidCredentials
	}
	return a, nil
}

func (s *AuthService) issue(a *entity.Account) (*LoginResult, error) {
	access, aexp, err := s.JWT.GenerateAccessToken(a.ID(), a.Roles())
	if err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("account_id", a.ID()).Error("generate access token failed")
		}
		return nil, err
	}
	refresh, rexp, err := s.JWT.GenerateRefreshToken(a.ID())
	if err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("account_id", a.ID()).Error("generate refresh token failed")
		}
		return nil, err
	}
	return &LoginResult{
		Account: readmodel.FromAggregate(a),
		Tokens:  TokenPair{AccessToken: access, AccessTokenExpiry: aexp, RefreshToken: refresh, RefreshTokenExpiry: rexp},
	}, nil
}
