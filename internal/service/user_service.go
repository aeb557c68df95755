package service

import (
	"context"
	"strings"

	"estatehub/internal/cache"
	"estatehub/internal/middleware"
	"estatehub/internal/models"
	"estatehub/internal/repository"
	"estatehub/internal/validation"

	"golang.org/x/crypto/bcrypt"
)

const maxNameLength = 100

type UserService struct {
	userRepo repository.UserRepository
	auth     *middleware.Authenticator
}

type SignupInput struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone"`
}

type UpdateProfileInput struct {
	UserID uint
	Name   *string
	Phone  *string
}

// Session is a signed-in user with the issued token.
type Session struct {
	Token  string             `json:"token"`
	User   *models.User       `json:"user"`
	Claims *middleware.Claims `json:"-"`
}

type UserPage struct {
	Users      []models.User     `json:"users"`
	Pagination models.Pagination `json:"pagination"`
}

func NewUserService(userRepo repository.UserRepository, auth *middleware.Authenticator) *UserService {
	return &UserService{userRepo: userRepo, auth: auth}
}

func (s *UserService) Signup(ctx context.Context, in SignupInput) (*Session, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))

	if in.Name == "" {
		return nil, models.NewValidationError("Name is required")
	}
	if !validation.CheckLength(in.Name, maxNameLength) {
		return nil, models.NewValidationError("Name too long (max 100 characters)")
	}
	if err := validation.ValidateUsername(in.Username); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateEmail(in.Email); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidatePhone(in.Phone); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	existing, err := s.userRepo.GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewConflictError("Email is already registered", nil)
	}
	existing, err = s.userRepo.GetByUsername(ctx, in.Username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewConflictError("Username is already taken", nil)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	user := &models.User{
		Name:     validation.StripTags(in.Name),
		Username: in.Username,
		Email:    in.Email,
		Password: string(hash),
		Phone:    in.Phone,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	return s.issue(user)
}

// Login verifies the password and issues a token.
func (s *UserService) Login(ctx context.Context, email, password string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, models.NewValidationError("Email and password are required")
	}
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.NewUnauthorizedError("Invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, models.NewUnauthorizedError("Invalid credentials")
	}
	return s.issue(user)
}

func (s *UserService) issue(user *models.User) (*Session, error) {
	token, claims, err := s.auth.Issue(user)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &Session{Token: token, User: user, Claims: claims}, nil
}

// Logout revokes the presented token until it expires.
func (s *UserService) Logout(ctx context.Context, claims *middleware.Claims) error {
	if claims == nil {
		return nil
	}
	if err := s.auth.Revoke(ctx, claims); err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// Me returns the full record of the caller, email included.
func (s *UserService) Me(ctx context.Context, userID uint) (*models.User, error) {
	return s.userRepo.GetByID(ctx, userID)
}

func (s *UserService) UpdateMe(ctx context.Context, in UpdateProfileInput) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, models.NewValidationError("Name is required")
		}
		if !validation.CheckLength(name, maxNameLength) {
			return nil, models.NewValidationError("Name too long (max 100 characters)")
		}
		user.Name = validation.StripTags(name)
	}
	if in.Phone != nil {
		phone := strings.TrimSpace(*in.Phone)
		if err := validation.ValidatePhone(phone); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		user.Phone = phone
	}
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// GetUser returns a public profile, served from Redis when warm.
func (s *UserService) GetUser(ctx context.Context, id uint) (*models.User, error) {
	return cache.Aside(ctx, cache.UserProfileKey(id), cache.UserProfileTTL, func(ctx context.Context) (*models.User, error) {
		user, err := s.userRepo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		public := *user
		public.Email = ""
		public.Phone = ""
		return &public, nil
	})
}

func (s *UserService) ListUsers(ctx context.Context, actor models.Principal, search string, page, limit int) (*UserPage, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	p := repository.Page{Page: page, Limit: limit}.Normalize(20, 100)
	users, total, err := s.userRepo.List(ctx, strings.TrimSpace(search), p)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []models.User{}
	}
	return &UserPage{Users: users, Pagination: models.NewPagination(p.Page, p.Limit, total)}, nil
}

// SetAdmin promotes or demotes a user. Admins cannot demote themselves.
func (s *UserService) SetAdmin(ctx context.Context, actor models.Principal, targetID uint, isAdmin bool) (*models.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if !isAdmin && targetID == actor.ID {
		return nil, models.NewInvalidOperationError("Admins cannot demote themselves")
	}
	if err := s.userRepo.SetAdmin(ctx, targetID, isAdmin); err != nil {
		return nil, err
	}
	return s.userRepo.GetByID(ctx, targetID)
}

func (s *UserService) VerifyUser(ctx context.Context, actor models.Principal, targetID uint) (*models.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := s.userRepo.SetVerified(ctx, targetID, true); err != nil {
		return nil, err
	}
	return s.userRepo.GetByID(ctx, targetID)
}

// RoleOf is the role lookup installed on the authenticator.
func (s *UserService) RoleOf(ctx context.Context, userID uint) (models.Role, error) {
	return s.userRepo.RoleOf(ctx, userID)
}
