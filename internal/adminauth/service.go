package adminauth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/kzarre/kzarre-backend/internal/rbac"
	pkgauth "github.com/kzarre/kzarre-backend/pkg/auth"
	"github.com/kzarre/kzarre-backend/pkg/auth/session"
	"github.com/kzarre/kzarre-backend/pkg/config"
	"github.com/kzarre/kzarre-backend/pkg/db"
	"github.com/kzarre/kzarre-backend/pkg/db/models"
	pkgerrors "github.com/kzarre/kzarre-backend/pkg/errors"
	"github.com/kzarre/kzarre-backend/pkg/security"
)

const invalidCredentialsMessage = "invalid credentials"

const tempPasswordLength = 16

// Service handles admin authentication and admin-user management.
type Service interface {
	Login(ctx context.Context, req LoginRequest) (*LoginResponse, error)
	Refresh(ctx context.Context, req RefreshRequest) (*RefreshResponse, error)
	Logout(ctx context.Context, req LogoutRequest) error
	CreateAdmin(ctx context.Context, input CreateAdminInput) (*CreateAdminResult, error)
	UpdateAdmin(ctx context.Context, id uuid.UUID, input UpdateAdminInput) (*AdminDTO, error)
	GetAdmin(ctx context.Context, id uuid.UUID) (*AdminDTO, error)
	ListAdmins(ctx context.Context) ([]AdminDTO, error)
	EffectiveCapabilities(ctx context.Context, adminID uuid.UUID) (rbac.Set, error)
}

type sessionManager interface {
	Generate(ctx context.Context, accessID string) (string, error)
	Rotate(ctx context.Context, oldAccessID, provided string) (string, string, error)
	Revoke(ctx context.Context, accessID string) error
}

type roleReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Role, error)
}

type service struct {
	repo        Repository
	roles       roleReader
	session     sessionManager
	jwtCfg      config.JWTConfig
	passwordCfg config.PasswordConfig
}

// ServiceParams bundles the admin auth dependencies.
type ServiceParams struct {
	Repo           Repository
	Roles          roleReader
	SessionManager sessionManager
	JWT            config.JWTConfig
	Password       config.PasswordConfig
}

// NewService builds the admin auth service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("admin repository required")
	}
	if params.Roles == nil {
		return nil, fmt.Errorf("role reader required")
	}
	if params.SessionManager == nil {
		return nil, fmt.Errorf("session manager required")
	}
	return &service{
		repo:        params.Repo,
		roles:       params.Roles,
		session:     params.SessionManager,
		jwtCfg:      params.JWT,
		passwordCfg: params.Password,
	}, nil
}

func (s *service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	admin, err := s.authenticate(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := s.repo.UpdateLastLogin(ctx, admin.ID, now); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record login")
	}
	admin.LastLoginAt = &now

	accessID := session.NewAccessID()
	accessToken, err := s.mintToken(admin, now, accessID)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.session.Generate(ctx, accessID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store refresh token")
	}

	return &LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Admin:        toAdminDTO(admin),
	}, nil
}

// Refresh rotates the refresh token and issues a fresh access token for the
// same admin. The expired access token is accepted solely to recover the
// session identifier.
func (s *service) Refresh(ctx context.Context, req RefreshRequest) (*RefreshResponse, error) {
	claims, err := pkgauth.ParseAccessTokenAllowExpired(s.jwtCfg, req.AccessToken)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	}
	if claims.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session id")
	}

	admin, err := s.repo.FindByID(ctx, claims.AdminID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load admin")
	}
	if !admin.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}

	newAccessID, newRefreshToken, err := s.session.Rotate(ctx, claims.ID, req.RefreshToken)
	if err != nil {
		if errors.Is(err, session.ErrInvalidRefreshToken) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid refresh token")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rotate session")
	}

	accessToken, err := s.mintToken(admin, time.Now().UTC(), newAccessID)
	if err != nil {
		return nil, err
	}
	return &RefreshResponse{
		AccessToken:  accessToken,
		RefreshToken: newRefreshToken,
	}, nil
}

func (s *service) Logout(ctx context.Context, req LogoutRequest) error {
	claims, err := pkgauth.ParseAccessTokenAllowExpired(s.jwtCfg, req.AccessToken)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	}
	if claims.ID == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session id")
	}
	if err := s.session.Revoke(ctx, claims.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke session")
	}
	return nil
}

func (s *service) CreateAdmin(ctx context.Context, input CreateAdminInput) (*CreateAdminResult, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email required")
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name required")
	}
	grants, err := rbac.ParseSet(input.Grants)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid grants")
	}
	if input.RoleID != nil {
		if _, err := s.roles.FindByID(ctx, *input.RoleID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown role")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load role")
		}
	}

	password := input.Password
	tempPassword := ""
	if password == "" {
		tempPassword, err = security.GenerateTempPassword(tempPasswordLength)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate password")
		}
		password = tempPassword
	}
	hash, err := security.HashPassword(password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	admin := &models.AdminUser{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		RoleID:       input.RoleID,
		Grants:       pq.StringArray(grants.Strings()),
		IsActive:     true,
	}
	if err := s.repo.Create(ctx, admin); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "email already in use")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create admin")
	}

	stored, err := s.repo.FindByID(ctx, admin.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load admin")
	}
	return &CreateAdminResult{
		Admin:        toAdminDTO(stored),
		TempPassword: tempPassword,
	}, nil
}

func (s *service) UpdateAdmin(ctx context.Context, id uuid.UUID, input UpdateAdminInput) (*AdminDTO, error) {
	if _, err := s.load(ctx, id); err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "name required")
		}
		updates["name"] = name
	}
	if input.RoleID != nil {
		if *input.RoleID == uuid.Nil {
			updates["role_id"] = nil
		} else {
			if _, err := s.roles.FindByID(ctx, *input.RoleID); err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown role")
				}
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load role")
			}
			updates["role_id"] = *input.RoleID
		}
	}
	if input.Grants != nil {
		grants, err := rbac.ParseSet(*input.Grants)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid grants")
		}
		updates["grants"] = pq.StringArray(grants.Strings())
	}
	if input.IsActive != nil {
		updates["is_active"] = *input.IsActive
	}
	if len(updates) > 0 {
		if err := s.repo.Update(ctx, id, updates); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update admin")
		}
	}
	return s.GetAdmin(ctx, id)
}

func (s *service) GetAdmin(ctx context.Context, id uuid.UUID) (*AdminDTO, error) {
	admin, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := toAdminDTO(admin)
	return &dto, nil
}

func (s *service) ListAdmins(ctx context.Context) ([]AdminDTO, error) {
	admins, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list admins")
	}
	out := make([]AdminDTO, 0, len(admins))
	for i := range admins {
		out = append(out, toAdminDTO(&admins[i]))
	}
	return out, nil
}

// EffectiveCapabilities resolves the union of role capabilities and direct
// grants for an admin. Inactive admins get an empty set.
func (s *service) EffectiveCapabilities(ctx context.Context, adminID uuid.UUID) (rbac.Set, error) {
	admin, err := s.load(ctx, adminID)
	if err != nil {
		return rbac.Set{}, err
	}
	if !admin.IsActive {
		return rbac.NewSet(), nil
	}
	set, err := rbac.EffectiveSet(admin)
	if err != nil {
		return rbac.Set{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "resolve capabilities")
	}
	return set, nil
}

func (s *service) authenticate(ctx context.Context, email, password string) (*models.AdminUser, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}

	admin, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load admin")
	}

	ok, err := security.VerifyPassword(password, admin.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !ok || !admin.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	return admin, nil
}

func (s *service) mintToken(admin *models.AdminUser, now time.Time, accessID string) (string, error) {
	roleName := ""
	if admin.Role != nil {
		roleName = admin.Role.Name
	}
	token, err := pkgauth.MintAccessToken(s.jwtCfg, now, pkgauth.AccessTokenPayload{
		AdminID:      admin.ID,
		Email:        admin.Email,
		RoleName:     roleName,
		IsSuperAdmin: admin.IsSuperAdmin,
		JTI:          accessID,
	})
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	return token, nil
}

func (s *service) load(ctx context.Context, id uuid.UUID) (*models.AdminUser, error) {
	admin, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "admin not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load admin")
	}
	return admin, nil
}
