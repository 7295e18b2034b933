package handler

import (
    "context"      // provides context with cancellation for DB calls
    "database/sql" // SQL database interactions
    "errors"       // sentinel comparisons
    "net/http"     // HTTP status codes and primitives
    "net/mail"     // email syntax check
    "strings"      // string manipulation utilities
    "time"         // timeouts for DB calls

    "github.com/labstack/echo/v4" // Echo framework for HTTP routing

    "github.com/iliyamo/pharmacy-marketplace/internal/config"     // app configuration
    "github.com/iliyamo/pharmacy-marketplace/internal/database"   // transaction helper
    "github.com/iliyamo/pharmacy-marketplace/internal/middleware" // resolved identity
    "github.com/iliyamo/pharmacy-marketplace/internal/model"      // role names
    "github.com/iliyamo/pharmacy-marketplace/internal/repository" // DB repositories
    "github.com/iliyamo/pharmacy-marketplace/internal/utils"      // helper functions (hashing, token issuing)
)

const minPasswordLen = 8

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg      config.Config
	Accounts *repository.AccountRepo
}

func NewAuthHandler(cfg config.Config, a *repository.AccountRepo) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Accounts: a}
}

// ----- DTOs -----

type registerReq struct {
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Phone    *string `json:"phone"`
	Name     *string `json:"name"`
}
type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type accountPart struct {
	ID    uint64   `json:"id"`
	Email string   `json:"email"`
	Roles []string `json:"roles"`
}
type authResp struct {
	Account accountPart `json:"account"`
	Access  tokenPart   `json:"access"`
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// Register: create the account with role USER and return a token
// immediately.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "INVALID_BODY")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return badRequest(c, "INVALID_EMAIL")
	}
	if len(req.Password) < minPasswordLen {
		return badRequest(c, "WEAK_PASSWORD")
	}

	hash, err := utils.HashPassword(req.Password, h.Cfg.BcryptCost)
	if err != nil {
		return fail(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	var uid uint64
	err = database.InTx(ctx, h.Accounts.DB(), func(tx *sql.Tx) error {
		id, err := h.Accounts.CreateTx(ctx, tx, req.Email, trimmed(req.Phone), trimmed(req.Name), hash)
		if err != nil {
			return err
		}
		uid = id
		return h.Accounts.GrantRoleTx(ctx, tx, id, model.RoleUser)
	})
	if errors.Is(err, repository.ErrDuplicate) {
		return c.JSON(http.StatusConflict, echo.Map{"error": "EMAIL_EXISTS"})
	}
	if err != nil {
		return fail(c, err)
	}

	return h.issue(c, http.StatusCreated, uid, req.Email, []string{model.RoleUser})
}

// Login: verify the password and return a fresh token.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "INVALID_BODY")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return badRequest(c, "EMAIL_PASSWORD_REQUIRED")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	a, err := h.Accounts.GetByEmail(ctx, req.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "INVALID_CREDENTIALS"})
	}
	if err != nil {
		return fail(c, err)
	}
	if !utils.VerifyPassword(a.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "INVALID_CREDENTIALS"})
	}
	roles, err := h.Accounts.Roles(ctx, a.ID)
	if err != nil {
		return fail(c, err)
	}
	return h.issue(c, http.StatusOK, a.ID, a.Email, roles)
}

func (h *AuthHandler) issue(c echo.Context, status int, id uint64, email string, roles []string) error {
	if roles == nil {
		roles = []string{}
	}
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, id, email, roles, time.Duration(h.Cfg.AccessTTLMin)*time.Minute)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(status, authResp{
		Account: accountPart{ID: id, Email: email, Roles: roles},
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
	})
}

// Me: return the identity the JWT middleware resolved.
func (h *AuthHandler) Me(c echo.Context) error {
	id := middleware.IdentityFrom(c)
	if id == nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "UNAUTHORIZED"})
	}
	roles := id.Roles
	if roles == nil {
		roles = []string{}
	}
	return c.JSON(http.StatusOK, accountPart{ID: id.AccountID, Email: id.Email, Roles: roles})
}
