package services

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/nyaruka/phonenumbers"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/diewo77/freelance-desk/auth"
	"github.com/diewo77/freelance-desk/internal/apperr"
	"github.com/diewo77/freelance-desk/internal/db"
	"github.com/diewo77/freelance-desk/internal/mail"
	"github.com/diewo77/freelance-desk/internal/models"
	"github.com/diewo77/freelance-desk/internal/oauth"
	"github.com/diewo77/freelance-desk/validation"
)

const minPasswordLen = 8

// Messages surfaced by account operations.
const (
	MsgUserNotFound       = "User not found"
	MsgUnverified         = "Please verify your email before logging in"
	MsgInvalidCredentials = "Invalid credentials"
	MsgInvalidToken       = "Invalid token"
	MsgTokenExpired       = "Token expired"
	MsgWrongPassword      = "Current password is incorrect"
)

var ErrInvalidPhone = errors.New("invalid phone number")

// Identity is the minimal view of an authenticated user.
type Identity struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func identityOf(u *models.User) Identity {
	return Identity{ID: u.ID, Name: u.Name, Email: u.Email}
}

// AccountsConfig tunes the account service.
type AccountsConfig struct {
	PhoneRegion string // default region for numbers without a country code
	BaseURL     string // absolute origin used in emailed links
	HashCost    int    // bcrypt cost; 0 means bcrypt.DefaultCost
}

// Accounts handles credential login, signup and the token-based account
// flows (email verification and password reset).
type Accounts struct {
	db     *gorm.DB
	tokens *auth.Tokens
	mailer mail.Mailer
	log    *zap.Logger
	cfg    AccountsConfig
	now    func() time.Time
}

func NewAccounts(db *gorm.DB, tokens *auth.Tokens, mailer mail.Mailer, log *zap.Logger, cfg AccountsConfig) *Accounts {
	if cfg.HashCost == 0 {
		cfg.HashCost = bcrypt.DefaultCost
	}
	if cfg.PhoneRegion == "" {
		cfg.PhoneRegion = "US"
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Accounts{db: db, tokens: tokens, mailer: mailer, log: log, cfg: cfg, now: time.Now}
}

// WithClock replaces the time source used for persisted token expiry.
func (a *Accounts) WithClock(now func() time.Time) *Accounts {
	a.now = now
	return a
}

// NormalizePhone parses raw in region and returns it in E.164 form.
func NormalizePhone(raw, region string) (string, error) {
	num, err := phonenumbers.Parse(strings.TrimSpace(raw), region)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return "", ErrInvalidPhone
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

func normalizeEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// findByIdentifier looks up by email when identifier contains "@",
// otherwise by phone. An unparseable phone is reported as not found.
func (a *Accounts) findByIdentifier(ctx context.Context, identifier string) (*models.User, error) {
	var u models.User
	q := a.db.WithContext(ctx)
	if strings.Contains(identifier, "@") {
		q = q.Where("email = ?", normalizeEmail(identifier))
	} else {
		phone, err := NormalizePhone(identifier, a.cfg.PhoneRegion)
		if err != nil {
			return nil, apperr.NotFound(MsgUserNotFound)
		}
		q = q.Where("phone = ?", phone)
	}
	if err := q.First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound(MsgUserNotFound)
		}
		return nil, apperr.Internal("lookup user", err)
	}
	return &u, nil
}

// Authenticate checks a login attempt. Failures are reported in the order
// not found, unverified, wrong password.
func (a *Accounts) Authenticate(ctx context.Context, identifier, password string) (Identity, error) {
	u, err := a.findByIdentifier(ctx, identifier)
	if err != nil {
		return Identity{}, err
	}
	if !u.Verified {
		return Identity{}, apperr.Forbidden(MsgUnverified)
	}
	if u.Password == "" || bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) != nil {
		return Identity{}, apperr.Unauthorized(MsgInvalidCredentials)
	}
	return identityOf(u), nil
}

// SignupInput is the registration request.
type SignupInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone,omitempty"`
}

// Signup creates an unverified credentials account and emails a
// verification link.
func (a *Accounts) Signup(ctx context.Context, in SignupInput) (Identity, error) {
	in.Email = normalizeEmail(in.Email)
	in.Name = strings.TrimSpace(in.Name)

	v := make(validation.Violations)
	validation.Required("name", in.Name, v)
	validation.Required("email", in.Email, v)
	validation.Email("email", in.Email, v)
	validation.Required("password", in.Password, v)
	if in.Password != "" {
		validation.MinLen("password", in.Password, minPasswordLen, v)
	}
	var phone *string
	if strings.TrimSpace(in.Phone) != "" {
		p, err := NormalizePhone(in.Phone, a.cfg.PhoneRegion)
		if err != nil {
			v["phone"] = "invalid_phone"
		} else {
			phone = &p
		}
	}
	if !v.Empty() {
		return Identity{}, apperr.Validation("Invalid signup data", v)
	}

	if err := a.registrationConflict(ctx, in.Email, phone); err != nil {
		return Identity{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), a.cfg.HashCost)
	if err != nil {
		return Identity{}, apperr.Internal("hash password", err)
	}
	u := models.User{
		Name:     in.Name,
		Email:    in.Email,
		Phone:    phone,
		Password: string(hash),
		Provider: models.ProviderCredentials,
	}
	if err := a.db.WithContext(ctx).Create(&u).Error; err != nil {
		if db.IsDuplicate(err) {
			// Lost a race with a concurrent signup; report the column that collided.
			if cerr := a.registrationConflict(ctx, in.Email, phone); cerr != nil {
				return Identity{}, cerr
			}
			return Identity{}, apperr.Conflict("Account already exists")
		}
		return Identity{}, apperr.Internal("create user", err)
	}

	token, _, err := a.tokens.Issue(auth.PurposeVerify, u.ID)
	if err != nil {
		return Identity{}, apperr.Internal("issue verify token", err)
	}
	if err := a.db.WithContext(ctx).Model(&u).Update("verify_token", token).Error; err != nil {
		return Identity{}, apperr.Internal("store verify token", err)
	}
	link := a.cfg.BaseURL + "/api/auth/verify?token=" + url.QueryEscape(token)
	if err := a.mailer.Send(ctx, mail.VerifyEmail(u.Email, u.Name, link)); err != nil {
		a.log.Warn("verification email not sent", zap.Uint("user_id", u.ID), zap.Error(err))
	}
	return identityOf(&u), nil
}

func tokenError(err error) error {
	if errors.Is(err, auth.ErrExpiredToken) {
		return apperr.Validation(MsgTokenExpired, nil)
	}
	return apperr.Validation(MsgInvalidToken, nil)
}

// VerifyEmail marks the token's user as verified and consumes the token.
func (a *Accounts) VerifyEmail(ctx context.Context, token string) error {
	claims, err := a.tokens.Verify(auth.PurposeVerify, token)
	if err != nil {
		return tokenError(err)
	}
	uid, _ := claims.UserID()
	res := a.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND verify_token = ?", uid, token).
		Updates(map[string]any{"verified": true, "verify_token": ""})
	if res.Error != nil {
		return apperr.Internal("verify user", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.Validation(MsgInvalidToken, nil)
	}
	return nil
}

// RequestReset emails a one-hour reset link when the address belongs to a
// user. Unknown addresses are not reported to the caller.
func (a *Accounts) RequestReset(ctx context.Context, email string) error {
	var u models.User
	err := a.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		a.log.Debug("password reset for unknown email")
		return nil
	}
	if err != nil {
		return apperr.Internal("lookup user", err)
	}

	token, exp, err := a.tokens.Issue(auth.PurposeReset, u.ID)
	if err != nil {
		return apperr.Internal("issue reset token", err)
	}
	if err := a.db.WithContext(ctx).Model(&u).Updates(map[string]any{
		"reset_token":        token,
		"reset_token_expiry": exp,
	}).Error; err != nil {
		return apperr.Internal("store reset token", err)
	}
	link := a.cfg.BaseURL + "/reset?token=" + url.QueryEscape(token)
	if err := a.mailer.Send(ctx, mail.ResetPassword(u.Email, u.Name, link)); err != nil {
		a.log.Warn("reset email not sent", zap.Uint("user_id", u.ID), zap.Error(err))
	}
	return nil
}

// ResetPassword sets a new password using a reset token. The stored token
// is cleared, so a second use fails with "Token expired".
func (a *Accounts) ResetPassword(ctx context.Context, token, password string) error {
	v := make(validation.Violations)
	validation.Required("token", token, v)
	validation.MinLen("password", password, minPasswordLen, v)
	if !v.Empty() {
		return apperr.Validation("Invalid reset data", v)
	}
	if _, err := a.tokens.Verify(auth.PurposeReset, token); err != nil {
		return tokenError(err)
	}

	var u models.User
	err := a.db.WithContext(ctx).
		Where("reset_token = ? AND reset_token_expiry > ?", token, a.now()).
		First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.Validation(MsgTokenExpired, nil)
	}
	if err != nil {
		return apperr.Internal("lookup reset token", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.cfg.HashCost)
	if err != nil {
		return apperr.Internal("hash password", err)
	}
	if err := a.db.WithContext(ctx).Model(&u).Updates(map[string]any{
		"password":           string(hash),
		"reset_token":        "",
		"reset_token_expiry": nil,
	}).Error; err != nil {
		return apperr.Internal("update password", err)
	}
	return nil
}

// UpdatePassword changes the password of a signed-in user.
func (a *Accounts) UpdatePassword(ctx context.Context, userID uint, current, next string) error {
	v := make(validation.Violations)
	validation.Required("currentPassword", current, v)
	validation.MinLen("newPassword", next, minPasswordLen, v)
	if !v.Empty() {
		return apperr.Validation("Invalid password data", v)
	}
	var u models.User
	if err := a.db.WithContext(ctx).First(&u, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound(MsgUserNotFound)
		}
		return apperr.Internal("load user", err)
	}
	if u.Password == "" || bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(current)) != nil {
		return apperr.Unauthorized(MsgWrongPassword)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), a.cfg.HashCost)
	if err != nil {
		return apperr.Internal("hash password", err)
	}
	if err := a.db.WithContext(ctx).Model(&u).Update("password", string(hash)).Error; err != nil {
		return apperr.Internal("update password", err)
	}
	return nil
}

// UpsertOAuthUser returns the account for a provider profile, creating a
// verified account on first login.
func (a *Accounts) UpsertOAuthUser(ctx context.Context, p oauth.Profile) (Identity, error) {
	email := normalizeEmail(p.Email)
	if email == "" {
		return Identity{}, apperr.Validation("Provider did not return an email", nil)
	}
	var u models.User
	err := a.db.WithContext(ctx).Where("email = ?", email).First(&u).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		u = models.User{Name: p.Name, Email: email, Verified: true, Provider: models.ProviderGoogle}
		if err := a.db.WithContext(ctx).Create(&u).Error; err != nil {
			return Identity{}, apperr.Internal("create oauth user", err)
		}
	case err != nil:
		return Identity{}, apperr.Internal("lookup user", err)
	case !u.Verified:
		if err := a.db.WithContext(ctx).Model(&u).Updates(map[string]any{"verified": true, "verify_token": ""}).Error; err != nil {
			return Identity{}, apperr.Internal("verify oauth user", err)
		}
	}
	return identityOf(&u), nil
}

// Identity loads the identity for a session user.
func (a *Accounts) Identity(ctx context.Context, userID uint) (Identity, error) {
	var u models.User
	if err := a.db.WithContext(ctx).First(&u, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Identity{}, apperr.NotFound(MsgUserNotFound)
		}
		return Identity{}, apperr.Internal("load user", err)
	}
	return identityOf(&u), nil
}

// registrationConflict reports an existing account holding email or phone.
// Soft-deleted accounts count since they still hold the unique index.
func (a *Accounts) registrationConflict(ctx context.Context, email string, phone *string) error {
	var count int64
	users := a.db.WithContext(ctx).Unscoped().Model(&models.User{})
	if err := users.Where("email = ?", email).Count(&count).Error; err != nil {
		return apperr.Internal("check email", err)
	}
	if count > 0 {
		return apperr.Conflict("Email already registered")
	}
	if phone == nil {
		return nil
	}
	users = a.db.WithContext(ctx).Unscoped().Model(&models.User{})
	if err := users.Where("phone = ?", *phone).Count(&count).Error; err != nil {
		return apperr.Internal("check phone", err)
	}
	if count > 0 {
		return apperr.Conflict("Phone number already registered")
	}
	return nil
}

// Exists reports whether the user id still refers to an account.
func (a *Accounts) Exists(ctx context.Context, userID uint) (bool, error) {
	var count int64
	err := a.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Count(&count).Error
	if err != nil {
		a.log.Error("check session user", zap.Uint("user_id", userID), zap.Error(err))
		return false, err
	}
	return count > 0, nil
}

// IssueSession signs a session token for the user.
func (a *Accounts) IssueSession(userID uint) (string, time.Time, error) {
	return a.tokens.Issue(auth.PurposeSession, userID)
}
