// Package web serves the public registration form and the single-use
// download links for generated client files.
package web

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/kirill-jjj/teamtalk-reg-system/internal/config"
	"github.com/kirill-jjj/teamtalk-reg-system/internal/domain"
	"github.com/kirill-jjj/teamtalk-reg-system/internal/i18n"
	"github.com/kirill-jjj/teamtalk-reg-system/internal/infrastructure/tokenstore"
	"github.com/kirill-jjj/teamtalk-reg-system/internal/service"
	"github.com/kirill-jjj/teamtalk-reg-system/internal/voice"
)

//go:embed templates/*.html
var templateFS embed.FS

const langCookieName = "lang"

// TokenStore is the slice of the token store the web surface needs.
type TokenStore interface {
	IssueDownloadToken(ctx context.Context, tok tokenstore.DownloadToken, ttl time.Duration) (string, error)
	ConsumeDownloadToken(ctx context.Context, token string) (*tokenstore.DownloadToken, error)
	MarkIPRegistered(ctx context.Context, ip, username string, ttl time.Duration) error
	IsIPRegistered(ctx context.Context, ip string) (bool, error)
}

// Handler serves the registration pages.
type Handler struct {
	cfg       *config.Config
	bundle    *i18n.Bundle
	regSvc    *service.RegistrationService
	tokens    TokenStore
	templates *template.Template
	logger    *slog.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the handler logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// NewHandler wires the web handlers.
func NewHandler(
	cfg *config.Config,
	bundle *i18n.Bundle,
	regSvc *service.RegistrationService,
	tokens TokenStore,
	opts ...Option,
) (*Handler, error) {
	templates, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	h := &Handler{
		cfg:       cfg,
		bundle:    bundle,
		regSvc:    regSvc,
		tokens:    tokens,
		templates: templates,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Register mounts the routes on a group.
func (h *Handler) Register(g *echo.Group) {
	g.GET("", h.showForm)
	g.GET("/", h.showForm)
	g.POST("/register", h.handleRegister)
	g.GET("/download/:token", h.handleDownload)
}

// requestLang resolves the page language: explicit query parameter first
// (persisted in a cookie), then the cookie, then Accept-Language.
func (h *Handler) requestLang(c echo.Context) domain.LanguageCode {
	if raw := c.QueryParam("lang"); raw != "" {
		if code, ok := domain.ParseLanguageCode(raw); ok && h.bundle.Has(code) {
			c.SetCookie(&http.Cookie{
				Name:     langCookieName,
				Value:    code.String(),
				Path:     "/",
				MaxAge:   int((365 * 24 * time.Hour).Seconds()),
				HttpOnly: true,
			})
			return code
		}
	}

	if cookie, err := c.Cookie(langCookieName); err == nil {
		if code, ok := domain.ParseLanguageCode(cookie.Value); ok && h.bundle.Has(code) {
			return code
		}
	}

	if header := c.Request().Header.Get("Accept-Language"); header != "" {
		primary := header
		if i := strings.IndexAny(primary, ",;"); i > 0 {
			primary = primary[:i]
		}
		if code, ok := domain.ParseLanguageCode(primary); ok && h.bundle.Has(code) {
			return code
		}
	}

	return domain.DefaultLanguage
}

type formData struct {
	Lang     string
	BasePath string
	Error    string
	Username string
	Nickname string
	T        map[string]string
}

func (h *Handler) formStrings(lang domain.LanguageCode) map[string]string {
	keys := []string{
		"web-title", "web-header",
		"web-label-username", "web-label-password", "web-label-nickname",
		"web-submit",
	}
	msgs := make(map[string]string, len(keys))
	for _, key := range keys {
		msgs[key] = h.bundle.T(lang, key)
	}
	return msgs
}

func (h *Handler) showForm(c echo.Context) error {
	lang := h.requestLang(c)
	return h.renderForm(c, http.StatusOK, formData{
		Lang:     lang.String(),
		BasePath: h.cfg.Web.RootPath,
		T:        h.formStrings(lang),
	})
}

func (h *Handler) renderForm(c echo.Context, code int, data formData) error {
	var buf bytes.Buffer
	if err := h.templates.ExecuteTemplate(&buf, "form.html", data); err != nil {
		return fmt.Errorf("render form: %w", err)
	}
	return c.HTMLBlob(code, buf.Bytes())
}

func (h *Handler) handleRegister(c echo.Context) error {
	ctx := c.Request().Context()
	lang := h.requestLang(c)
	ip := c.RealIP()

	data := formData{
		Lang:     lang.String(),
		BasePath: h.cfg.Web.RootPath,
		Username: c.FormValue("username"),
		Nickname: c.FormValue("nickname"),
		T:        h.formStrings(lang),
	}

	formError := func(key string) error {
		data.Error = h.bundle.T(lang, key)
		return h.renderForm(c, http.StatusBadRequest, data)
	}

	username, err := domain.ParseUsername(c.FormValue("username"))
	if err != nil {
		return formError("web-err-username-invalid")
	}
	password, err := domain.ParsePassword(c.FormValue("password"))
	if err != nil {
		return formError("web-err-password-invalid")
	}
	nickname, err := domain.ParseNickname(c.FormValue("nickname"))
	if err != nil {
		return formError("web-err-nickname-invalid")
	}

	registered, err := h.tokens.IsIPRegistered(ctx, ip)
	if err != nil {
		h.logger.Error("registered-ip lookup failed", slog.String("error", err.Error()))
		return formError("web-err-timeout")
	}
	if registered {
		return formError("web-err-ip-limit")
	}

	taken, err := h.regSvc.IsUsernameTaken(ctx, username)
	if err != nil {
		h.logger.Warn("username check failed",
			slog.String("username", username.String()),
			slog.String("error", err.Error()),
		)
		return formError("web-err-timeout")
	}
	if taken {
		return formError("web-err-username-taken")
	}

	result, err := h.regSvc.Register(ctx, service.RegisterParams{
		Username:    username,
		Password:    password,
		Nickname:    nickname,
		AccountType: domain.AccountDefault,
		Source:      domain.SourceWeb(ip),
	})
	if err != nil {
		if voice.IsServerRejected(err) {
			return formError("web-err-username-taken")
		}
		h.logger.Error("web registration failed",
			slog.String("username", username.String()),
			slog.String("error", err.Error()),
		)
		return formError("web-err-timeout")
	}

	if err := h.tokens.MarkIPRegistered(ctx, ip, username.String(), h.cfg.Files.RegisteredIPTTL); err != nil {
		h.logger.Warn("failed to mark registered ip", slog.String("error", err.Error()))
	}

	return h.renderSuccess(c, lang, username, result.Assets)
}
