package web

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/labstack/echo/v4"

	"github.com/kirill-jjj/teamtalk-reg-system/internal/domain"
	"github.com/kirill-jjj/teamtalk-reg-system/internal/domain/errs"
	"github.com/kirill-jjj/teamtalk-reg-system/internal/infrastructure/tokenstore"
	"github.com/kirill-jjj/teamtalk-reg-system/internal/service"
)

type successData struct {
	Lang           string
	BasePath       string
	QuickLink      string
	TTDownloadURL  string
	ZipDownloadURL string
	ExpirySeconds  int
	T              map[string]string
}

// renderSuccess writes the generated artifacts to the temp dir, issues their
// single-use download tokens and renders the success page.
func (h *Handler) renderSuccess(c echo.Context, lang domain.LanguageCode, username domain.Username, assets service.RegistrationAssets) error {
	ctx := c.Request().Context()
	ttl := h.cfg.Files.GeneratedFileTTL

	data := successData{
		Lang:          lang.String(),
		BasePath:      h.cfg.Web.RootPath,
		QuickLink:     assets.Link,
		ExpirySeconds: int(ttl.Seconds()),
		T:             h.successStrings(lang),
	}

	ttPath, err := h.writeTempFile(username.String()+"-*.tt", []byte(assets.Content))
	if err != nil {
		h.logger.Error("failed to write generated config", slog.String("error", err.Error()))
	} else {
		token, err := h.tokens.IssueDownloadToken(ctx, tokenstore.DownloadToken{
			Type:     domain.TokenTTConfig,
			FilePath: ttPath,
			Filename: assets.Filename,
		}, ttl)
		if err != nil {
			h.logger.Error("failed to issue download token", slog.String("error", err.Error()))
		} else {
			data.TTDownloadURL = h.downloadURL(token)
		}
	}

	zipPath := filepath.Join(h.cfg.Files.TempDir, username.String()+"_client.zip")
	if h.regSvc.TryCreateClientZip(zipPath, assets) {
		token, err := h.tokens.IssueDownloadToken(ctx, tokenstore.DownloadToken{
			Type:     domain.TokenClientZip,
			FilePath: zipPath,
			Filename: username.String() + "_TeamTalk.zip",
		}, ttl)
		if err != nil {
			h.logger.Error("failed to issue download token", slog.String("error", err.Error()))
		} else {
			data.ZipDownloadURL = h.downloadURL(token)
		}
	}

	var buf bytes.Buffer
	if err := h.templates.ExecuteTemplate(&buf, "success.html", data); err != nil {
		return fmt.Errorf("render success page: %w", err)
	}
	return c.HTMLBlob(http.StatusOK, buf.Bytes())
}

func (h *Handler) successStrings(lang domain.LanguageCode) map[string]string {
	keys := []string{
		"web-title", "web-success-title",
		"web-link-tt", "web-link-zip", "web-quick-link",
		"web-countdown-text", "web-expired", "web-seconds",
	}
	msgs := make(map[string]string, len(keys))
	for _, key := range keys {
		msgs[key] = h.bundle.T(lang, key)
	}
	return msgs
}

func (h *Handler) downloadURL(token string) string {
	return h.cfg.Web.RootPath + "/download/" + token
}

func (h *Handler) writeTempFile(pattern string, content []byte) (string, error) {
	if err := os.MkdirAll(h.cfg.Files.TempDir, 0o755); err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	f, err := os.CreateTemp(h.cfg.Files.TempDir, pattern)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(content); err != nil {
		return "", fmt.Errorf("write temp file: %w", err)
	}
	return f.Name(), nil
}

// handleDownload serves one generated file for a single-use token. The token
// is invalidated on first use; expired files yield 404.
func (h *Handler) handleDownload(c echo.Context) error {
	lang := h.requestLang(c)

	tok, err := h.tokens.ConsumeDownloadToken(c.Request().Context(), c.Param("token"))
	if err != nil {
		if errors.Is(err, errs.ErrTokenNotFound) {
			return c.HTML(http.StatusNotFound, h.errorPage(lang, "web-err-invalid-link"))
		}
		h.logger.Error("download token lookup failed", slog.String("error", err.Error()))
		return c.HTML(http.StatusInternalServerError, h.errorPage(lang, "web-err-timeout"))
	}

	if _, err := os.Stat(tok.FilePath); err != nil {
		return c.HTML(http.StatusNotFound, h.errorPage(lang, "web-err-file-not-found"))
	}
	return c.Attachment(tok.FilePath, tok.Filename)
}

func (h *Handler) errorPage(lang domain.LanguageCode, key string) string {
	return "<!DOCTYPE html><html lang=\"" + lang.String() + "\"><body><p>" +
		h.bundle.T(lang, key) + "</p></body></html>"
}
