package handler

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shortspace/shortspace/internal/app/destcheck"
	"github.com/shortspace/shortspace/internal/app/model"
	"github.com/shortspace/shortspace/internal/app/service"
	"github.com/shortspace/shortspace/internal/app/settings"
	infraprom "github.com/shortspace/shortspace/internal/infra/prometheus"
	httputil "github.com/shortspace/shortspace/internal/http/util"
	"github.com/shortspace/shortspace/internal/http/view"
	"go.uber.org/zap"
)

const (
	continueTokenTTL = 5 * time.Minute
	// fallbackRedirectSeconds delays the client-side redirect on scheduling
	// pages so the visitor can read why they were not sent on directly.
	fallbackRedirectSeconds = 5
)

// RedirectDeps groups dependencies required by the redirect flow.
type RedirectDeps struct {
	Logger   *zap.Logger
	Domains  *service.DomainService
	Resolver *service.Resolver
	Settings settings.Provider
	// Checker is nil when destination validation is disabled.
	Checker  *destcheck.Checker
	Activity *service.ActivityPublisher
	Secret   []byte
}

// RedirectHandler serves the resolution entry point: every visitor request
// to a short domain lands here.
type RedirectHandler struct {
	logger   *zap.Logger
	domains  *service.DomainService
	resolver *service.Resolver
	settings settings.Provider
	checker  *destcheck.Checker
	activity *service.ActivityPublisher
	tokens   *httputil.TokenSigner
}

// NewRedirectHandler creates a redirect handler with the provided
// dependencies.
func NewRedirectHandler(deps RedirectDeps) *RedirectHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedirectHandler{
		logger:   logger,
		domains:  deps.Domains,
		resolver: deps.Resolver,
		settings: deps.Settings,
		checker:  deps.Checker,
		activity: deps.Activity,
		tokens:   httputil.NewTokenSigner(deps.Secret, continueTokenTTL),
	}
}

// Register wires redirect routes onto the provided router.
func (h *RedirectHandler) Register(router fiber.Router) {
	router.Get("/healthz", h.Health)
	router.Get("/:code", h.Resolve)
	router.Get("/:code/go/:token", h.Continue)
}

// Health is a simple liveness endpoint.
func (h *RedirectHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"service": "shortspace",
		"status":  "ok",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// Resolve handles GET /:code on any mapped host.
func (h *RedirectHandler) Resolve(c *fiber.Ctx) error {
	code := c.Params("code")
	if code == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "missing link code",
		})
	}
	ctx := c.UserContext()

	dom, err := h.domains.ResolveTenant(ctx, c.Hostname())
	if err != nil {
		if errors.Is(err, service.ErrNoDomain) {
			return h.renderUnconfiguredDomain(c)
		}
		return h.storeFailure(c, "resolve tenant", err)
	}

	res, err := h.resolver.Resolve(ctx, dom.ID, code)
	if err != nil {
		infraprom.Resolutions.WithLabelValues("store_error").Inc()
		return h.storeFailure(c, "resolve code", err)
	}
	infraprom.Resolutions.WithLabelValues(string(res.Outcome)).Inc()

	if h.activity != nil {
		go h.publishClick(dom, code, res.Outcome, c.IP(), c.Get("User-Agent"))
	}

	switch res.Outcome {
	case service.OutcomeActive:
		return h.redirectActive(c, dom, res)
	case service.OutcomeNotFound, service.OutcomeDisabled:
		return h.renderNotFound(c, dom, code, res.Outcome)
	case service.OutcomeExpired, service.OutcomeNotYetActive:
		return h.renderScheduled(c, dom, res.Outcome)
	default:
		return h.storeFailure(c, "classify outcome", fmt.Errorf("unknown outcome %q", res.Outcome))
	}
}

// Continue handles the signed continue-anyway link from the warning page.
func (h *RedirectHandler) Continue(c *fiber.Ctx) error {
	code := c.Params("code")
	token := c.Params("token")
	if code == "" || token == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "missing code or token",
		})
	}

	if err := h.tokens.Validate(code, token); err != nil {
		if errors.Is(err, httputil.ErrInvalidToken) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		h.logger.Error("failed to validate continue token", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to validate token",
		})
	}

	ctx := c.UserContext()
	dom, err := h.domains.ResolveTenant(ctx, c.Hostname())
	if err != nil {
		if errors.Is(err, service.ErrNoDomain) {
			return h.renderUnconfiguredDomain(c)
		}
		return h.storeFailure(c, "resolve tenant", err)
	}

	res, err := h.resolver.Resolve(ctx, dom.ID, code)
	if err != nil {
		return h.storeFailure(c, "resolve code", err)
	}
	// Link state may have changed since the warning page was served.
	switch res.Outcome {
	case service.OutcomeExpired, service.OutcomeNotYetActive:
		return h.renderScheduled(c, dom, res.Outcome)
	case service.OutcomeNotFound, service.OutcomeDisabled:
		return h.renderNotFound(c, dom, code, res.Outcome)
	}

	if h.activity != nil {
		go h.publishClick(dom, code, res.Outcome, c.IP(), c.Get("User-Agent"))
	}
	return c.Redirect(res.Destination, h.redirectStatus(c, dom.Tenant))
}

func (h *RedirectHandler) redirectActive(c *fiber.Ctx, dom *model.Domain, res service.Resolution) error {
	if h.checker != nil {
		verdict, err := h.checker.Validate(c.UserContext(), res.Destination)
		if err == nil && !verdict.Reachable {
			infraprom.DestProbes.WithLabelValues("unreachable").Inc()
			return h.renderWarning(c, dom, res)
		}
		infraprom.DestProbes.WithLabelValues("reachable").Inc()
	}

	h.logger.Debug("redirecting short link",
		zap.String("code", res.Record.Code),
		zap.String("target", res.Destination))
	return c.Redirect(res.Destination, h.redirectStatus(c, dom.Tenant))
}

// redirectStatus picks 302 unless the tenant opted into permanent
// redirects. 302 is the default because destinations stay editable.
func (h *RedirectHandler) redirectStatus(c *fiber.Ctx, tenant string) int {
	ts, err := h.settings.TenantSettings(c.UserContext(), tenant)
	if err == nil && ts.PermanentRedirects {
		return fiber.StatusMovedPermanently
	}
	return fiber.StatusFound
}

func (h *RedirectHandler) renderNotFound(c *fiber.Ctx, dom *model.Domain, code string, outcome service.Outcome) error {
	ctx := c.UserContext()
	html, err := view.RenderNotFound(view.PageData{
		Title:       "Link not found",
		Tenant:      dom.Tenant,
		FaviconRef:  dom.FaviconRef,
		Code:        code,
		StatusLabel: string(outcome),
		FallbackURL: h.domains.FallbackURL(ctx, dom.Tenant),
	})
	if err != nil {
		return h.renderFailure(c, err)
	}
	return c.Status(fiber.StatusNotFound).Type("html", "utf-8").SendString(html)
}

func (h *RedirectHandler) renderScheduled(c *fiber.Ctx, dom *model.Domain, outcome service.Outcome) error {
	ctx := c.UserContext()
	html, err := view.RenderScheduled(view.PageData{
		Title:           "Link not available",
		Tenant:          dom.Tenant,
		FaviconRef:      dom.FaviconRef,
		StatusLabel:     string(outcome),
		FallbackURL:     h.domains.FallbackURL(ctx, dom.Tenant),
		RedirectSeconds: fallbackRedirectSeconds,
	})
	if err != nil {
		return h.renderFailure(c, err)
	}
	return c.Status(fiber.StatusOK).Type("html", "utf-8").SendString(html)
}

func (h *RedirectHandler) renderWarning(c *fiber.Ctx, dom *model.Domain, res service.Resolution) error {
	token, err := h.tokens.Issue(res.Record.Code)
	if err != nil {
		h.logger.Error("failed to issue continue token", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to prepare redirect",
		})
	}

	html, err := view.RenderWarning(view.PageData{
		Title:       "Check this destination",
		Tenant:      dom.Tenant,
		FaviconRef:  dom.FaviconRef,
		Code:        res.Record.Code,
		TargetURL:   res.Destination,
		ContinueURL: fmt.Sprintf("/%s/go/%s", res.Record.Code, token),
	})
	if err != nil {
		return h.renderFailure(c, err)
	}
	return c.Status(fiber.StatusOK).Type("html", "utf-8").SendString(html)
}

func (h *RedirectHandler) renderUnconfiguredDomain(c *fiber.Ctx) error {
	html, err := view.RenderNotFound(view.PageData{
		Title:       "Domain not configured",
		StatusLabel: "no_domain",
	})
	if err != nil {
		return h.renderFailure(c, err)
	}
	return c.Status(fiber.StatusNotFound).Type("html", "utf-8").SendString(html)
}

func (h *RedirectHandler) storeFailure(c *fiber.Ctx, op string, err error) error {
	h.logger.Error("store failure on resolution path",
		zap.String("op", op),
		zap.String("host", c.Hostname()),
		zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "internal server error",
	})
}

func (h *RedirectHandler) renderFailure(c *fiber.Ctx, err error) error {
	h.logger.Error("failed to render page", zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "failed to render page",
	})
}

func (h *RedirectHandler) publishClick(dom *model.Domain, code string, outcome service.Outcome, ip, ua string) {
	if err := h.activity.PublishClick(dom.Tenant, dom.ID, code, outcome, ip, ua); err != nil {
		h.logger.Error("failed to publish click event",
			zap.String("code", code), zap.Error(err))
	}
}
