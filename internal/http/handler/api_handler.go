package handler

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shortspace/shortspace/internal/app/model"
	"github.com/shortspace/shortspace/internal/app/repository"
	"github.com/shortspace/shortspace/internal/app/service"
	infraprom "github.com/shortspace/shortspace/internal/infra/prometheus"
	"go.uber.org/zap"
)

// identityHeader carries the authenticated identity set by the upstream
// session layer; empty means anonymous.
const identityHeader = "X-Authenticated-User"

// APIDeps groups dependencies required by the creation and management API.
type APIDeps struct {
	Logger   *zap.Logger
	Domains  *service.DomainService
	Creation *service.CreationService
	Codes    repository.ShortCodeRepository
	Activity *service.ActivityPublisher
}

// APIHandler implements the creation and management endpoints.
type APIHandler struct {
	logger   *zap.Logger
	domains  *service.DomainService
	creation *service.CreationService
	codes    repository.ShortCodeRepository
	activity *service.ActivityPublisher
}

// NewAPIHandler creates an API handler with the provided dependencies.
func NewAPIHandler(deps APIDeps) *APIHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &APIHandler{
		logger:   logger,
		domains:  deps.Domains,
		creation: deps.Creation,
		codes:    deps.Codes,
		activity: deps.Activity,
	}
}

// Register wires API routes onto the provided router.
func (h *APIHandler) Register(router fiber.Router) {
	api := router.Group("/api")
	{
		links := api.Group("/links")
		{
			links.Post("/", h.CreateLink)
			links.Get("/", h.ListLinks)
			links.Get("/:code", h.GetLink)
			links.Post("/:code/disable", h.DisableLink)
		}
	}
}

// CreateLinkRequest represents the creation body, accepted as JSON or
// form-encoded.
type CreateLinkRequest struct {
	URL          string `json:"url" form:"url"`
	Alias        string `json:"alias,omitempty" form:"alias"`
	Category     string `json:"category,omitempty" form:"category"`
	Domain       string `json:"domain,omitempty" form:"domain"`
	CaptchaToken string `json:"captcha_token,omitempty" form:"captcha_token"`
}

// LinkResponse represents a short-code record on the wire.
type LinkResponse struct {
	Code        string     `json:"code"`
	ShortURL    string     `json:"short_url"`
	Destination string     `json:"destination"`
	Tenant      string     `json:"tenant,omitempty"`
	Category    string     `json:"category,omitempty"`
	Active      bool       `json:"active"`
	ActiveFrom  *time.Time `json:"active_from,omitempty"`
	ActiveUntil *time.Time `json:"active_until,omitempty"`
	Clicks      int64      `json:"clicks"`
	CreatedAt   time.Time  `json:"created_at"`
}

// CreateLink handles POST /api/links.
func (h *APIHandler) CreateLink(c *fiber.Ctx) error {
	var req CreateLinkRequest
	if err := c.BodyParser(&req); err != nil {
		return h.creationError(c, fiber.StatusBadRequest, "invalid_body")
	}

	ctx := c.UserContext()
	tenant := h.requestTenant(c)

	rec, err := h.creation.Create(ctx, service.CreateInput{
		DestinationURL: req.URL,
		Tenant:         tenant,
		Alias:          req.Alias,
		Category:       req.Category,
		Domain:         req.Domain,
		CaptchaToken:   req.CaptchaToken,
		ClientIP:       c.IP(),
		CreatedBy:      c.Get(identityHeader),
	})
	if err != nil {
		status, kind := classifyCreationError(err)
		infraprom.Creations.WithLabelValues(kind).Inc()
		if status == fiber.StatusInternalServerError {
			h.logger.Error("failed to create short code", zap.Error(err))
		}
		return h.creationError(c, status, kind)
	}

	infraprom.Creations.WithLabelValues("ok").Inc()
	if h.activity != nil {
		go func() {
			if err := h.activity.PublishCreate(rec.Tenant, rec.DomainID, rec.Code, c.IP(), c.Get("User-Agent")); err != nil {
				h.logger.Error("failed to publish create event", zap.Error(err))
			}
		}()
	}

	shortURL := h.shortURL(c, rec)
	if !wantsJSON(c) {
		return h.redirectBack(c, url.Values{"created": {rec.Code}})
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success":   true,
		"short_url": shortURL,
		"code":      rec.Code,
	})
}

// ListLinks handles GET /api/links, scoped to the requesting tenant.
func (h *APIHandler) ListLinks(c *fiber.Ctx) error {
	limit := 20
	if parsed := c.QueryInt("limit"); parsed > 0 && parsed <= 100 {
		limit = parsed
	}
	offset := 0
	if parsed := c.QueryInt("offset"); parsed > 0 {
		offset = parsed
	}

	tenant := h.requestTenant(c)
	links, err := h.codes.ListByTenant(c.UserContext(), tenant, limit, offset)
	if err != nil {
		h.logger.Error("failed to list links", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to list links",
		})
	}

	response := make([]LinkResponse, len(links))
	for i := range links {
		response[i] = h.linkResponse(c, &links[i])
	}
	return c.JSON(fiber.Map{
		"links":  response,
		"limit":  limit,
		"offset": offset,
		"count":  len(response),
	})
}

// GetLink handles GET /api/links/:code on the requesting host's domain.
func (h *APIHandler) GetLink(c *fiber.Ctx) error {
	_, rec, loadErr := h.loadRecord(c)
	if loadErr != nil {
		return c.Status(loadErr.Status).JSON(fiber.Map{"error": loadErr.Message})
	}
	return c.JSON(h.linkResponse(c, rec))
}

// DisableLink handles POST /api/links/:code/disable, the moderation action.
// Records are flagged, never deleted.
func (h *APIHandler) DisableLink(c *fiber.Ctx) error {
	dom, rec, loadErr := h.loadRecord(c)
	if loadErr != nil {
		return c.Status(loadErr.Status).JSON(fiber.Map{"error": loadErr.Message})
	}

	if err := h.codes.SetActive(c.UserContext(), dom.ID, rec.Code, false); err != nil {
		h.logger.Error("failed to disable link",
			zap.String("code", rec.Code), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to disable link",
		})
	}

	rec.Active = false
	return c.JSON(h.linkResponse(c, rec))
}

type loadError struct {
	Status  int
	Message string
}

func (h *APIHandler) loadRecord(c *fiber.Ctx) (*model.Domain, *model.ShortCode, *loadError) {
	code := c.Params("code")
	if code == "" {
		return nil, nil, &loadError{fiber.StatusBadRequest, "code is required"}
	}

	ctx := c.UserContext()
	dom, err := h.domains.ResolveTenant(ctx, c.Hostname())
	if err != nil {
		return nil, nil, &loadError{fiber.StatusNotFound, "domain not configured"}
	}

	rec, err := h.codes.GetByDomainCode(ctx, dom.ID, code)
	if err != nil {
		if errors.Is(err, repository.ErrCodeNotFound) {
			return nil, nil, &loadError{fiber.StatusNotFound, "link not found"}
		}
		h.logger.Error("failed to load link", zap.String("code", code), zap.Error(err))
		return nil, nil, &loadError{fiber.StatusInternalServerError, "internal server error"}
	}
	return dom, rec, nil
}

// requestTenant maps the request host to a tenant handle; unmapped hosts get
// the empty (platform) tenant.
func (h *APIHandler) requestTenant(c *fiber.Ctx) string {
	dom, err := h.domains.ResolveTenant(c.UserContext(), c.Hostname())
	if err != nil {
		return ""
	}
	return dom.Tenant
}

func (h *APIHandler) linkResponse(c *fiber.Ctx, rec *model.ShortCode) LinkResponse {
	return LinkResponse{
		Code:        rec.Code,
		ShortURL:    h.shortURL(c, rec),
		Destination: rec.Destination,
		Tenant:      rec.Tenant,
		Category:    rec.Category,
		Active:      rec.Active,
		ActiveFrom:  rec.ActiveFrom,
		ActiveUntil: rec.ActiveUntil,
		Clicks:      rec.Clicks,
		CreatedAt:   rec.CreatedAt,
	}
}

func (h *APIHandler) shortURL(c *fiber.Ctx, rec *model.ShortCode) string {
	host := c.Hostname()
	if dom, err := h.domains.ResolveTenant(c.UserContext(), host); err == nil && dom.ID != rec.DomainID {
		// Link was minted on a different short domain than the request came
		// in on; look its hostname up.
		if target, err := h.domainHostname(c, rec.DomainID); err == nil {
			host = target
		}
	}
	return fmt.Sprintf("%s://%s/%s", c.Protocol(), host, rec.Code)
}

func (h *APIHandler) domainHostname(c *fiber.Ctx, domainID uint64) (string, error) {
	dom, err := h.domains.DomainByID(c.UserContext(), domainID)
	if err != nil {
		return "", err
	}
	return dom.Hostname, nil
}

func (h *APIHandler) creationError(c *fiber.Ctx, status int, kind string) error {
	if !wantsJSON(c) {
		return h.redirectBack(c, url.Values{"error": {kind}})
	}
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   kind,
	})
}

// redirectBack sends no-script form posts back where they came from with a
// query-encoded status.
func (h *APIHandler) redirectBack(c *fiber.Ctx, params url.Values) error {
	back := c.Get(fiber.HeaderReferer)
	if back == "" {
		back = "/"
	}
	sep := "?"
	if u, err := url.Parse(back); err == nil && u.RawQuery != "" {
		sep = "&"
	}
	return c.Redirect(back+sep+params.Encode(), fiber.StatusSeeOther)
}

// wantsJSON detects AJAX/API callers; everyone else gets the no-script
// redirect fallback.
func wantsJSON(c *fiber.Ctx) bool {
	if c.Get("X-Requested-With") == "XMLHttpRequest" {
		return true
	}
	if c.Is("json") {
		return true
	}
	return c.Accepts("text/html", "application/json") == "application/json"
}

func classifyCreationError(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrInvalidURL):
		return fiber.StatusBadRequest, "invalid_url"
	case errors.Is(err, service.ErrInvalidAlias):
		return fiber.StatusBadRequest, "invalid_alias"
	case errors.Is(err, service.ErrRateLimited):
		return fiber.StatusTooManyRequests, "rate_limited"
	case errors.Is(err, service.ErrCaptchaFailed):
		return fiber.StatusBadRequest, "captcha_failed"
	case errors.Is(err, service.ErrAliasTaken):
		return fiber.StatusConflict, "alias_taken"
	case errors.Is(err, service.ErrForeignDomain):
		return fiber.StatusForbidden, "foreign_domain"
	case errors.Is(err, service.ErrExhausted):
		return fiber.StatusServiceUnavailable, "exhausted"
	default:
		return fiber.StatusInternalServerError, "store_unavailable"
	}
}
