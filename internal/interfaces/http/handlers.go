package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/medikos/caseflow/internal/application/service"
	"github.com/medikos/caseflow/internal/domain/entity"
	"github.com/medikos/caseflow/internal/domain/workflow"
	"github.com/medikos/caseflow/pkg/utils"
)

// Handler exposes the application services over REST
type Handler struct {
	cases         service.CaseService
	versions      service.VersionService
	notifications service.NotificationService
	queries       service.QueryService
	logger        *zap.Logger
}

// NewHandler creates a new REST handler
func NewHandler(
	cases service.CaseService,
	versions service.VersionService,
	notifications service.NotificationService,
	queries service.QueryService,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		cases:         cases,
		versions:      versions,
		notifications: notifications,
		queries:       queries,
		logger:        logger,
	}
}

// writeError maps the typed domain errors onto HTTP status codes
func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrCaseNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, workflow.ErrMissingJustification):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, workflow.ErrConfirmationRequired):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "confirmation_required": true})
	case errors.Is(err, workflow.ErrStaleVersion):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "stale": true})
	case errors.Is(err, workflow.ErrAlreadyClaimed),
		errors.Is(err, workflow.ErrInvalidTransition),
		errors.Is(err, workflow.ErrInvalidState):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.logger.Error("Request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func caseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid case id"})
		return 0, false
	}
	return id, true
}

type itemRequest struct {
	Kind           string `json:"kind" binding:"required"`
	Description    string `json:"description" binding:"required"`
	Quantity       int    `json:"quantity" binding:"required"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

type totalsRequest struct {
	CostCents   int64 `json:"cost_cents"`
	BillCents   int64 `json:"bill_cents"`
	MarginCents int64 `json:"margin_cents"`
}

func validateItems(items []itemRequest) ([]entity.CaseItem, error) {
	out := make([]entity.CaseItem, 0, len(items))
	for _, it := range items {
		if err := utils.ValidateQuantity(it.Quantity); err != nil {
			return nil, err
		}
		if err := utils.ValidateCents(it.UnitPriceCents); err != nil {
			return nil, err
		}
		out = append(out, entity.CaseItem{
			Kind:           it.Kind,
			Description:    utils.SanitizeString(it.Description),
			Quantity:       it.Quantity,
			UnitPriceCents: it.UnitPriceCents,
		})
	}
	return out, nil
}

type createCaseRequest struct {
	PatientRef      string        `json:"patient_ref" binding:"required"`
	BranchRef       string        `json:"branch_ref" binding:"required"`
	FunderRef       string        `json:"funder_ref" binding:"required"`
	CreatorID       string        `json:"creator_id" binding:"required"`
	DifficultAccess bool          `json:"difficult_access"`
	Totals          totalsRequest `json:"totals"`
	Items           []itemRequest `json:"items"`
}

// CreateCase handles POST /api/cases
func (h *Handler) CreateCase(c *gin.Context) {
	var req createCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	items, err := validateItems(req.Items)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created, err := h.cases.CreateCase(c.Request.Context(), service.CreateCaseInput{
		PatientRef:      req.PatientRef,
		BranchRef:       req.BranchRef,
		FunderRef:       req.FunderRef,
		CreatorID:       req.CreatorID,
		DifficultAccess: req.DifficultAccess,
		Totals: entity.Totals{
			CostCents:   req.Totals.CostCents,
			BillCents:   req.Totals.BillCents,
			MarginCents: req.Totals.MarginCents,
		},
		Items: items,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, created)
}

// GetCase handles GET /api/cases/:id. The path segment is either the numeric
// row id or the opaque public id external links carry.
func (h *Handler) GetCase(c *gin.Context) {
	param := c.Param("id")

	var (
		detail *service.CaseDetail
		err    error
	)
	if id, perr := strconv.ParseInt(param, 10, 64); perr == nil {
		detail, err = h.queries.GetCase(c.Request.Context(), id)
	} else {
		detail, err = h.queries.GetCaseByPublicID(c.Request.Context(), param)
	}
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// GetHistory handles GET /api/cases/:id/history
func (h *Handler) GetHistory(c *gin.Context) {
	id, ok := caseID(c)
	if !ok {
		return
	}

	// 404 on unknown case rather than an empty trail
	if _, err := h.queries.GetCase(c.Request.Context(), id); err != nil {
		h.writeError(c, err)
		return
	}

	events, err := h.queries.AuditTrail(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

type actionRequest struct {
	Actor    string `json:"actor" binding:"required"`
	Role     string `json:"role"`
	Version  int    `json:"version"`
	Comment  string `json:"comment"`
	Reason   string `json:"reason"`
	DestTier int    `json:"dest_tier"`
}

func (r *actionRequest) justification() string {
	if r.Reason != "" {
		return r.Reason
	}
	return r.Comment
}

func (r *actionRequest) role(fallback workflow.Role) workflow.Role {
	if r.Role == "" {
		return fallback
	}
	return workflow.Role(r.Role)
}

type actionFunc func(c *gin.Context, in service.ActionInput) (*service.ActionResult, error)

// action is the shared handler for the one-method-per-action endpoints
func (h *Handler) action(defaultRole workflow.Role, fn actionFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := caseID(c)
		if !ok {
			return
		}

		var req actionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		role := req.role(defaultRole)
		if !role.IsValid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid role: " + req.Role})
			return
		}

		result, err := fn(c, service.ActionInput{
			CaseID:        id,
			Actor:         req.Actor,
			Role:          role,
			Version:       req.Version,
			Justification: utils.SanitizeString(req.justification()),
			DestTier:      req.DestTier,
		})
		if err != nil {
			h.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

type editRequest struct {
	Actor     string        `json:"actor" binding:"required"`
	Version   int           `json:"version"`
	Confirmed bool          `json:"confirmed"`
	Totals    totalsRequest `json:"totals"`
	Items     []itemRequest `json:"items"`
}

// EditCase handles POST /api/cases/:id/edit
func (h *Handler) EditCase(c *gin.Context) {
	id, ok := caseID(c)
	if !ok {
		return
	}

	var req editRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	items, err := validateItems(req.Items)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.versions.Edit(c.Request.Context(), service.EditInput{
		CaseID:    id,
		Actor:     req.Actor,
		Version:   req.Version,
		Confirmed: req.Confirmed,
		Totals: entity.Totals{
			CostCents:   req.Totals.CostCents,
			BillCents:   req.Totals.BillCents,
			MarginCents: req.Totals.MarginCents,
		},
		Items: items,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// TierQueue handles GET /api/queues/tier/:n
func (h *Handler) TierQueue(c *gin.Context) {
	tier, err := strconv.Atoi(c.Param("n"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tier"})
		return
	}
	if err := utils.ValidateTier(tier); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	limit, offset := pagination(c)
	cases, err := h.queries.PendingForTier(c.Request.Context(), tier, limit, offset)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cases": cases})
}

// ReviewerCases handles GET /api/reviewers/:id/cases
func (h *Handler) ReviewerCases(c *gin.Context) {
	cases, err := h.queries.ClaimedBy(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cases": cases})
}

// Notifications handles GET /api/users/:id/notifications
func (h *Handler) Notifications(c *gin.Context) {
	tier, ok := tierQuery(c)
	if !ok {
		return
	}

	unread, err := h.notifications.Unread(c.Request.Context(), c.Param("id"), tier)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, unread)
}

type markReadRequest struct {
	IDs []int64 `json:"ids" binding:"required"`
}

// MarkRead handles POST /api/users/:id/notifications/read
func (h *Handler) MarkRead(c *gin.Context) {
	tier, ok := tierQuery(c)
	if !ok {
		return
	}

	var req markReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.notifications.MarkRead(c.Request.Context(), c.Param("id"), tier, req.IDs); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// MarkAllRead handles POST /api/users/:id/notifications/read-all
func (h *Handler) MarkAllRead(c *gin.Context) {
	tier, ok := tierQuery(c)
	if !ok {
		return
	}

	if err := h.notifications.MarkAllRead(c.Request.Context(), c.Param("id"), tier); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// tierQuery parses the optional ?tier= query; 0 means no tier pool
func tierQuery(c *gin.Context) (int, bool) {
	raw := c.Query("tier")
	if raw == "" {
		return 0, true
	}
	tier, err := strconv.Atoi(raw)
	if err != nil || tier < 0 || tier > 3 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tier"})
		return 0, false
	}
	return tier, true
}

func pagination(c *gin.Context) (limit, offset int) {
	limit = 50
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	if raw := c.Query("offset"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}
