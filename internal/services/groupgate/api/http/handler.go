// Package http exposes the gate over HTTP/JSON for game server hosts and the
// group bot.
package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	apperrors "github.com/louisbranch/groupgate/internal/platform/errors"
	"github.com/louisbranch/groupgate/internal/platform/zlog"
	"github.com/louisbranch/groupgate/internal/services/groupgate/gate"
	"github.com/louisbranch/groupgate/internal/services/groupgate/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Gate is the gate surface served over HTTP.
type Gate interface {
	DecideLoginAccess(ctx context.Context, attempt gate.LoginAttempt, oracle gate.Oracle) gate.Decision
	UpsertMembership(ctx context.Context, accountID int64, inGroup bool) (bool, error)
	LookupMembership(ctx context.Context, accountID int64) (storage.Membership, bool, error)
	OnMemberJoined(ctx context.Context, accountID int64)
	OnMemberLeft(ctx context.Context, accountID int64)
}

// LocaleMatcher maps a requested locale or Accept-Language value to a
// supported locale.
type LocaleMatcher interface {
	Match(requested string) (string, bool)
}

// Config wires a Handler.
type Config struct {
	Gate Gate
	// Oracle is passed to every login check; nil means store-only decisions.
	Oracle        gate.Oracle
	GroupID       int64
	Locales       LocaleMatcher
	DefaultLocale string
	// Gatherer backs GET /metrics; nil disables the route.
	Gatherer prometheus.Gatherer
	// LogLevel backs GET and PUT /log/level; nil disables the route.
	LogLevel http.Handler
	Logger   *zap.Logger
}

// Handler serves the gate routes.
type Handler struct {
	gate          Gate
	oracle        gate.Oracle
	groupID       int64
	locales       LocaleMatcher
	defaultLocale string
	gatherer      prometheus.Gatherer
	logLevel      http.Handler
	logger        *zap.Logger
}

// NewHandler creates a Handler. Gate is required.
func NewHandler(cfg Config) (*Handler, error) {
	if cfg.Gate == nil {
		return nil, errors.New("gate is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		gate:          cfg.Gate,
		oracle:        cfg.Oracle,
		groupID:       cfg.GroupID,
		locales:       cfg.Locales,
		defaultLocale: cfg.DefaultLocale,
		gatherer:      cfg.Gatherer,
		logLevel:      cfg.LogLevel,
		logger:        logger,
	}, nil
}

// NewRouter returns a gin engine with recovery, access logging and the
// handler routes.
func NewRouter(h *Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), zlog.GinLogger(h.logger))
	h.RegisterRoutes(router)
	return router
}

// RegisterRoutes registers every route on r.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/healthz", h.Health)
	if h.gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})))
	}
	if h.logLevel != nil {
		r.GET("/log/level", gin.WrapH(h.logLevel))
		r.PUT("/log/level", gin.WrapH(h.logLevel))
	}

	v1 := r.Group("/v1")
	{
		v1.POST("/login-checks", h.CheckLogin)
		memberships := v1.Group("/memberships/:account_id")
		memberships.GET("", h.GetMembership)
		memberships.PUT("", h.PutMembership)
		memberships.POST("/joined", h.MemberJoined)
		memberships.POST("/left", h.MemberLeft)
	}
}

// LoginCheckRequest is the body of POST /v1/login-checks.
type LoginCheckRequest struct {
	AccountID  int64  `json:"account_id" binding:"required"`
	PlayerName string `json:"player_name"`
	Locale     string `json:"locale"`
}

// LoginCheckResponse is the decision returned to the host.
type LoginCheckResponse struct {
	Result  string `json:"result"`
	Allowed bool   `json:"allowed"`
	Message string `json:"message"`
	Source  string `json:"source"`
}

// MembershipResponse is one stored membership record.
type MembershipResponse struct {
	AccountID int64 `json:"account_id"`
	InGroup   bool  `json:"in_group"`
}

// PutMembershipRequest is the body of PUT /v1/memberships/:account_id.
type PutMembershipRequest struct {
	InGroup *bool `json:"in_group" binding:"required"`
}

// PutMembershipResponse reports whether a new record was created.
type PutMembershipResponse struct {
	Inserted bool `json:"inserted"`
}

type errorBody struct {
	Code    apperrors.Code `json:"code"`
	Message string         `json:"message"`
}

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// CheckLogin decides one login attempt.
func (h *Handler) CheckLogin(c *gin.Context) {
	var req LoginCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, apperrors.Wrap(apperrors.CodeInvalidRequest, "invalid login check", err))
		return
	}
	if req.AccountID <= 0 {
		h.writeError(c, invalidAccountID(strconv.FormatInt(req.AccountID, 10)))
		return
	}

	decision := h.gate.DecideLoginAccess(c.Request.Context(), gate.LoginAttempt{
		AccountID:  req.AccountID,
		GroupID:    h.groupID,
		PlayerName: strings.TrimSpace(req.PlayerName),
		Locale:     h.resolveLocale(req.Locale, c.GetHeader("Accept-Language")),
	}, h.oracle)

	c.JSON(http.StatusOK, LoginCheckResponse{
		Result:  decision.Result.String(),
		Allowed: decision.Allowed(),
		Message: decision.Message,
		Source:  decision.Source.String(),
	})
}

// GetMembership returns the stored record for an account.
func (h *Handler) GetMembership(c *gin.Context) {
	accountID, ok := h.accountID(c)
	if !ok {
		return
	}
	record, found, err := h.gate.LookupMembership(c.Request.Context(), accountID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if !found {
		h.writeError(c, apperrors.New(apperrors.CodeNotFound, "membership not found"))
		return
	}
	c.JSON(http.StatusOK, MembershipResponse{AccountID: record.AccountID, InGroup: record.InGroup})
}

// PutMembership records an account's membership.
func (h *Handler) PutMembership(c *gin.Context) {
	accountID, ok := h.accountID(c)
	if !ok {
		return
	}
	var req PutMembershipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, apperrors.Wrap(apperrors.CodeInvalidRequest, "invalid membership", err))
		return
	}
	inserted, err := h.gate.UpsertMembership(c.Request.Context(), accountID, *req.InGroup)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, PutMembershipResponse{Inserted: inserted})
}

// MemberJoined records a join notification.
func (h *Handler) MemberJoined(c *gin.Context) {
	accountID, ok := h.accountID(c)
	if !ok {
		return
	}
	h.gate.OnMemberJoined(c.Request.Context(), accountID)
	c.Status(http.StatusAccepted)
}

// MemberLeft records a leave notification.
func (h *Handler) MemberLeft(c *gin.Context) {
	accountID, ok := h.accountID(c)
	if !ok {
		return
	}
	h.gate.OnMemberLeft(c.Request.Context(), accountID)
	c.Status(http.StatusAccepted)
}

func (h *Handler) accountID(c *gin.Context) (int64, bool) {
	raw := c.Param("account_id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		h.writeError(c, invalidAccountID(raw))
		return 0, false
	}
	return id, true
}

// resolveLocale prefers the explicit locale, then Accept-Language, then the
// configured default.
func (h *Handler) resolveLocale(requested, acceptLanguage string) string {
	if h.locales != nil {
		for _, candidate := range []string{requested, acceptLanguage} {
			if locale, ok := h.locales.Match(candidate); ok {
				return locale
			}
		}
	}
	return h.defaultLocale
}

func (h *Handler) writeError(c *gin.Context, err error) {
	code := apperrors.CodeOf(err)
	message := "internal error"
	var domainErr *apperrors.Error
	if errors.As(err, &domainErr) {
		message = domainErr.Message
	}
	status := code.HTTPStatus()
	if status >= http.StatusInternalServerError {
		zlog.FromContext(c.Request.Context(), h.logger).Error("request failed", zap.String("code", string(code)), zap.Error(err))
	}
	c.AbortWithStatusJSON(status, gin.H{"error": errorBody{Code: code, Message: message}})
}

func invalidAccountID(raw string) error {
	return apperrors.WrapWithMetadata(apperrors.CodeInvalidAccountID, "account id must be a positive integer",
		map[string]string{"account_id": raw}, nil)
}
