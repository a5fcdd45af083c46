package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/tradewire/fieldsync/internal/auth"
	"github.com/tradewire/fieldsync/internal/masterdata"
	"github.com/tradewire/fieldsync/internal/sync"
	"go.uber.org/zap"
)

const identityContextKey = "fieldsync_identity"

var (
	errMissingTokenManager  = errors.New("token manager dependency required")
	errMissingProcessor     = errors.New("sync processor dependency required")
	errMissingBuilder       = errors.New("bundle builder dependency required")
	errMissingExecutor      = errors.New("approval executor dependency required")
	errMissingDirectory     = errors.New("master data directory dependency required")
	errMissingPendingStore  = errors.New("pending store dependency required")
	errInvalidAuthorization = errors.New("authorization header missing or invalid")
)

// TokenValidator validates API tokens into caller identities.
type TokenValidator interface {
	Validate(token string) (*auth.Identity, error)
}

// Dependencies wires the HTTP layer to the sync pipeline.
type Dependencies struct {
	TokenManager TokenValidator
	Processor    *sync.Processor
	Builder      *sync.Builder
	Executor     *sync.Executor
	Pending      *sync.PendingStore
	Directory    *masterdata.Directory
	Logger       *zap.Logger
}

// NewHTTPHandler builds the gin router for the sync and approval endpoints.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.TokenManager == nil {
		return nil, errMissingTokenManager
	}
	if deps.Processor == nil {
		return nil, errMissingProcessor
	}
	if deps.Builder == nil {
		return nil, errMissingBuilder
	}
	if deps.Executor == nil {
		return nil, errMissingExecutor
	}
	if deps.Pending == nil {
		return nil, errMissingPendingStore
	}
	if deps.Directory == nil {
		return nil, errMissingDirectory
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		tokens:    deps.TokenManager,
		processor: deps.Processor,
		builder:   deps.Builder,
		executor:  deps.Executor,
		pending:   deps.Pending,
		directory: deps.Directory,
		logger:    logger,
	}

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)
	protected.POST("/sync/upload", handler.handleSyncUpload)
	protected.GET("/sync/bundle", handler.handleSyncBundle)
	protected.GET("/approvals", handler.handleListApprovals)
	protected.POST("/approvals/:id/approve", handler.handleApprove)
	protected.POST("/approvals/:id/reject", handler.handleReject)

	return router, nil
}

type httpHandler struct {
	tokens    TokenValidator
	processor *sync.Processor
	builder   *sync.Builder
	executor  *sync.Executor
	pending   *sync.PendingStore
	directory *masterdata.Directory
	logger    *zap.Logger
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	identity, err := h.tokens.Validate(token)
	if err != nil {
		h.logger.Warn("token validation failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(identityContextKey, identity)
	c.Next()
}

func (h *httpHandler) identity(c *gin.Context) *auth.Identity {
	value, ok := c.Get(identityContextKey)
	if !ok {
		return nil
	}
	identity, ok := value.(*auth.Identity)
	if !ok {
		return nil
	}
	return identity
}

// salesman resolves the caller's linked salesman. Upload and bundle requests
// fail with 400 when the caller has no salesman identity.
func (h *httpHandler) salesman(c *gin.Context) *masterdata.Salesman {
	identity := h.identity(c)
	if identity == nil || identity.SalesmanID == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no linked salesman identity"})
		return nil
	}
	salesman, err := h.directory.SalesmanByID(c.Request.Context(), *identity.SalesmanID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no linked salesman identity"})
		return nil
	}
	return salesman
}

func (h *httpHandler) handleSyncUpload(c *gin.Context) {
	salesman := h.salesman(c)
	if salesman == nil {
		return
	}

	var request sync.UploadRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	result := h.processor.ProcessBatch(c.Request.Context(), salesman, request)

	status, err := h.builder.SyncStatus(c.Request.Context(), salesman.ID)
	if err != nil {
		h.logger.Error("sync status read failed", zap.Error(err))
		status = nil
	}

	c.JSON(http.StatusOK, sync.UploadResponse{
		DatasetVersion:  time.Now().UTC().Format(time.RFC3339),
		Orders:          result.Orders,
		Recoveries:      result.Recoveries,
		SyncStatus:      status,
		UpdatedBalances: h.builder.BalancesFor(c.Request.Context(), result.RecoveryCustomers),
	})
}

func (h *httpHandler) handleSyncBundle(c *gin.Context) {
	salesman := h.salesman(c)
	if salesman == nil {
		return
	}

	bundle, err := h.builder.Build(c.Request.Context(), salesman.ID)
	if err != nil {
		h.logger.Error("bundle assembly failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "bundle_failed"})
		return
	}
	c.JSON(http.StatusOK, bundle)
}

func (h *httpHandler) handleListApprovals(c *gin.Context) {
	status := sync.PendingStatus(c.DefaultQuery("status", string(sync.PendingStatusPending)))
	entryType := sync.EntryType(c.Query("type"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	entries, err := h.pending.ListByStatus(c.Request.Context(), status, entryType, limit, offset)
	if err != nil {
		h.logger.Error("approval list failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (h *httpHandler) reviewer(c *gin.Context) sync.Reviewer {
	identity := h.identity(c)
	reviewer := sync.Reviewer{}
	if identity == nil {
		return reviewer
	}
	if parsed, err := strconv.ParseUint(identity.UserID, 10, 32); err == nil {
		reviewer.ID = uint(parsed)
	}
	reviewer.Name = identity.DisplayName
	return reviewer
}

func (h *httpHandler) handleApprove(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_id"})
		return
	}

	result, err := h.executor.Approve(c.Request.Context(), uint(id), h.reviewer(c))
	if err != nil {
		if sync.IsConflict(err) || sync.IsValidation(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("approval failed", zap.Uint64("pending_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "approval_failed"})
		return
	}
	c.JSON(http.StatusOK, result)
}

type rejectRequestPayload struct {
	Reason string `json:"reason"`
}

func (h *httpHandler) handleReject(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_id"})
		return
	}

	var request rejectRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.Reason) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "rejection reason is required"})
		return
	}

	if err := h.executor.Reject(c.Request.Context(), uint(id), strings.TrimSpace(request.Reason), h.reviewer(c)); err != nil {
		if sync.IsConflict(err) || sync.IsValidation(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("rejection failed", zap.Uint64("pending_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "rejection_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "rejected"})
}
