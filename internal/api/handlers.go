package api

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"ledger-bank-reconciler/internal/models"
	"ledger-bank-reconciler/internal/parsers"
	"ledger-bank-reconciler/internal/reconciler"
	apperrors "ledger-bank-reconciler/pkg/errors"
	"ledger-bank-reconciler/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handler serves the reconciliation routes
type Handler struct {
	config  *RouterConfig
	service *reconciler.Service
	store   reconciler.TransactionStore
	logger  logger.Logger
}

// NewHandler creates the route handlers. store may be nil, in which case the
// session routes answer 500 with a configuration error.
func NewHandler(config *RouterConfig, service *reconciler.Service, store reconciler.TransactionStore, log logger.Logger) *Handler {
	return &Handler{
		config:  config,
		service: service,
		store:   store,
		logger:  logger.OrGlobal(log),
	}
}

// ReconcileRequest is the body of the stateless endpoint. Ledger and Bank
// are arrays in the upload JSON shape, so amounts may be numbers or text.
type ReconcileRequest struct {
	Ledger        json.RawMessage `json:"ledger"`
	Bank          json.RawMessage `json:"bank"`
	ToleranceDays *int            `json:"toleranceDays"`
}

type errorBody struct {
	Category   apperrors.ErrorCategory `json:"category"`
	Code       apperrors.ErrorCode     `json:"code"`
	Message    string                  `json:"message"`
	Suggestion string                  `json:"suggestion,omitempty"`
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Reconcile runs a stateless reconciliation over the lists in the body
func (h *Handler) Reconcile(c *gin.Context) {
	h.limitBody(c)

	var req ReconcileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		verr := apperrors.ValidationError(apperrors.CodeInvalidData, "body", nil, err)
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			verr = verr.WithSuggestion(fmt.Sprintf("keep the request body under %d bytes or upload through a session", tooLarge.Limit))
		}
		h.fail(c, verr)
		return
	}

	tolerance := h.defaultTolerance()
	if req.ToleranceDays != nil {
		tolerance = *req.ToleranceDays
	}
	if q, ok := c.GetQuery("tolerance"); ok {
		t, err := parseTolerance(q)
		if err != nil {
			h.fail(c, err)
			return
		}
		tolerance = t
	}

	ledger, err := decodeList(req.Ledger, "ledger")
	if err != nil {
		h.fail(c, err)
		return
	}
	bank, err := decodeList(req.Bank, "bank")
	if err != nil {
		h.fail(c, err)
		return
	}

	ctx, cancel := h.runContext(c)
	defer cancel()

	result, err := h.service.Reconcile(ctx, ledger, bank, tolerance)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) CreateSession(c *gin.Context) {
	if !h.requireStore(c) {
		return
	}
	sess, err := h.store.CreateSession(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, sess)
}

func (h *Handler) GetSession(c *gin.Context) {
	if !h.requireStore(c) {
		return
	}
	sess, err := h.store.Session(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (h *Handler) UploadLedger(c *gin.Context) {
	h.upload(c, models.OriginLedger)
}

func (h *Handler) UploadBank(c *gin.Context) {
	h.upload(c, models.OriginBank)
}

func (h *Handler) ClearSession(c *gin.Context) {
	if !h.requireStore(c) {
		return
	}
	if err := h.store.Clear(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ReconcileSession reconciles a session's uploads. Uploads are left in place
// so the call can be repeated with another tolerance.
func (h *Handler) ReconcileSession(c *gin.Context) {
	if !h.requireStore(c) {
		return
	}

	tolerance := h.defaultTolerance()
	if q, ok := c.GetQuery("tolerance"); ok {
		t, err := parseTolerance(q)
		if err != nil {
			h.fail(c, err)
			return
		}
		tolerance = t
	}

	ctx, cancel := h.runContext(c)
	defer cancel()

	result, err := h.service.ReconcileSession(ctx, c.Param("id"), tolerance)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) upload(c *gin.Context, origin models.Origin) {
	if !h.requireStore(c) {
		return
	}
	sessionID := c.Param("id")
	ctx := c.Request.Context()

	records, err := h.readRecords(c, sessionID+"/"+origin.String())
	if err != nil {
		h.fail(c, err)
		return
	}

	var total int
	if origin == models.OriginLedger {
		total, err = h.store.AppendLedger(ctx, sessionID, records)
	} else {
		total, err = h.store.AppendBank(ctx, sessionID, records)
	}
	if err != nil {
		h.fail(c, err)
		return
	}

	h.logger.WithFields(logger.Fields{
		"session": sessionID,
		"origin":  origin,
		"added":   len(records),
		"total":   total,
	}).Info("Records uploaded")

	c.JSON(http.StatusOK, gin.H{"added": len(records), "total": total})
}

// readRecords decodes the request body. JSON bodies hold an array of records;
// anything else is read as CSV, either raw or as the "file" field of a
// multipart form. The ?format= query selects a CSV layout.
func (h *Handler) readRecords(c *gin.Context, source string) ([]models.RawRecord, error) {
	h.limitBody(c)
	body := c.Request.Body

	mediaType, _, _ := mime.ParseMediaType(c.ContentType())
	if mediaType == "application/json" {
		return parsers.ParseJSON(body, source)
	}

	format := parsers.GetFormat(c.Query("format"))
	if format == nil {
		return nil, apperrors.ValidationError(apperrors.CodeInvalidFormat, "format", c.Query("format"), nil).
			WithSuggestion("use one of: " + strings.Join(formatNames(), ", "))
	}
	parser, err := parsers.NewRecordParser(format, h.logger)
	if err != nil {
		return nil, err
	}

	var reader io.Reader = body
	if mediaType == "multipart/form-data" {
		fh, err := c.FormFile("file")
		if err != nil {
			return nil, apperrors.ValidationError(apperrors.CodeMissingField, "file", nil, err)
		}
		f, err := fh.Open()
		if err != nil {
			return nil, apperrors.FileError(apperrors.CodeFilePermission, fh.Filename, err)
		}
		defer f.Close()
		reader = f
		source = fh.Filename
	}

	records, _, err := parser.ParseReader(c.Request.Context(), reader, source)
	return records, err
}

// limitBody caps the request body at MaxUploadBytes; zero means no limit
func (h *Handler) limitBody(c *gin.Context) {
	if h.config.MaxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.config.MaxUploadBytes)
	}
}

func decodeList(raw json.RawMessage, source string) ([]models.RawRecord, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	return parsers.ParseJSON(bytes.NewReader(raw), source)
}

func formatNames() []string {
	var names []string
	for _, f := range parsers.ListFormats() {
		names = append(names, f.Name)
	}
	return names
}

func (h *Handler) requireStore(c *gin.Context) bool {
	if h.store != nil {
		return true
	}
	h.fail(c, apperrors.New(apperrors.CategoryConfiguration, apperrors.CodeMissingConfig, "sessions are not enabled on this server"))
	return false
}

func (h *Handler) defaultTolerance() int {
	return h.service.Config().Matching.ToleranceDays
}

func (h *Handler) runContext(c *gin.Context) (context.Context, context.CancelFunc) {
	if h.config.RequestTimeout <= 0 {
		return context.WithCancel(c.Request.Context())
	}
	return context.WithTimeout(c.Request.Context(), h.config.RequestTimeout)
}

func (h *Handler) fail(c *gin.Context, err error) {
	re, ok := apperrors.AsReconcilerError(err)
	if !ok {
		re = apperrors.InternalError(apperrors.CodeUnexpectedError, c.FullPath(), err)
	}
	status := re.HTTPStatus()
	if status >= http.StatusInternalServerError {
		h.logger.WithError(err).WithField("path", c.FullPath()).Error("Request failed")
	}
	c.AbortWithStatusJSON(status, gin.H{"error": errorBody{
		Category:   re.Category,
		Code:       re.Code,
		Message:    re.Message,
		Suggestion: re.Suggestion,
	}})
}

func parseTolerance(q string) (int, error) {
	t, err := strconv.Atoi(strings.TrimSpace(q))
	if err != nil {
		return 0, apperrors.ValidationError(apperrors.CodeInvalidTolerance, "tolerance", q, err)
	}
	return t, nil
}
