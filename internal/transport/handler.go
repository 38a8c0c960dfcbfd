package transport

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/alirezacodev/card-scanner/internal/config"
	apperrors "github.com/alirezacodev/card-scanner/internal/errors"
	"github.com/alirezacodev/card-scanner/internal/logger"
	"github.com/alirezacodev/card-scanner/internal/observer"
	"github.com/alirezacodev/card-scanner/internal/service"
	"github.com/alirezacodev/card-scanner/internal/storage"
	"github.com/alirezacodev/card-scanner/pkg/models"
	"github.com/alirezacodev/card-scanner/pkg/validation"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// multipart framing and form fields on top of the image itself
const formOverhead = 1 << 20

// Dependencies are the services behind the HTTP API. Metrics may be nil.
type Dependencies struct {
	Scans   service.ScanService
	Cards   service.CardService
	Metrics *observer.MetricsObserver
	Config  *config.Config
}

func NewHandler(deps Dependencies) http.Handler {
	r := gin.New()

	r.Use(
		gin.Recovery(),
		requestLogger(),
		requestSizeLimiter(deps.Config.MaxUploadSize+formOverhead),
		errorHandler(),
	)

	r.GET("/health", healthCheck(deps))
	r.GET("/metrics", metrics(deps.Metrics))

	v1 := r.Group("/v1")
	v1.POST("/vin/scan", scanVIN(deps.Scans, deps.Config))
	v1.POST("/vin/scans", enqueueScan(deps.Scans, deps.Config))
	v1.GET("/scans", listScans(deps.Scans))
	v1.GET("/scans/:id", getScan(deps.Scans))

	r.POST("/api/extract", extractCard(deps.Cards, deps.Config))

	return r
}

func healthCheck(deps Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "available",
			"async":  deps.Scans.AsyncEnabled(),
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

func metrics(m *observer.MetricsObserver) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.JSON(http.StatusOK, gin.H{})
			return
		}
		c.JSON(http.StatusOK, m.Snapshot())
	}
}

// readSource builds a scan source from a multipart upload (field "image")
// or a JSON body naming a URL or blob.
func readSource(c *gin.Context) (service.Source, service.ScanOptions, error) {
	var opts service.ScanOptions

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		payload, err := readUpload(c, nil)
		if err != nil {
			return service.Source{}, opts, err
		}
		opts.Language = c.PostForm("language")
		opts.ExpectedVIN = c.PostForm("expected_vin")
		return service.Source{Upload: payload}, opts, nil
	}

	var req models.ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if tooLarge(err) {
			return service.Source{}, opts, apperrors.NewValidationError(validation.MsgFileTooLarge, err)
		}
		return service.Source{}, opts, apperrors.NewValidationError("invalid request format", err)
	}
	opts.Language = req.Language
	opts.ExpectedVIN = req.ExpectedVIN

	switch {
	case req.URL != "" && req.Blob != nil:
		return service.Source{}, opts, apperrors.NewValidationError("provide either url or blob, not both", nil)
	case req.URL != "":
		return service.Source{URL: req.URL}, opts, nil
	case req.Blob != nil:
		return service.Source{Blob: req.Blob}, opts, nil
	}
	return service.Source{}, opts, apperrors.NewValidationError(validation.MsgImageRequired, nil)
}

// readUpload reads the "image" form file. A non-nil check rejects the file
// from its part headers before it is read.
func readUpload(c *gin.Context, check *validation.UploadValidator) (*storage.Payload, error) {
	fh, err := c.FormFile("image")
	if err != nil {
		if tooLarge(err) {
			return nil, apperrors.NewValidationError(validation.MsgFileTooLarge, err)
		}
		return nil, apperrors.NewValidationError(validation.MsgImageRequired, err)
	}
	if check != nil {
		if err := check.Validate(fh.Size, fh.Header.Get("Content-Type")); err != nil {
			return nil, err
		}
	}
	return readFileHeader(fh)
}

func readFileHeader(fh *multipart.FileHeader) (*storage.Payload, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, apperrors.NewValidationError(validation.MsgImageRequired, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, apperrors.NewValidationError("failed to read upload", err)
	}
	// the declared part type decides acceptance, as browsers send it
	return &storage.Payload{Data: data, ContentType: fh.Header.Get("Content-Type")}, nil
}

func tooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr) || errors.Is(err, multipart.ErrMessageTooLarge)
}

func scanVIN(scans service.ScanService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()

		src, opts, err := readSource(c)
		if err != nil {
			respondError(c, "invalid scan request", err)
			return
		}

		if async, _ := strconv.ParseBool(c.Query("async")); async {
			accept(ctx, c, scans, src, opts)
			return
		}

		resp, err := scans.Scan(ctx, src, opts)
		if err != nil {
			respondError(c, "scan failed", err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

func enqueueScan(scans service.ScanService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()

		src, opts, err := readSource(c)
		if err != nil {
			respondError(c, "invalid scan request", err)
			return
		}
		accept(ctx, c, scans, src, opts)
	}
}

func accept(ctx context.Context, c *gin.Context, scans service.ScanService, src service.Source, opts service.ScanOptions) {
	resp, err := scans.Enqueue(ctx, src, opts)
	if err != nil {
		respondError(c, "failed to queue scan", err)
		return
	}
	c.Header("Location", resp.StatusURL)
	c.JSON(http.StatusAccepted, resp)
}

func getScan(scans service.ScanService) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp, err := scans.GetScan(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, "scan lookup failed", err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

func listScans(scans service.ScanService) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
		resp, err := scans.ListScans(c.Request.Context(), limit)
		if err != nil {
			respondError(c, "scan listing failed", err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

// extractCard answers with the {ok, data} / {ok, error} envelope.
func extractCard(cards service.CardService, cfg *config.Config) gin.HandlerFunc {
	uploads := validation.NewUploadValidator(cfg.MaxUploadSize)
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()

		payload, err := readUpload(c, uploads)
		if err == nil {
			var data interface{}
			data, err = cards.ExtractCard(ctx, payload)
			if err == nil {
				c.JSON(http.StatusOK, models.Success(data))
				return
			}
		}

		code := apperrors.GetStatusCode(err)
		logger.WithError(err).WithFields(logrus.Fields{
			"status_code": code,
			"path":        c.Request.URL.Path,
			"ip":          c.ClientIP(),
		}).Error("Card extraction request failed")
		c.AbortWithStatusJSON(code, models.Failure(apperrors.Message(err, "Internal error")))
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.WithFields(logrus.Fields{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
			"ip":          c.ClientIP(),
			"user_agent":  c.Request.UserAgent(),
		}).Info("Request handled")
	}
}

func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func errorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			respondError(c, "request processing failed", c.Errors.Last().Err)
		}
	}
}

func determineStatusCode(err error) int {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, message string, err error) {
	code := determineStatusCode(err)

	logger.WithError(err).WithFields(logrus.Fields{
		"status_code": code,
		"message":     message,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	}).Error("Request failed")

	resp := models.ErrorResponse{
		Error:   http.StatusText(code),
		Message: apperrors.Message(err, message),
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		resp.Details = appErr.Details
	}
	c.AbortWithStatusJSON(code, resp)
}
