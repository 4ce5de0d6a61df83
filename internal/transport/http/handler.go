package http

import (
	"net/http"

	"log/slog"

	"github.com/astro-web3/obo-data-gateway/internal/app/gateway"
	"github.com/astro-web3/obo-data-gateway/internal/infra/docstore"
	"github.com/astro-web3/obo-data-gateway/pkg/logger"
	"github.com/astro-web3/obo-data-gateway/pkg/tracer"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

type queryRequestBody struct {
	ContainerName string `json:"containerName"`
	Query         string `json:"query,omitempty"`
}

type queryResponseBody struct {
	Success   bool              `json:"success"`
	Data      []docstore.Record `json:"data"`
	ItemCount int               `json:"itemCount"`
}

type accessResponseBody struct {
	UserID            string   `json:"userId"`
	AllowedContainers []string `json:"allowedContainers"`
}

type errorResponseBody struct {
	Success      bool   `json:"success"`
	ErrorMessage string `json:"errorMessage"`
}

type Handler struct {
	appService gateway.Service
}

func NewHandler(appService gateway.Service) *Handler {
	return &Handler{appService: appService}
}

func (h *Handler) QueryContainer(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "transport.http.QueryContainer")
	defer span.End()

	var body queryRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, errorResponseBody{
			ErrorMessage: "invalid request body",
		})
		return
	}

	span.SetAttributes(attribute.String("gateway.container", body.ContainerName))

	result, err := h.appService.QueryContainer(ctx, c.GetHeader("Authorization"), gateway.QueryRequest{
		ContainerName: body.ContainerName,
		Query:         body.Query,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	data := result.Items
	if data == nil {
		data = []docstore.Record{}
	}
	c.JSON(http.StatusOK, queryResponseBody{
		Success:   true,
		Data:      data,
		ItemCount: result.ItemCount,
	})
}

func (h *Handler) DescribeAccess(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "transport.http.DescribeAccess")
	defer span.End()

	summary, err := h.appService.DescribeAccess(ctx, c.GetHeader("Authorization"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	allowed := summary.AllowedContainers
	if allowed == nil {
		allowed = []string{}
	}
	c.JSON(http.StatusOK, accessResponseBody{
		UserID:            summary.SubjectID,
		AllowedContainers: allowed,
	})
}

func (h *Handler) respondError(c *gin.Context, err error) {
	outcome := classify(err)

	if outcome.status >= http.StatusInternalServerError {
		logger.ErrorContext(c.Request.Context(), "request failed",
			slog.String("error", err.Error()),
		)
	} else {
		logger.WarnContext(c.Request.Context(), "request rejected",
			slog.Int("status", outcome.status),
			slog.String("error", err.Error()),
		)
	}

	if outcome.retryAfter != "" {
		c.Header("Retry-After", outcome.retryAfter)
	}
	c.JSON(outcome.status, errorResponseBody{
		ErrorMessage: outcome.message,
	})
}
