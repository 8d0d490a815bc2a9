package handlers

import (
	"context"
	"errors"
	"log"
	nethttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"portal-service/internal/apiclient"
	"portal-service/internal/middleware"
	"portal-service/internal/models"
	"portal-service/internal/network"
	"portal-service/internal/services"
	"portal-service/internal/workspace"
)

func requestIDFromContext(c *gin.Context) string {
	if requestID := apiclient.RequestIDFrom(c.Request.Context()); requestID != "" {
		return requestID
	}
	if requestID := c.GetHeader(middleware.RequestIDHeader); requestID != "" {
		return requestID
	}
	return uuid.NewString()
}

func viewerIDFromContext(c *gin.Context) string {
	return c.GetString(middleware.ViewerIDKey)
}

// workspaceFor returns the caller's workspace, or writes 401 and returns nil.
func workspaceFor(c *gin.Context, registry *workspace.Registry) *workspace.Workspace {
	viewerID := viewerIDFromContext(c)
	token := c.GetString(middleware.TokenKey)
	if viewerID == "" || token == "" {
		c.JSON(nethttp.StatusUnauthorized, gin.H{"error": "unauthorized", "redirect": "/login"})
		return nil
	}
	return registry.Get(viewerID, token)
}

// respondError maps an error from the API layer onto a response for the UI.
func respondError(c *gin.Context, err error) {
	var apiErr *apiclient.APIError
	switch {
	case errors.Is(err, apiclient.ErrSessionExpired):
		c.SetCookie(middleware.SessionCookie, "", -1, "/", "", false, true)
		c.JSON(nethttp.StatusUnauthorized, gin.H{"error": "session expired", "redirect": "/login"})
	case errors.Is(err, network.ErrUnknownTab),
		errors.Is(err, network.ErrNotPaged),
		errors.Is(err, network.ErrMissingID),
		errors.Is(err, services.ErrInvalidStatus):
		c.JSON(nethttp.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, network.ErrClosed), errors.Is(err, context.Canceled):
		c.JSON(nethttp.StatusServiceUnavailable, gin.H{"error": "request cancelled"})
	case errors.As(err, &apiErr):
		status := apiErr.StatusCode
		if status >= nethttp.StatusInternalServerError {
			status = nethttp.StatusBadGateway
		}
		c.JSON(status, gin.H{"error": apiErr.Error()})
	default:
		log.Printf("warning: upstream call failed: %v", err)
		c.JSON(nethttp.StatusBadGateway, gin.H{"error": "job portal API unavailable"})
	}
}

func pageFromQuery(c *gin.Context) models.Page {
	return services.ParsePage(c.Query("page"), c.Query("limit"))
}
