package handlers

import (
	nethttp "net/http"

	"github.com/gin-gonic/gin"

	"portal-service/internal/metrics"
	"portal-service/internal/models"
	"portal-service/internal/services"
	"portal-service/internal/telemetry"
	"portal-service/internal/workspace"
)

type JobsHandler struct {
	registry *workspace.Registry
	audit    *telemetry.AuditEmitter
	events   *telemetry.EventEmitter
}

func NewJobsHandler(registry *workspace.Registry, audit *telemetry.AuditEmitter, events *telemetry.EventEmitter) *JobsHandler {
	return &JobsHandler{registry: registry, audit: audit, events: events}
}

type pageInfo struct {
	Number int `json:"page"`
	Limit  int `json:"limit"`
}

type boardResponse[T any] struct {
	Items    []T                        `json:"items"`
	Page     pageInfo                   `json:"page"`
	Statuses []models.ApplicationStatus `json:"statuses,omitempty"`
}

func newPageInfo(page models.Page) pageInfo {
	page = page.Normalize(10)
	return pageInfo{Number: page.Number, Limit: page.Limit}
}

type applyBody struct {
	CoverLetter string `json:"cover_letter"`
	ResumeURL   string `json:"resume_url"`
}

type statusBody struct {
	Status models.ApplicationStatus `json:"status" binding:"required"`
}

func (h *JobsHandler) ListJobs(c *gin.Context) {
	ws := workspaceFor(c, h.registry)
	if ws == nil {
		return
	}
	filter := models.JobFilter{
		Search:   c.Query("q"),
		Location: c.Query("location"),
		Type:     c.Query("type"),
		Page:     pageFromQuery(c),
	}
	jobs, err := ws.Jobs.ListJobs(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(nethttp.StatusOK, boardResponse[models.Job]{Items: jobs, Page: newPageInfo(filter.Page)})
}

func (h *JobsHandler) GetJob(c *gin.Context) {
	ws := workspaceFor(c, h.registry)
	if ws == nil {
		return
	}
	job, err := ws.Jobs.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(nethttp.StatusOK, job)
}

func (h *JobsHandler) CreateJob(c *gin.Context) {
	ws := workspaceFor(c, h.registry)
	if ws == nil || !requireModerator(c, ws) {
		return
	}
	var body services.JobInput
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(nethttp.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	job, err := ws.Jobs.CreateJob(c.Request.Context(), body)
	if err != nil {
		respondError(c, err)
		return
	}
	h.audit.EmitAudit(c.Request.Context(), telemetry.LevelInfo, "Job '"+job.ID+"' created", requestIDFromContext(c), viewerIDFromContext(c))
	c.JSON(nethttp.StatusCreated, job)
}

func (h *JobsHandler) UpdateJob(c *gin.Context) {
	ws := workspaceFor(c, h.registry)
	if ws == nil || !requireModerator(c, ws) {
		return
	}
	var body services.JobInput
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(nethttp.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	job, err := ws.Jobs.UpdateJob(c.Request.Context(), c.Param("id"), body)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(nethttp.StatusOK, job)
}

func (h *JobsHandler) DeleteJob(c *gin.Context) {
	ws := workspaceFor(c, h.registry)
	if ws == nil || !requireModerator(c, ws) {
		return
	}
	jobID := c.Param("id")
	if err := ws.Jobs.DeleteJob(c.Request.Context(), jobID); err != nil {
		respondError(c, err)
		return
	}
	h.audit.EmitAudit(c.Request.Context(), telemetry.LevelInfo, "Job '"+jobID+"' deleted", requestIDFromContext(c), viewerIDFromContext(c))
	c.Status(nethttp.StatusNoContent)
}

func (h *JobsHandler) Apply(c *gin.Context) {
	ws := workspaceFor(c, h.registry)
	if ws == nil {
		return
	}
	var body applyBody
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(nethttp.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}
	app, err := ws.Jobs.Apply(c.Request.Context(), services.ApplyInput{
		JobID:       c.Param("id"),
		CoverLetter: body.CoverLetter,
		ResumeURL:   body.ResumeURL,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(nethttp.StatusCreated, app)
}

func (h *JobsHandler) MyApplications(c *gin.Context) {
	ws := workspaceFor(c, h.registry)
	if ws == nil {
		return
	}
	page := pageFromQuery(c)
	apps, err := ws.Jobs.MyApplications(c.Request.Context(), page)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(nethttp.StatusOK, boardResponse[models.Application]{
		Items:    apps,
		Page:     newPageInfo(page),
		Statuses: models.ApplicationStatuses(),
	})
}

// AdminApplications is the recruiter board, filterable by ?status= and ?job=.
func (h *JobsHandler) AdminApplications(c *gin.Context) {
	ws := workspaceFor(c, h.registry)
	if ws == nil || !requireModerator(c, ws) {
		return
	}
	filter := models.ApplicationFilter{
		Status: models.ApplicationStatus(c.Query("status")),
		JobID:  c.Query("job"),
		Page:   pageFromQuery(c),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		c.JSON(nethttp.StatusBadRequest, gin.H{"error": "unknown status filter"})
		return
	}
	apps, err := ws.Jobs.AdminApplications(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(nethttp.StatusOK, boardResponse[models.Application]{
		Items:    apps,
		Page:     newPageInfo(filter.Page),
		Statuses: models.ApplicationStatuses(),
	})
}

func (h *JobsHandler) Statuses(c *gin.Context) {
	c.JSON(nethttp.StatusOK, gin.H{"statuses": models.ApplicationStatuses()})
}

func (h *JobsHandler) UpdateApplicationStatus(c *gin.Context) {
	ws := workspaceFor(c, h.registry)
	if ws == nil || !requireModerator(c, ws) {
		return
	}
	ctx := c.Request.Context()
	requestID := requestIDFromContext(c)
	viewerID := viewerIDFromContext(c)
	applicationID := c.Param("id")

	var body statusBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(nethttp.StatusBadRequest, gin.H{"error": "status is required"})
		return
	}

	label := string(body.Status)
	if !body.Status.Valid() {
		label = "invalid"
	}

	app, err := ws.Jobs.UpdateApplicationStatus(ctx, applicationID, body.Status)
	if err != nil {
		h.audit.Failure(ctx, "failed to set application '"+applicationID+"' to "+string(body.Status), err, requestID, viewerID)
		h.events.Emit(ctx, telemetry.ApplicationStatusKey, requestID, viewerID, telemetry.ApplicationStatusPayload{
			ApplicationID: applicationID, Status: string(body.Status), Result: metrics.StatusFailed, Error: err.Error(),
		})
		metrics.IncApplicationStatusUpdate(label, metrics.StatusFailed)
		respondError(c, err)
		return
	}

	h.audit.EmitAudit(ctx, telemetry.LevelInfo, "Application '"+applicationID+"' set to "+string(app.Status), requestID, viewerID)
	h.events.Emit(ctx, telemetry.ApplicationStatusKey, requestID, viewerID, telemetry.ApplicationStatusPayload{
		ApplicationID: applicationID, JobID: app.Job.ID, Status: string(app.Status), Result: metrics.StatusSuccess,
	})
	metrics.IncApplicationStatusUpdate(label, metrics.StatusSuccess)
	c.JSON(nethttp.StatusOK, app)
}

func (h *JobsHandler) Stats(c *gin.Context) {
	ws := workspaceFor(c, h.registry)
	if ws == nil || !requireModerator(c, ws) {
		return
	}
	stats, err := ws.Jobs.AdminStats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(nethttp.StatusOK, stats)
}
