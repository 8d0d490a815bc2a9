package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"portal-service/internal/apiclient"
	"portal-service/internal/models"
)

var ErrInvalidStatus = errors.New("invalid application status")

type JobInput struct {
	Title        string   `json:"title" binding:"required"`
	Company      string   `json:"company" binding:"required"`
	Location     string   `json:"location"`
	Type         string   `json:"type"`
	Description  string   `json:"description" binding:"required"`
	Requirements []string `json:"requirements"`
	Salary       string   `json:"salary"`
	Status       string   `json:"status"`
}

type ApplyInput struct {
	JobID       string `json:"jobId"`
	CoverLetter string `json:"coverLetter,omitempty"`
	ResumeURL   string `json:"resumeUrl,omitempty"`
}

type JobService struct {
	client *apiclient.Client
}

func NewJobService(client *apiclient.Client) *JobService {
	return &JobService{client: client}
}

func (s *JobService) ListJobs(ctx context.Context, filter models.JobFilter) ([]models.Job, error) {
	query := pageQuery(filter.Page)
	setIf(query, "search", filter.Search)
	setIf(query, "location", filter.Location)
	setIf(query, "type", filter.Type)

	var raw json.RawMessage
	if err := s.client.Get(ctx, "/jobs", query, &raw); err != nil {
		return nil, err
	}
	return decodeList(raw, jobFromWire, "jobs")
}

func (s *JobService) GetJob(ctx context.Context, jobID string) (models.Job, error) {
	var raw json.RawMessage
	if err := s.client.Get(ctx, "/jobs/"+url.PathEscape(jobID), nil, &raw); err != nil {
		return models.Job{}, err
	}
	return decodeOne(raw, jobFromWire, "job")
}

func (s *JobService) CreateJob(ctx context.Context, input JobInput) (models.Job, error) {
	var raw json.RawMessage
	if err := s.client.Post(ctx, "/jobs", input, &raw); err != nil {
		return models.Job{}, err
	}
	return decodeOne(raw, jobFromWire, "job")
}

func (s *JobService) UpdateJob(ctx context.Context, jobID string, input JobInput) (models.Job, error) {
	var raw json.RawMessage
	if err := s.client.Put(ctx, "/jobs/"+url.PathEscape(jobID), input, &raw); err != nil {
		return models.Job{}, err
	}
	return decodeOne(raw, jobFromWire, "job")
}

func (s *JobService) DeleteJob(ctx context.Context, jobID string) error {
	return s.client.Delete(ctx, "/jobs/"+url.PathEscape(jobID), nil)
}

func (s *JobService) Apply(ctx context.Context, input ApplyInput) (models.Application, error) {
	var raw json.RawMessage
	if err := s.client.Post(ctx, "/applications", input, &raw); err != nil {
		return models.Application{}, err
	}
	return decodeOne(raw, applicationFromWire, "application")
}

func (s *JobService) MyApplications(ctx context.Context, page models.Page) ([]models.Application, error) {
	var raw json.RawMessage
	if err := s.client.Get(ctx, "/applications/my", pageQuery(page), &raw); err != nil {
		return nil, err
	}
	return decodeList(raw, applicationFromWire, "applications")
}

// AdminApplications lists applications visible to a recruiter or admin.
func (s *JobService) AdminApplications(ctx context.Context, filter models.ApplicationFilter) ([]models.Application, error) {
	query := pageQuery(filter.Page)
	setIf(query, "status", string(filter.Status))
	setIf(query, "job", filter.JobID)

	var raw json.RawMessage
	if err := s.client.Get(ctx, "/applications/admin", query, &raw); err != nil {
		return nil, err
	}
	return decodeList(raw, applicationFromWire, "applications")
}

// UpdateApplicationStatus only checks the label set; the API decides which transitions are legal.
func (s *JobService) UpdateApplicationStatus(ctx context.Context, applicationID string, status models.ApplicationStatus) (models.Application, error) {
	if !status.Valid() {
		return models.Application{}, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	var raw json.RawMessage
	path := "/applications/" + url.PathEscape(applicationID) + "/status"
	if err := s.client.Put(ctx, path, map[string]string{"status": string(status)}, &raw); err != nil {
		return models.Application{}, err
	}
	return decodeOne(raw, applicationFromWire, "application")
}

func (s *JobService) AdminStats(ctx context.Context) (models.Stats, error) {
	var raw json.RawMessage
	if err := s.client.Get(ctx, "/jobs/admin/stats", nil, &raw); err != nil {
		return models.Stats{}, err
	}

	var body struct {
		TotalJobs         int            `json:"totalJobs"`
		ActiveJobs        int            `json:"activeJobs"`
		TotalApplications int            `json:"totalApplications"`
		TotalUsers        int            `json:"totalUsers"`
		ByStatus          map[string]int `json:"applicationsByStatus"`
	}
	if err := json.Unmarshal(unwrapObject(raw, "stats"), &body); err != nil {
		return models.Stats{}, fmt.Errorf("failed to decode stats: %w", err)
	}

	stats := models.Stats{
		TotalJobs:         body.TotalJobs,
		ActiveJobs:        body.ActiveJobs,
		TotalApplications: body.TotalApplications,
		TotalUsers:        body.TotalUsers,
		ByStatus:          make(map[models.ApplicationStatus]int, len(body.ByStatus)),
	}
	for status, count := range body.ByStatus {
		stats.ByStatus[models.ApplicationStatus(status)] = count
	}
	return stats, nil
}

func setIf(query url.Values, key, value string) {
	if value != "" {
		query.Set(key, value)
	}
}

func ParsePage(number, limit string) models.Page {
	n, _ := strconv.Atoi(number)
	l, _ := strconv.Atoi(limit)
	return models.Page{Number: n, Limit: l}
}
