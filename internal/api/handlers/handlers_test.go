package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"beacon/internal/api/middleware"
	"beacon/internal/config"
	"beacon/internal/domain/models"
	"beacon/internal/domain/services"
	"beacon/internal/jobs"
	"beacon/pkg/logger"
)

var testSession = models.Session{AnonID: "anon-42", Language: language.Hindi}

type mockComplaints struct {
	mock.Mock
	submitted *models.ComplaintSubmission
	evidence  []string
}

func (m *mockComplaints) Submit(ctx context.Context, sess models.Session, sub *models.ComplaintSubmission) (*models.SubmissionResult, error) {
	m.submitted = sub
	for _, e := range sub.Evidence {
		data, _ := io.ReadAll(e.Body)
		m.evidence = append(m.evidence, e.OriginalName+"="+string(data))
	}
	args := m.Called(sess.AnonID)
	if r := args.Get(0); r != nil {
		return r.(*models.SubmissionResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockComplaints) Get(ctx context.Context, caseID string) (*models.Complaint, error) {
	args := m.Called(caseID)
	if c := args.Get(0); c != nil {
		return c.(*models.Complaint), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockComplaints) List(ctx context.Context, filter models.ComplaintFilter) (*models.ComplaintListResponse, error) {
	args := m.Called(filter)
	return args.Get(0).(*models.ComplaintListResponse), args.Error(1)
}

func (m *mockComplaints) Preview(description string) models.AssessmentPreview {
	return models.AssessmentPreview{
		Risk:     services.NewRiskScorer().Score(description),
		Priority: services.AssessPriority(description),
	}
}

type mockRelay struct {
	mock.Mock
}

func (m *mockRelay) Converse(ctx context.Context, sess models.Session, persona models.Persona, message string) (models.ChatResponse, error) {
	args := m.Called(persona, message)
	return args.Get(0).(models.ChatResponse), args.Error(1)
}

func (m *mockRelay) Translate(ctx context.Context, sess models.Session, text string) (string, error) {
	args := m.Called(text)
	return args.String(0), args.Error(1)
}

type mockJobs struct {
	mock.Mock
}

func (m *mockJobs) RunNow(ctx context.Context, name string) (int64, error) {
	args := m.Called(name)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockJobs) Status() []jobs.Status {
	return []jobs.Status{{Name: jobs.StaleSweep, Schedule: "@daily"}}
}

type stubHotspots struct {
	query models.HotspotQuery
	err   error
}

func (s *stubHotspots) Map(ctx context.Context, q models.HotspotQuery) (*models.HotspotMap, error) {
	s.query = q
	if s.err != nil {
		return nil, s.err
	}
	return &models.HotspotMap{Center: models.Coordinates{Latitude: q.Latitude, Longitude: q.Longitude}, RadiusKm: 5}, nil
}

func submissionLimits() config.SubmissionConfig {
	return config.SubmissionConfig{MaxFiles: 10, MaxFileSize: 50 << 20, MaxMemory: 1 << 20}
}

func withSession(r *http.Request) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), middleware.ContextKeySession, testSession))
}

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func multipartReport(t *testing.T, fields map[string]string, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for name, content := range files {
		fw, err := mw.CreateFormFile("evidence", name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return body, mw.FormDataContentType()
}

func TestComplaintsHandler_Report(t *testing.T) {
	svc := &mockComplaints{}
	svc.On("Submit", "anon-42").Return(&models.SubmissionResult{
		Success: true,
		CaseID:  "CASE-12345",
		Message: "Saved",
		Risk:    models.RiskAssessment{RiskScore: 0.85, RiskLabel: models.RiskLabelCredible, RiskReason: "Detailed description provided"},
	}, nil)
	h := NewComplaintsHandler(svc, submissionLimits(), logger.NewNop())

	body, contentType := multipartReport(t, map[string]string{
		"category":        "Other",
		"custom_category": "Wage theft",
		"description":     "Supervisor kept our overtime pay for three months",
		"location":        "28.6139, 77.2090",
		"anonymous":       "true",
		"risk_score":      "0.1",
		"risk_label":      "Suspicious",
	}, map[string]string{"photo.jpg": "jpeg-bytes"})

	req := withSession(httptest.NewRequest(http.MethodPost, "/api/report", body))
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.Report(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	result := decodeBody[models.SubmissionResult](t, rec)
	assert.True(t, result.Success)
	assert.Equal(t, "CASE-12345", result.CaseID)

	sub := svc.submitted
	require.NotNil(t, sub)
	assert.Equal(t, models.CategoryOther, sub.Category)
	assert.Equal(t, "Wage theft", sub.CustomCategory)
	assert.True(t, sub.Anonymous)
	require.NotNil(t, sub.ClientRisk)
	assert.Equal(t, models.RiskLabelSuspicious, sub.ClientRisk.RiskLabel)
	assert.InDelta(t, 0.1, sub.ClientRisk.RiskScore, 1e-9)
	assert.Equal(t, []string{"photo.jpg=jpeg-bytes"}, svc.evidence)
}

func TestComplaintsHandler_ReportErrors(t *testing.T) {
	verr := &services.ValidationError{}
	verr.Add("description", "description is required")

	tests := []struct {
		name   string
		err    error
		status int
		body   string
	}{
		{"validation", verr, http.StatusBadRequest, `"field":"description"`},
		{"storage", fmt.Errorf("%w: complaint", services.ErrStorage), http.StatusInternalServerError, `"error":"Upload failed"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockComplaints{}
			svc.On("Submit", "").Return(nil, tt.err)
			h := NewComplaintsHandler(svc, submissionLimits(), logger.NewNop())

			body, contentType := multipartReport(t, map[string]string{"category": "Harassment"}, nil)
			req := httptest.NewRequest(http.MethodPost, "/api/report", body)
			req.Header.Set("Content-Type", contentType)
			rec := httptest.NewRecorder()

			h.Report(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.body)
			assert.NotContains(t, rec.Body.String(), "complaint")
		})
	}
}

func TestComplaintsHandler_ReportTooLarge(t *testing.T) {
	svc := &mockComplaints{}
	limits := config.SubmissionConfig{MaxFiles: 1, MaxFileSize: 16, MaxMemory: 1 << 10}
	h := NewComplaintsHandler(svc, limits, logger.NewNop())

	body, contentType := multipartReport(t, map[string]string{"category": "Harassment"},
		map[string]string{"big.bin": strings.Repeat("x", 2<<20)})
	req := httptest.NewRequest(http.MethodPost, "/api/report", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.Report(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	svc.AssertNotCalled(t, "Submit", mock.Anything)
}

func TestComplaintsHandler_Lookup(t *testing.T) {
	svc := &mockComplaints{}
	svc.On("Get", "CASE-11111").Return(&models.Complaint{CaseID: "CASE-11111", Category: models.CategoryHarassment}, nil)
	svc.On("Get", "CASE-00000").Return(nil, services.ErrNotFound)
	svc.On("List", models.ComplaintFilter{Status: models.ComplaintStatusNew, Limit: 5, Offset: 10}).
		Return(&models.ComplaintListResponse{Complaints: []models.Complaint{}, Total: 0, Limit: 5, Offset: 10}, nil)
	h := NewComplaintsHandler(svc, submissionLimits(), logger.NewNop())

	rec := httptest.NewRecorder()
	h.Get(rec, withURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "caseId", "CASE-11111"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "CASE-11111", decodeBody[models.Complaint](t, rec).CaseID)

	rec = httptest.NewRecorder()
	h.Get(rec, withURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "caseId", "CASE-00000"))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/v1/complaints?status=new&limit=5&offset=10", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	svc.AssertExpectations(t)
}

func TestComplaintsHandler_Assist(t *testing.T) {
	h := NewComplaintsHandler(&mockComplaints{}, submissionLimits(), logger.NewNop())

	rec := httptest.NewRecorder()
	h.Assess(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"description":"My manager threatened violence"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	preview := decodeBody[models.AssessmentPreview](t, rec)
	assert.Equal(t, models.PriorityHigh, preview.Priority)

	rec = httptest.NewRecorder()
	h.Template(rec, withURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "category", "Salary%20Delay"))
	require.Equal(t, http.StatusOK, rec.Code)
	tmpl := decodeBody[map[string]string](t, rec)
	assert.Equal(t, "Salary Delay", tmpl["category"])
	assert.Equal(t, services.DraftTemplate(models.CategorySalaryDelay), tmpl["template"])

	rec = httptest.NewRecorder()
	h.Summary(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"category":"Harassment","description":"Repeated comments"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, services.Summarize(models.CategoryHarassment, "Repeated comments"), decodeBody[map[string]string](t, rec)["summary"])

	rec = httptest.NewRecorder()
	h.Summary(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"category":"Harassment"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.Categories(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Contains(t, rec.Body.String(), "Child Labour")
	assert.Contains(t, rec.Body.String(), `"voice":"Voice Complaint"`)
}

func TestChatHandler_LegacyRoutes(t *testing.T) {
	relay := &mockRelay{}
	relay.On("Converse", models.PersonaLegal, "Can I claim unpaid wages?").
		Return(models.ChatResponse{Reply: "Yes. This is not legal advice.", TranslatedReply: "हाँ"}, nil)
	relay.On("Converse", models.PersonaVolunteer, "help").Return(models.ChatResponse{Reply: "No response"}, nil)
	relay.On("Translate", "Hello").Return("नमस्ते", nil)
	h := NewChatHandler(relay, logger.NewNop())

	tests := []struct {
		name    string
		handler http.HandlerFunc
		body    string
		status  int
		want    string
	}{
		{"legal", h.Legal, `{"message":"Can I claim unpaid wages?"}`, http.StatusOK, `"reply":"Yes. This is not legal advice."`},
		{"volunteer fallback", h.Volunteer, `{"message":"help"}`, http.StatusOK, `"reply":"No response"`},
		{"missing message", h.Legal, `{}`, http.StatusBadRequest, `{"error":"Message required"}`},
		{"bad json", h.Volunteer, `{`, http.StatusBadRequest, `{"error":"Message required"}`},
		{"translate", h.Translate, `{"text":"Hello"}`, http.StatusOK, `"translatedText":"नमस्ते"`},
		{"missing text", h.Translate, `{"text":""}`, http.StatusBadRequest, `{"error":"Text required"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := withSession(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body)))
			rec := httptest.NewRecorder()
			tt.handler(rec, req)
			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.want)
		})
	}
}

func TestChatHandler_Persona(t *testing.T) {
	relay := &mockRelay{}
	relay.On("Converse", models.PersonaVolunteer, "hi").Return(models.ChatResponse{Reply: "hello"}, nil)
	relay.On("Translate", "thanks").Return("धन्यवाद", nil)
	h := NewChatHandler(relay, logger.NewNop())

	call := func(persona, body string) *httptest.ResponseRecorder {
		req := withURLParam(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)), "persona", persona)
		rec := httptest.NewRecorder()
		h.Persona(rec, req)
		return rec
	}

	rec := call("volunteer", `{"message":"hi"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hello", decodeBody[models.ChatResponse](t, rec).Reply)

	rec = call("translator", `{"message":"thanks"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "धन्यवाद", decodeBody[models.TranslateResponse](t, rec).TranslatedText)

	rec = call("lawyer", `{"message":"hi"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSalaryHandler(t *testing.T) {
	tracker := services.NewSalaryTracker("Worker", func() time.Time {
		return time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	})
	h := NewSalaryHandler(tracker, logger.NewNop())

	rec := httptest.NewRecorder()
	h.Summary(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(
		`{"employer":"Acme","records":[{"month":"Jan","expected":10000,"received":8000}]}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decodeBody[models.SalarySummary](t, rec)
	assert.Equal(t, 80, summary.ReliabilityScore)
	assert.Equal(t, models.ReliabilityModerateRisk, summary.ReliabilityLevel)

	rec = httptest.NewRecorder()
	h.Reminder(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(
		`{"records":[{"month":"Jan","expected":10000,"received":8000}]}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"field":"employer"`)

	rec = httptest.NewRecorder()
	h.Reminder(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(
		`{"employer":"Acme","records":[{"month":"Jan","expected":10000,"received":8000}]}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decodeBody[models.SalaryReminder](t, rec).Body, "Dear Acme")
}

func TestSOSHandler(t *testing.T) {
	contacts := []models.EmergencyContact{{Name: "Police", Number: "100"}}
	svc := services.NewSOSService(contacts, "Beacon", time.UTC, nil, logger.NewNop())
	h := NewSOSHandler(svc, logger.NewNop())

	rec := httptest.NewRecorder()
	h.Trigger(rec, withSession(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"lat":28.6139,"lng":77.209}`))))
	require.Equal(t, http.StatusCreated, rec.Code)
	alert := decodeBody[models.SOSAlert](t, rec)
	assert.Equal(t, "https://maps.google.com/?q=28.6139,77.209", alert.MapsLink)
	require.Len(t, alert.Contacts, 1)
	assert.Equal(t, "tel:100", alert.Contacts[0].TelLink)

	rec = httptest.NewRecorder()
	h.Trigger(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"lat":128,"lng":77}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.Contacts(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Contains(t, rec.Body.String(), `"name":"Police"`)
}

func TestHotspotsHandler(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		err    error
		status int
	}{
		{"coordinates", "?lat=28.6&lng=77.2&radius_km=3&group=salary", nil, http.StatusOK},
		{"city", "?city=Delhi", nil, http.StatusOK},
		{"bad lat", "?lat=north&lng=77.2", nil, http.StatusBadRequest},
		{"nan radius", "?lat=28.6&lng=77.2&radius_km=NaN", nil, http.StatusBadRequest},
		{"infinite radius", "?lat=28.6&lng=77.2&radius_km=Inf", nil, http.StatusBadRequest},
		{"unknown city", "?city=Atlantis", services.ErrNotFound, http.StatusNotFound},
		{"geocoder down", "?city=Delhi", fmt.Errorf("%w: geocode", services.ErrUpstream), http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubHotspots{err: tt.err}
			h := NewHotspotsHandler(svc, logger.NewNop())
			rec := httptest.NewRecorder()
			h.Map(rec, httptest.NewRequest(http.MethodGet, "/api/v1/hotspots"+tt.query, nil))
			assert.Equal(t, tt.status, rec.Code)
		})
	}

	svc := &stubHotspots{}
	rec := httptest.NewRecorder()
	NewHotspotsHandler(svc, logger.NewNop()).Map(rec, httptest.NewRequest(http.MethodGet, "/?lat=28.6&lng=77.2&radius_km=3&group=salary", nil))
	assert.Equal(t, models.HotspotQuery{Latitude: 28.6, Longitude: 77.2, RadiusKm: 3, Group: models.GroupSalary}, svc.query)
}

func TestHotspotsHandler_WithoutService(t *testing.T) {
	h := NewHandlers(Dependencies{Logger: logger.NewNop()})
	rec := httptest.NewRecorder()
	h.Hotspots.Map(rec, httptest.NewRequest(http.MethodGet, "/api/v1/hotspots?lat=28.6&lng=77.2", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"error":"hotspots not available"}`, rec.Body.String())
}

func TestSessionHandler(t *testing.T) {
	sessions := services.NewSessionService("test-secret", "beacon", time.Hour, nil, logger.NewNop())
	h := NewSessionHandler(sessions, logger.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Accept-Language", "hi-IN,hi;q=0.9")
	rec := httptest.NewRecorder()
	h.Create(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)
	token := decodeBody[models.SessionToken](t, rec)
	assert.Equal(t, "hi", token.Language)
	assert.NotEmpty(t, token.AnonID)

	rec = httptest.NewRecorder()
	h.SetLanguage(rec, withSession(httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"language":"en"}`))))
	require.Equal(t, http.StatusOK, rec.Code)
	updated := decodeBody[models.SessionToken](t, rec)
	assert.Equal(t, "en", updated.Language)
	assert.Equal(t, "anon-42", updated.AnonID)

	rec = httptest.NewRecorder()
	h.SetLanguage(rec, withSession(httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"language":"fr"}`))))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminHandler(t *testing.T) {
	runner := &mockJobs{}
	runner.On("RunNow", jobs.StaleSweep).Return(int64(4), nil)
	runner.On("RunNow", "nope").Return(int64(0), jobs.ErrUnknownJob)
	runner.On("RunNow", jobs.HotspotRebuild).Return(int64(0), jobs.ErrJobRunning)
	h := NewAdminHandler(runner, logger.NewNop())

	for job, status := range map[string]int{
		jobs.StaleSweep:     http.StatusOK,
		"nope":              http.StatusNotFound,
		jobs.HotspotRebuild: http.StatusConflict,
	} {
		rec := httptest.NewRecorder()
		h.TriggerJob(rec, withURLParam(httptest.NewRequest(http.MethodPost, "/", nil), "job", job))
		assert.Equal(t, status, rec.Code, job)
	}

	rec := httptest.NewRecorder()
	h.ListJobs(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Contains(t, rec.Body.String(), jobs.StaleSweep)

	rec = httptest.NewRecorder()
	NewAdminHandler(nil, logger.NewNop()).TriggerJob(rec, withURLParam(httptest.NewRequest(http.MethodPost, "/", nil), "job", jobs.StaleSweep))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealthHandler_Ready(t *testing.T) {
	h := NewHealthHandler("1.0.0", map[string]Checker{
		"database": func(ctx context.Context) error { return nil },
		"redis":    func(ctx context.Context) error { return errors.New("connection refused") },
		"nats":     nil,
	}, logger.NewNop())

	rec := httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	resp := decodeBody[HealthResponse](t, rec)
	assert.Equal(t, "not ready", resp.Status)
	assert.Equal(t, map[string]string{"database": "healthy", "redis": "unhealthy", "nats": "not configured"}, resp.Checks)

	rec = httptest.NewRecorder()
	h.Check(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
