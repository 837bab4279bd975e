package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"beacon/internal/domain/models"
)

type MockComplaintRepository struct {
	mock.Mock
}

func (m *MockComplaintRepository) Create(ctx context.Context, c *models.Complaint) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *MockComplaintRepository) GetByCaseID(ctx context.Context, caseID string) (*models.Complaint, error) {
	args := m.Called(ctx, caseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Complaint), args.Error(1)
}

func (m *MockComplaintRepository) List(ctx context.Context, filter models.ComplaintFilter) ([]models.Complaint, int64, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]models.Complaint), args.Get(1).(int64), args.Error(2)
}

func (m *MockComplaintRepository) ListLocated(ctx context.Context, since time.Time) ([]models.Complaint, error) {
	args := m.Called(ctx, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Complaint), args.Error(1)
}

func (m *MockComplaintRepository) MarkStale(ctx context.Context, olderThan time.Time) (int64, error) {
	args := m.Called(ctx, olderThan)
	return args.Get(0).(int64), args.Error(1)
}

type MockEvidenceStore struct {
	mock.Mock
}

func (m *MockEvidenceStore) Save(ctx context.Context, complaintID uuid.UUID, upload models.EvidenceUpload) (models.EvidenceFile, error) {
	args := m.Called(ctx, complaintID, upload)
	return args.Get(0).(models.EvidenceFile), args.Error(1)
}

func (m *MockEvidenceStore) Remove(ctx context.Context, complaintID uuid.UUID, file models.EvidenceFile) error {
	args := m.Called(ctx, complaintID, file)
	return args.Error(0)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishComplaint(ctx context.Context, c *models.Complaint) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *MockPublisher) PublishSOS(ctx context.Context, alert *models.SOSAlert) error {
	args := m.Called(ctx, alert)
	return args.Error(0)
}

type MockIndexer struct {
	mock.Mock
}

func (m *MockIndexer) IndexComplaint(ctx context.Context, c *models.Complaint) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}
