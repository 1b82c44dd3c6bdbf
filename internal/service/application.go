package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aryaregmi0/Kamchaiyo-final-assignment-sub000/internal/event"
	"github.com/aryaregmi0/Kamchaiyo-final-assignment-sub000/internal/models"
	"github.com/aryaregmi0/Kamchaiyo-final-assignment-sub000/internal/notify"

	"gorm.io/gorm"
)

// ApplicationService 处理投递与状态流转。写库成功后才通知对方，通知失败不影响结果。
type ApplicationService struct {
	db       *gorm.DB
	notifier notify.Notifier
}

func NewApplicationService(db *gorm.DB, notifier notify.Notifier) *ApplicationService {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &ApplicationService{db: db, notifier: notifier}
}

type ApplicationDTO struct {
	ID            uint      `json:"id"`
	JobID         uint      `json:"job_id"`
	JobTitle      string    `json:"job_title"`
	ApplicantID   uint      `json:"applicant_id"`
	ApplicantName string    `json:"applicant_name"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

func toApplicationDTO(a models.Application) ApplicationDTO {
	return ApplicationDTO{
		ID:            a.ID,
		JobID:         a.JobID,
		JobTitle:      a.Job.Title,
		ApplicantID:   a.ApplicantID,
		ApplicantName: a.Applicant.Name,
		Status:        a.Status,
		CreatedAt:     a.CreatedAt,
	}
}

func validStatus(s string) bool {
	switch s {
	case models.StatusPending, models.StatusReviewed, models.StatusAccepted, models.StatusRejected:
		return true
	}
	return false
}

// Apply 创建一条 pending 投递，并通知职位发布者。
func (s *ApplicationService) Apply(ctx context.Context, applicantID, jobID uint) (*ApplicationDTO, error) {
	db := s.db.WithContext(ctx)
	job, err := findJob(db, jobID)
	if err != nil {
		return nil, err
	}
	var applicant models.User
	if err := db.First(&applicant, applicantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	// 重复投递由 (job_id, applicant_id) 唯一索引拦截，并发请求也只有一个能成功。
	app := models.Application{JobID: job.ID, ApplicantID: applicant.ID, Status: models.StatusPending}
	if err := db.Omit("Job", "Applicant").Create(&app).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrAlreadyApplied
		}
		return nil, err
	}
	app.Job = *job
	app.Applicant = applicant

	s.notifier.Emit(notify.UserRoomID(job.PostedByID), event.NewApplicationEvent{
		Message: fmt.Sprintf("%s applied for %s", applicant.Name, job.Title),
		JobID:   strconv.FormatUint(uint64(job.ID), 10),
	})
	dto := toApplicationDTO(app)
	return &dto, nil
}

// UpdateStatus 由职位发布者修改状态，并通知投递人。
func (s *ApplicationService) UpdateStatus(ctx context.Context, posterID, appID uint, status string) (*ApplicationDTO, error) {
	if !validStatus(status) {
		return nil, ErrInvalidStatus
	}
	db := s.db.WithContext(ctx)
	app, err := s.find(db, appID)
	if err != nil {
		return nil, err
	}
	if app.Job.PostedByID != posterID {
		return nil, ErrForbidden
	}
	if err := db.Model(&models.Application{}).Where("id = ?", app.ID).Update("status", status).Error; err != nil {
		return nil, err
	}
	app.Status = status

	s.notifier.Emit(notify.UserRoomID(app.ApplicantID), event.ApplicationStatusUpdateEvent{
		Message:       fmt.Sprintf("Your application for %s is now %s", app.Job.Title, status),
		ApplicationID: strconv.FormatUint(uint64(app.ID), 10),
		Status:        status,
	})
	dto := toApplicationDTO(*app)
	return &dto, nil
}

// ListForJob 返回某职位收到的投递，仅发布者可见。
func (s *ApplicationService) ListForJob(ctx context.Context, posterID, jobID uint) ([]ApplicationDTO, error) {
	db := s.db.WithContext(ctx)
	job, err := findJob(db, jobID)
	if err != nil {
		return nil, err
	}
	if job.PostedByID != posterID {
		return nil, ErrForbidden
	}
	var apps []models.Application
	if err := db.Preload("Job").Preload("Applicant").
		Where("job_id = ?", jobID).Order("id").Find(&apps).Error; err != nil {
		return nil, err
	}
	return toApplicationDTOs(apps), nil
}

// ListMine 返回当前用户的全部投递，最新的在前。
func (s *ApplicationService) ListMine(ctx context.Context, applicantID uint) ([]ApplicationDTO, error) {
	var apps []models.Application
	if err := s.db.WithContext(ctx).Preload("Job").Preload("Applicant").
		Where("applicant_id = ?", applicantID).Order("id desc").Find(&apps).Error; err != nil {
		return nil, err
	}
	return toApplicationDTOs(apps), nil
}

func (s *ApplicationService) find(db *gorm.DB, id uint) (*models.Application, error) {
	var app models.Application
	if err := db.Preload("Job").Preload("Applicant").First(&app, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrApplicationNotFound
		}
		return nil, err
	}
	return &app, nil
}

func toApplicationDTOs(apps []models.Application) []ApplicationDTO {
	out := make([]ApplicationDTO, 0, len(apps))
	for _, a := range apps {
		out = append(out, toApplicationDTO(a))
	}
	return out
}
