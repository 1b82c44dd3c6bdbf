package service

import (
	"context"
	"fmt"
	"time"

	"github.com/aryaregmi0/Kamchaiyo-final-assignment-sub000/internal/event"
	"github.com/aryaregmi0/Kamchaiyo-final-assignment-sub000/internal/models"
	"github.com/aryaregmi0/Kamchaiyo-final-assignment-sub000/internal/notify"

	"gorm.io/gorm"
)

// InterviewService 为投递安排面试。
type InterviewService struct {
	db       *gorm.DB
	notifier notify.Notifier
	apps     *ApplicationService
}

func NewInterviewService(db *gorm.DB, notifier notify.Notifier) *InterviewService {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &InterviewService{db: db, notifier: notifier, apps: NewApplicationService(db, notifier)}
}

type InterviewInput struct {
	ScheduledAt time.Time `json:"scheduled_at"`
	Link        string    `json:"link"`
	Notes       string    `json:"notes"`
}

type InterviewDTO struct {
	ID            uint      `json:"id"`
	ApplicationID uint      `json:"application_id"`
	ScheduledAt   time.Time `json:"scheduled_at"`
	Link          string    `json:"link"`
	Notes         string    `json:"notes"`
}

func toInterviewDTO(i models.Interview) InterviewDTO {
	return InterviewDTO{
		ID:            i.ID,
		ApplicationID: i.ApplicationID,
		ScheduledAt:   i.ScheduledAt,
		Link:          i.Link,
		Notes:         i.Notes,
	}
}

// Schedule 只允许职位发布者操作，成功后通知投递人。
func (s *InterviewService) Schedule(ctx context.Context, posterID, appID uint, in InterviewInput) (*InterviewDTO, error) {
	if in.ScheduledAt.IsZero() {
		return nil, ErrInvalidInput
	}
	db := s.db.WithContext(ctx)
	app, err := s.apps.find(db, appID)
	if err != nil {
		return nil, err
	}
	if app.Job.PostedByID != posterID {
		return nil, ErrForbidden
	}
	iv := models.Interview{ApplicationID: app.ID, ScheduledAt: in.ScheduledAt.UTC(), Link: in.Link, Notes: in.Notes}
	if err := db.Create(&iv).Error; err != nil {
		return nil, err
	}

	s.notifier.Emit(notify.UserRoomID(app.ApplicantID), event.NotificationEvent{
		Message: fmt.Sprintf("Interview for %s scheduled at %s", app.Job.Title, iv.ScheduledAt.Format(time.RFC3339)),
	})
	dto := toInterviewDTO(iv)
	return &dto, nil
}

// List 返回某投递的面试安排，发布者与投递人均可查看。
func (s *InterviewService) List(ctx context.Context, userID, appID uint) ([]InterviewDTO, error) {
	db := s.db.WithContext(ctx)
	app, err := s.apps.find(db, appID)
	if err != nil {
		return nil, err
	}
	if app.Job.PostedByID != userID && app.ApplicantID != userID {
		return nil, ErrForbidden
	}
	var ivs []models.Interview
	if err := db.Where("application_id = ?", app.ID).Order("scheduled_at").Find(&ivs).Error; err != nil {
		return nil, err
	}
	out := make([]InterviewDTO, 0, len(ivs))
	for _, iv := range ivs {
		out = append(out, toInterviewDTO(iv))
	}
	return out, nil
}
