package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/aryaregmi0/Kamchaiyo-final-assignment-sub000/internal/models"

	"gorm.io/gorm"
)

// JobService 封装职位发布与检索。
type JobService struct {
	db *gorm.DB
}

func NewJobService(db *gorm.DB) *JobService {
	return &JobService{db: db}
}

type JobInput struct {
	CompanyID   uint   `json:"company_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Location    string `json:"location"`
	Salary      string `json:"salary"`
}

type JobDTO struct {
	ID          uint      `json:"id"`
	CompanyID   uint      `json:"company_id"`
	CompanyName string    `json:"company_name"`
	PostedByID  uint      `json:"posted_by_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	Salary      string    `json:"salary"`
	CreatedAt   time.Time `json:"created_at"`
}

func toJobDTO(j models.Job) JobDTO {
	return JobDTO{
		ID:          j.ID,
		CompanyID:   j.CompanyID,
		CompanyName: j.Company.Name,
		PostedByID:  j.PostedByID,
		Title:       j.Title,
		Description: j.Description,
		Location:    j.Location,
		Salary:      j.Salary,
		CreatedAt:   j.CreatedAt,
	}
}

// JobFilter 是列表查询条件，零值表示不过滤。
type JobFilter struct {
	Query     string
	CompanyID uint
	Limit     int
}

// Create 在招聘者自己的公司下发布职位。
func (s *JobService) Create(ctx context.Context, posterID uint, in JobInput) (*JobDTO, error) {
	if strings.TrimSpace(in.Title) == "" || in.CompanyID == 0 {
		return nil, ErrInvalidInput
	}
	db := s.db.WithContext(ctx)
	var company models.Company
	if err := db.First(&company, in.CompanyID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCompanyNotFound
		}
		return nil, err
	}
	if company.OwnerID != posterID {
		return nil, ErrForbidden
	}
	job := models.Job{
		CompanyID:   company.ID,
		PostedByID:  posterID,
		Title:       in.Title,
		Description: in.Description,
		Location:    in.Location,
		Salary:      in.Salary,
	}
	if err := db.Omit("Company").Create(&job).Error; err != nil {
		return nil, err
	}
	job.Company = company
	dto := toJobDTO(job)
	return &dto, nil
}

// List 按标题或描述模糊匹配，最新的在前。
func (s *JobService) List(ctx context.Context, f JobFilter) ([]JobDTO, error) {
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 100
	}
	q := s.db.WithContext(ctx).Preload("Company")
	if f.CompanyID > 0 {
		q = q.Where("company_id = ?", f.CompanyID)
	}
	if term := strings.TrimSpace(f.Query); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		q = q.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", like, like)
	}
	var jobs []models.Job
	if err := q.Order("id desc").Limit(f.Limit).Find(&jobs).Error; err != nil {
		return nil, err
	}
	out := make([]JobDTO, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, toJobDTO(j))
	}
	return out, nil
}

func (s *JobService) Get(ctx context.Context, id uint) (*JobDTO, error) {
	job, err := findJob(s.db.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	dto := toJobDTO(*job)
	return &dto, nil
}

// Update 覆盖非空字段，公司不可更换。
func (s *JobService) Update(ctx context.Context, posterID, id uint, in JobInput) (*JobDTO, error) {
	db := s.db.WithContext(ctx)
	job, err := findJob(db, id)
	if err != nil {
		return nil, err
	}
	if job.PostedByID != posterID {
		return nil, ErrForbidden
	}
	if in.Title != "" {
		job.Title = in.Title
	}
	if in.Description != "" {
		job.Description = in.Description
	}
	if in.Location != "" {
		job.Location = in.Location
	}
	if in.Salary != "" {
		job.Salary = in.Salary
	}
	if err := db.Omit("Company").Save(job).Error; err != nil {
		return nil, err
	}
	dto := toJobDTO(*job)
	return &dto, nil
}

func (s *JobService) Delete(ctx context.Context, posterID, id uint) error {
	db := s.db.WithContext(ctx)
	job, err := findJob(db, id)
	if err != nil {
		return err
	}
	if job.PostedByID != posterID {
		return ErrForbidden
	}
	return db.Delete(&models.Job{}, job.ID).Error
}

func findJob(db *gorm.DB, id uint) (*models.Job, error) {
	var job models.Job
	if err := db.Preload("Company").First(&job, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	return &job, nil
}
