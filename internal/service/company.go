package service

import (
	"context"
	"errors"
	"time"

	"github.com/aryaregmi0/Kamchaiyo-final-assignment-sub000/internal/models"

	"gorm.io/gorm"
)

// CompanyService 封装公司资料的增删改查，只有创建者可以修改。
type CompanyService struct {
	db *gorm.DB
}

func NewCompanyService(db *gorm.DB) *CompanyService {
	return &CompanyService{db: db}
}

type CompanyInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Website     string `json:"website"`
	Location    string `json:"location"`
}

type CompanyDTO struct {
	ID          uint      `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Website     string    `json:"website"`
	Location    string    `json:"location"`
	OwnerID     uint      `json:"owner_id"`
	CreatedAt   time.Time `json:"created_at"`
}

func toCompanyDTO(c models.Company) CompanyDTO {
	return CompanyDTO{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		Website:     c.Website,
		Location:    c.Location,
		OwnerID:     c.OwnerID,
		CreatedAt:   c.CreatedAt,
	}
}

func (s *CompanyService) Create(ctx context.Context, ownerID uint, in CompanyInput) (*CompanyDTO, error) {
	if in.Name == "" {
		return nil, ErrInvalidInput
	}
	db := s.db.WithContext(ctx)
	if err := s.ensureNameFree(db, in.Name, 0); err != nil {
		return nil, err
	}
	company := models.Company{Name: in.Name, Description: in.Description, Website: in.Website, Location: in.Location, OwnerID: ownerID}
	if err := db.Create(&company).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrCompanyNameTaken
		}
		return nil, err
	}
	dto := toCompanyDTO(company)
	return &dto, nil
}

func (s *CompanyService) List(ctx context.Context, limit int) ([]CompanyDTO, error) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}
	var companies []models.Company
	if err := s.db.WithContext(ctx).Order("id desc").Limit(limit).Find(&companies).Error; err != nil {
		return nil, err
	}
	out := make([]CompanyDTO, 0, len(companies))
	for _, c := range companies {
		out = append(out, toCompanyDTO(c))
	}
	return out, nil
}

func (s *CompanyService) Get(ctx context.Context, id uint) (*CompanyDTO, error) {
	company, err := s.find(s.db.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	dto := toCompanyDTO(*company)
	return &dto, nil
}

// Update 覆盖非空字段。
func (s *CompanyService) Update(ctx context.Context, ownerID, id uint, in CompanyInput) (*CompanyDTO, error) {
	db := s.db.WithContext(ctx)
	company, err := s.find(db, id)
	if err != nil {
		return nil, err
	}
	if company.OwnerID != ownerID {
		return nil, ErrForbidden
	}
	if in.Name != "" && in.Name != company.Name {
		if err := s.ensureNameFree(db, in.Name, company.ID); err != nil {
			return nil, err
		}
		company.Name = in.Name
	}
	if in.Description != "" {
		company.Description = in.Description
	}
	if in.Website != "" {
		company.Website = in.Website
	}
	if in.Location != "" {
		company.Location = in.Location
	}
	if err := db.Save(company).Error; err != nil {
		return nil, err
	}
	dto := toCompanyDTO(*company)
	return &dto, nil
}

// Delete 软删除公司及其职位。
func (s *CompanyService) Delete(ctx context.Context, ownerID, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		company, err := s.find(tx, id)
		if err != nil {
			return err
		}
		if company.OwnerID != ownerID {
			return ErrForbidden
		}
		if err := tx.Where("company_id = ?", company.ID).Delete(&models.Job{}).Error; err != nil {
			return err
		}
		return tx.Delete(company).Error
	})
}

func (s *CompanyService) find(db *gorm.DB, id uint) (*models.Company, error) {
	var company models.Company
	if err := db.First(&company, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCompanyNotFound
		}
		return nil, err
	}
	return &company, nil
}

func (s *CompanyService) ensureNameFree(db *gorm.DB, name string, exceptID uint) error {
	var count int64
	if err := db.Unscoped().Model(&models.Company{}).Where("name = ? AND id <> ?", name, exceptID).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrCompanyNameTaken
	}
	return nil
}
