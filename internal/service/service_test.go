package service

import (
	"context"
	"testing"

	"github.com/aryaregmi0/Kamchaiyo-final-assignment-sub000/internal/config"
	"github.com/aryaregmi0/Kamchaiyo-final-assignment-sub000/internal/dbtest"
	"github.com/aryaregmi0/Kamchaiyo-final-assignment-sub000/internal/models"
	"github.com/aryaregmi0/Kamchaiyo-final-assignment-sub000/internal/notify"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var testCfg = config.Config{
	JWTSecret:             "test-secret",
	AccessTokenTTLMinutes: 15,
	RefreshTokenTTLDays:   7,
}

// fixture 是一个招聘者、一个公司、一个职位和一个求职者。
type fixture struct {
	db        *gorm.DB
	rec       *notify.Recorder
	recruiter UserDTO
	applicant UserDTO
	company   CompanyDTO
	job       JobDTO
}

func register(t *testing.T, db *gorm.DB, username, name, role string) UserDTO {
	t.Helper()
	u, err := NewUserService(db, testCfg).Register(context.Background(), RegisterInput{
		Username: username, Password: "password123", Name: name, Role: role,
	})
	require.NoError(t, err)
	return *u
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{db: dbtest.Open(t), rec: &notify.Recorder{}}
	f.recruiter = register(t, f.db, "grace", "Grace", models.RoleRecruiter)
	f.applicant = register(t, f.db, "ada", "Ada", models.RoleApplicant)

	company, err := NewCompanyService(f.db).Create(ctx, f.recruiter.ID, CompanyInput{Name: "Acme"})
	require.NoError(t, err)
	f.company = *company

	job, err := NewJobService(f.db).Create(ctx, f.recruiter.ID, JobInput{CompanyID: company.ID, Title: "Go Engineer"})
	require.NoError(t, err)
	f.job = *job
	return f
}
