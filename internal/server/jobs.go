package server

import (
	"net/http"
	"strings"

	"github.com/aryaregmi0/Kamchaiyo-final-assignment-sub000/internal/auth"
	"github.com/aryaregmi0/Kamchaiyo-final-assignment-sub000/internal/service"

	"github.com/gin-gonic/gin"
)

func (h *Handler) CreateCompany(c *gin.Context) {
	var req service.CompanyInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	company, err := h.companies.Create(c.Request.Context(), auth.GetUserID(c), req)
	if err != nil {
		fail(c, err, "create company")
		return
	}
	c.JSON(http.StatusOK, company)
}

func (h *Handler) ListCompanies(c *gin.Context) {
	companies, err := h.companies.List(c.Request.Context(), 100)
	if err != nil {
		fail(c, err, "list companies")
		return
	}
	c.JSON(http.StatusOK, gin.H{"companies": companies})
}

func (h *Handler) GetCompany(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	company, err := h.companies.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, err, "get company")
		return
	}
	c.JSON(http.StatusOK, company)
}

func (h *Handler) UpdateCompany(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req service.CompanyInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	company, err := h.companies.Update(c.Request.Context(), auth.GetUserID(c), id, req)
	if err != nil {
		fail(c, err, "update company")
		return
	}
	c.JSON(http.StatusOK, company)
}

func (h *Handler) DeleteCompany(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.companies.Delete(c.Request.Context(), auth.GetUserID(c), id); err != nil {
		fail(c, err, "delete company")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) CreateJob(c *gin.Context) {
	var req service.JobInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c)
		return
	}
	job, err := h.jobs.Create(c.Request.Context(), auth.GetUserID(c), req)
	if err != nil {
		fail(c, err, "create job")
		return
	}
	c.JSON(http.StatusOK, job)
}

// ListJobs 支持 ?q= 关键字与 ?company_id= 过滤。
func (h *Handler) ListJobs(c *gin.Context) {
	jobs, err := h.jobs.List(c.Request.Context(), service.JobFilter{
		Query:     c.Query("q"),
		CompanyID: queryUint(c, "company_id"),
	})
	if err != nil {
		fail(c, err, "list jobs")
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

func (h *Handler) GetJob(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	job, err := h.jobs.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, err, "get job")
		return
	}
	c.JSON(http.StatusOK, job)
}

func (h *Handler) UpdateJob(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req service.JobInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c)
		return
	}
	job, err := h.jobs.Update(c.Request.Context(), auth.GetUserID(c), id, req)
	if err != nil {
		fail(c, err, "update job")
		return
	}
	c.JSON(http.StatusOK, job)
}

func (h *Handler) DeleteJob(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.jobs.Delete(c.Request.Context(), auth.GetUserID(c), id); err != nil {
		fail(c, err, "delete job")
		return
	}
	c.Status(http.StatusNoContent)
}

// Apply 投递职位，写库成功后通知发布者。
func (h *Handler) Apply(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	app, err := h.apps.Apply(c.Request.Context(), auth.GetUserID(c), id)
	if err != nil {
		fail(c, err, "apply")
		return
	}
	c.JSON(http.StatusOK, app)
}

func (h *Handler) ListJobApplications(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	apps, err := h.apps.ListForJob(c.Request.Context(), auth.GetUserID(c), id)
	if err != nil {
		fail(c, err, "list applications")
		return
	}
	c.JSON(http.StatusOK, gin.H{"applications": apps})
}

func (h *Handler) ListMyApplications(c *gin.Context) {
	apps, err := h.apps.ListMine(c.Request.Context(), auth.GetUserID(c))
	if err != nil {
		fail(c, err, "list applications")
		return
	}
	c.JSON(http.StatusOK, gin.H{"applications": apps})
}

func (h *Handler) UpdateApplicationStatus(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c)
		return
	}
	app, err := h.apps.UpdateStatus(c.Request.Context(), auth.GetUserID(c), id, strings.ToLower(strings.TrimSpace(req.Status)))
	if err != nil {
		fail(c, err, "update application status")
		return
	}
	c.JSON(http.StatusOK, app)
}

func (h *Handler) ScheduleInterview(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req service.InterviewInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c)
		return
	}
	iv, err := h.interviews.Schedule(c.Request.Context(), auth.GetUserID(c), id, req)
	if err != nil {
		fail(c, err, "schedule interview")
		return
	}
	c.JSON(http.StatusOK, iv)
}

func (h *Handler) ListInterviews(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	ivs, err := h.interviews.List(c.Request.Context(), auth.GetUserID(c), id)
	if err != nil {
		fail(c, err, "list interviews")
		return
	}
	c.JSON(http.StatusOK, gin.H{"interviews": ivs})
}
