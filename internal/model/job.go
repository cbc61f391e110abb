package model

import "time"

// JobStatus is the lifecycle state of a background job.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobPaused     JobStatus = "paused"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
	JobCancelled  JobStatus = "cancelled"
)

// JobType names the business step a worker performs. Each type depends on
// exactly one third-party service.
type JobType string

const (
	JobFetchLeads   JobType = "fetch_leads"
	JobVerifyEmail  JobType = "verify_email"
	JobEnrich       JobType = "enrich"
	JobGenerateCopy JobType = "generate_email_copy"
	JobUploadLeads  JobType = "upload_leads"
)

// ServiceForJobType maps a job type to the third-party service it depends
// on. Dispatch logic uses this to honor pause flags.
func ServiceForJobType(t JobType) (ThirdPartyService, bool) {
	switch t {
	case JobFetchLeads:
		return ServiceApollo, true
	case JobVerifyEmail:
		return ServiceMillionVerifier, true
	case JobEnrich:
		return ServicePerplexity, true
	case JobGenerateCopy:
		return ServiceOpenAI, true
	case JobUploadLeads:
		return ServiceInstantly, true
	default:
		return "", false
	}
}

// Job is one unit of background work tied to a campaign.
type Job struct {
	ID          int64             `gorm:"primaryKey;column:id" json:"id"`
	TaskID      string            `gorm:"column:task_id;uniqueIndex" json:"task_id"`
	Name        string            `gorm:"column:name;not null" json:"name"`
	Description string            `gorm:"column:description;type:text" json:"description,omitempty"`
	JobType     JobType           `gorm:"column:job_type;type:varchar(50);not null" json:"job_type"`
	Service     ThirdPartyService `gorm:"column:service;type:varchar(50);not null;index" json:"service"`
	CampaignID  string            `gorm:"column:campaign_id;index" json:"campaign_id"`
	Status      JobStatus         `gorm:"column:status;type:varchar(20);not null;index" json:"status"`
	Result      string            `gorm:"column:result;type:text" json:"result,omitempty"`
	Error       string            `gorm:"column:error;type:text" json:"error,omitempty"`
	CreatedAt   time.Time         `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time         `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
	CompletedAt *time.Time        `gorm:"column:completed_at" json:"completed_at,omitempty"`
}

// TableName specifies the table name for GORM.
func (Job) TableName() string {
	return "jobs"
}

// CampaignStatus is the lifecycle state of a campaign.
type CampaignStatus string

const (
	CampaignCreated   CampaignStatus = "created"
	CampaignRunning   CampaignStatus = "running"
	CampaignPaused    CampaignStatus = "paused"
	CampaignCompleted CampaignStatus = "completed"
	CampaignFailed    CampaignStatus = "failed"
)

// Campaign is the business workflow a set of jobs belongs to.
type Campaign struct {
	ID             string         `gorm:"primaryKey;column:id" json:"id"`
	Name           string         `gorm:"column:name;not null" json:"name"`
	Description    string         `gorm:"column:description;type:text" json:"description,omitempty"`
	OrganizationID string         `gorm:"column:organization_id;index" json:"organization_id"`
	FileName       string         `gorm:"column:file_name" json:"file_name,omitempty"`
	TotalRecords   int32          `gorm:"column:total_records" json:"total_records"`
	URL            string         `gorm:"column:url" json:"url,omitempty"`
	Status         CampaignStatus `gorm:"column:status;type:varchar(20);not null;index" json:"status"`
	StatusMessage  string         `gorm:"column:status_message;type:text" json:"status_message,omitempty"`
	CreatedAt      time.Time      `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (Campaign) TableName() string {
	return "campaigns"
}
