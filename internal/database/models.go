package database

import (
	"time"

	"gorm.io/datatypes"
)

// 用户类型。
const (
	UserTypeApplicant = "applicant"
	UserTypeCompany   = "company"
)

// 申请状态。
const (
	StatusPending   = "pending"
	StatusReviewing = "reviewing"
	StatusAccepted  = "accepted"
	StatusRejected  = "rejected"
)

// 通知类型。
const (
	NotificationApplication = "application"
	NotificationMessage     = "message"
	NotificationStatus      = "status"
	NotificationSystem      = "system"
	NotificationReview      = "review"
)

// Model 替代 gorm.Model：带 JSON 标签，不启用软删除（删除即物理删除）。
type Model struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// User 表示登录账号，只保存身份信息。
type User struct {
	Model
	Email              string   `gorm:"uniqueIndex;size:255" json:"email"`
	PasswordHash       string   `gorm:"size:255" json:"-"`
	MustChangePassword bool     `gorm:"default:false" json:"must_change_password"`
	Profile            *Profile `gorm:"constraint:OnDelete:CASCADE" json:"profile,omitempty"`
}

// Profile 表示用户资料，user_type 决定角色。
type Profile struct {
	Model
	UserID       uint                        `gorm:"uniqueIndex" json:"user_id"`
	FullName     string                      `gorm:"size:255" json:"full_name"`
	UserType     string                      `gorm:"size:16;index" json:"user_type"`
	Bio          string                      `gorm:"type:text" json:"bio"`
	AvatarURL    string                      `gorm:"size:512" json:"avatar_url"`
	Skills       datatypes.JSONSlice[string] `json:"skills"`
	ResumeURL    string                      `gorm:"size:512" json:"resume_url"`
	Phone        string                      `gorm:"size:64" json:"phone"`
	Location     string                      `gorm:"size:255" json:"location"`
	LinkedInURL  string                      `gorm:"size:512" json:"linkedin_url"`
	GitHubURL    string                      `gorm:"size:512" json:"github_url"`
	PortfolioURL string                      `gorm:"size:512" json:"portfolio_url"`
}

// Company 表示企业资料，与 company 类型的 Profile 一一对应。
type Company struct {
	Model
	UserID      uint   `gorm:"uniqueIndex" json:"user_id"`
	Name        string `gorm:"size:255;index" json:"name"`
	Description string `gorm:"type:text" json:"description"`
	Industry    string `gorm:"size:128" json:"industry"`
	Website     string `gorm:"size:512" json:"website"`
	LogoURL     string `gorm:"size:512" json:"logo_url"`
	Location    string `gorm:"size:255" json:"location"`
	FoundedYear int    `json:"founded_year"`
	CompanySize string `gorm:"size:64" json:"company_size"`
}

// Job 表示职位，只做软下线（is_active），不删除。
type Job struct {
	Model
	CompanyID           uint       `gorm:"index" json:"company_id"`
	Company             *Company   `gorm:"constraint:OnDelete:CASCADE" json:"company,omitempty"`
	Title               string     `gorm:"size:255" json:"title"`
	Description         string     `gorm:"type:text" json:"description"`
	Requirements        string     `gorm:"type:text" json:"requirements"`
	Location            string     `gorm:"size:255" json:"location"`
	SalaryRange         string     `gorm:"size:128" json:"salary_range"`
	JobType             string     `gorm:"size:64;index" json:"job_type"`
	Category            string     `gorm:"size:128" json:"category"`
	ExperienceLevel     string     `gorm:"size:64" json:"experience_level"`
	Benefits            string     `gorm:"type:text" json:"benefits"`
	RemoteOption        bool       `json:"remote_option"`
	ApplicationDeadline *time.Time `json:"application_deadline,omitempty"`
	IsActive            bool       `gorm:"index" json:"is_active"`
}

// Application 表示求职者对职位的投递。
type Application struct {
	Model
	JobID       uint     `gorm:"uniqueIndex:idx_application_job_applicant" json:"job_id"`
	Job         *Job     `gorm:"constraint:OnDelete:CASCADE" json:"job,omitempty"`
	ApplicantID uint     `gorm:"uniqueIndex:idx_application_job_applicant" json:"applicant_id"`
	Applicant   *Profile `gorm:"foreignKey:ApplicantID;references:UserID" json:"applicant,omitempty"`
	ResumeURL   string   `gorm:"size:512" json:"resume_url"`
	CoverLetter string   `gorm:"type:text" json:"cover_letter"`
	Status      string   `gorm:"size:16;index" json:"status"`
	Notes       string   `gorm:"type:text" json:"notes"`
}

// Bookmark 表示求职者收藏的职位。
type Bookmark struct {
	Model
	UserID uint `gorm:"uniqueIndex:idx_bookmark_user_job" json:"user_id"`
	JobID  uint `gorm:"uniqueIndex:idx_bookmark_user_job" json:"job_id"`
	Job    *Job `gorm:"constraint:OnDelete:CASCADE" json:"job,omitempty"`
}

// Notification 表示用户收到的站内通知。
type Notification struct {
	Model
	UserID    uint   `gorm:"index" json:"user_id"`
	Title     string `gorm:"size:255" json:"title"`
	Message   string `gorm:"type:text" json:"message"`
	Type      string `gorm:"size:32" json:"type"`
	Read      bool   `gorm:"default:false;index" json:"read"`
	RelatedID *uint  `json:"related_id,omitempty"`
}

// Review 表示求职者对企业的评价，创建后不可修改。
type Review struct {
	Model
	CompanyID  uint     `gorm:"index" json:"company_id"`
	ReviewerID uint     `gorm:"index" json:"reviewer_id"`
	Reviewer   *Profile `gorm:"foreignKey:ReviewerID;references:UserID" json:"reviewer,omitempty"`
	Rating     int      `json:"rating"`
	Title      string   `gorm:"size:255" json:"title"`
	Content    string   `gorm:"type:text" json:"content"`
	Pros       string   `gorm:"type:text" json:"pros"`
	Cons       string   `gorm:"type:text" json:"cons"`
}

// AllModels 返回需要迁移的全部模型，供 api 与 admin 共用。
func AllModels() []any {
	return []any{
		&User{},
		&Profile{},
		&Company{},
		&Job{},
		&Application{},
		&Bookmark{},
		&Notification{},
		&Review{},
	}
}
