package jobs

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"jobportal/internal/database"
)

// 分页默认值与上限。
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Filter 汇总职位列表的检索条件，所有非空条件以 AND 组合。
type Filter struct {
	Search   string // 标题或描述，忽略大小写的子串匹配
	Location string
	JobType  string // 区分大小写的精确匹配
	Salary   string
	Category string // 在描述中匹配
	Company  string // 企业名称，联表匹配
}

// Page 描述 limit/offset 分页。
type Page struct {
	Limit  int
	Offset int
}

// Normalize 去除首尾空白，并把分页参数约束在合法范围内。
func (p Page) Normalize() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// Normalize trims every predicate.
func (f Filter) Normalize() Filter {
	return Filter{
		Search:   strings.TrimSpace(f.Search),
		Location: strings.TrimSpace(f.Location),
		JobType:  strings.TrimSpace(f.JobType),
		Salary:   strings.TrimSpace(f.Salary),
		Category: strings.TrimSpace(f.Category),
		Company:  strings.TrimSpace(f.Company),
	}
}

// Scope 把检索条件转换为 gorm 查询条件，仅返回在招职位。
// 企业名称条件通过 JOIN 写进同一条 SQL，保证 total 与结果一致。
func (f Filter) Scope() func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		db = db.Where("jobs.is_active = ?", true)
		if f.Search != "" {
			pattern := containsPattern(f.Search)
			db = db.Where(
				db.Session(&gorm.Session{NewDB: true}).
					Where(likeClause("jobs.title"), pattern).
					Or(likeClause("jobs.description"), pattern),
			)
		}
		if f.Location != "" {
			db = db.Where(likeClause("jobs.location"), containsPattern(f.Location))
		}
		if f.JobType != "" {
			db = db.Where("jobs.job_type = ?", f.JobType)
		}
		if f.Salary != "" {
			db = db.Where(likeClause("jobs.salary_range"), containsPattern(f.Salary))
		}
		if f.Category != "" {
			db = db.Where(likeClause("jobs.description"), containsPattern(f.Category))
		}
		if f.Company != "" {
			db = db.Joins("JOIN companies ON companies.id = jobs.company_id").
				Where(likeClause("companies.name"), containsPattern(f.Company))
		}
		return db
	}
}

// List 返回满足条件的在招职位（按创建时间倒序）与总数，企业信息批量预加载。
func List(ctx context.Context, db *gorm.DB, filter Filter, page Page) ([]database.Job, int64, error) {
	filter = filter.Normalize()
	page = page.Normalize()

	var total int64
	if err := db.WithContext(ctx).
		Model(&database.Job{}).
		Scopes(filter.Scope()).
		Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count jobs: %w", err)
	}

	items := make([]database.Job, 0)
	if total == 0 {
		return items, 0, nil
	}

	if err := db.WithContext(ctx).
		Model(&database.Job{}).
		Select("jobs.*").
		Scopes(filter.Scope()).
		Preload("Company").
		Order("jobs.created_at DESC").
		Order("jobs.id DESC").
		Limit(page.Limit).
		Offset(page.Offset).
		Find(&items).Error; err != nil {
		return nil, 0, fmt.Errorf("list jobs: %w", err)
	}
	return items, total, nil
}

// Recent 返回最近发布的在招职位。
func Recent(ctx context.Context, db *gorm.DB, limit int) ([]database.Job, error) {
	items := make([]database.Job, 0, limit)
	if err := db.WithContext(ctx).
		Where("is_active = ?", true).
		Preload("Company").
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list recent jobs: %w", err)
	}
	return items, nil
}

// Similar 返回同一工作类型的其他在招职位。
func Similar(ctx context.Context, db *gorm.DB, job database.Job, limit int) ([]database.Job, error) {
	items := make([]database.Job, 0, limit)
	if err := db.WithContext(ctx).
		Where("is_active = ? AND job_type = ? AND id <> ?", true, job.JobType, job.ID).
		Preload("Company").
		Order("created_at DESC").
		Limit(limit).
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list similar jobs: %w", err)
	}
	return items, nil
}

func likeClause(column string) string {
	return "LOWER(" + column + ") LIKE ? ESCAPE '\\'"
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func containsPattern(term string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(term)) + "%"
}
