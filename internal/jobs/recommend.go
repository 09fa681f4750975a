package jobs

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"jobportal/internal/database"
)

// RecommendLimit 是推荐列表的长度上限。
const RecommendLimit = 5

// MatchesSkills reports whether any skill occurs, case-insensitively, in the
// job's title, description or requirements.
func MatchesSkills(job database.Job, skills []string) bool {
	text := strings.ToLower(job.Title + " " + job.Description + " " + job.Requirements)
	for _, skill := range skills {
		skill = strings.ToLower(strings.TrimSpace(skill))
		if skill == "" {
			continue
		}
		if strings.Contains(text, skill) {
			return true
		}
	}
	return false
}

// FilterBySkills 保留与技能匹配的职位，保持原有顺序，最多 limit 个。
func FilterBySkills(candidates []database.Job, skills []string, limit int) []database.Job {
	out := make([]database.Job, 0, limit)
	for _, job := range candidates {
		if len(out) >= limit {
			break
		}
		if MatchesSkills(job, skills) {
			out = append(out, job)
		}
	}
	return out
}

// Recommend 根据技能推荐在招职位；没有技能时退化为最近发布的职位。
func Recommend(ctx context.Context, db *gorm.DB, skills []string, limit int) ([]database.Job, error) {
	if limit <= 0 {
		limit = RecommendLimit
	}
	if !hasSkills(skills) {
		return Recent(ctx, db, limit)
	}

	var candidates []database.Job
	if err := db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("created_at DESC").
		Order("id DESC").
		Find(&candidates).Error; err != nil {
		return nil, fmt.Errorf("list candidate jobs: %w", err)
	}

	matched := FilterBySkills(candidates, skills, limit)
	if len(matched) == 0 {
		return matched, nil
	}

	if err := attachCompanies(ctx, db, matched); err != nil {
		return nil, err
	}
	return matched, nil
}

func hasSkills(skills []string) bool {
	for _, s := range skills {
		if strings.TrimSpace(s) != "" {
			return true
		}
	}
	return false
}

// attachCompanies 按 ID 批量查询企业并挂到职位上。
func attachCompanies(ctx context.Context, db *gorm.DB, items []database.Job) error {
	ids := make([]uint, 0, len(items))
	seen := make(map[uint]struct{}, len(items))
	for _, job := range items {
		if _, ok := seen[job.CompanyID]; ok {
			continue
		}
		seen[job.CompanyID] = struct{}{}
		ids = append(ids, job.CompanyID)
	}

	var companies []database.Company
	if err := db.WithContext(ctx).Where("id IN ?", ids).Find(&companies).Error; err != nil {
		return fmt.Errorf("load companies: %w", err)
	}
	byID := make(map[uint]*database.Company, len(companies))
	for i := range companies {
		byID[companies[i].ID] = &companies[i]
	}
	for i := range items {
		items[i].Company = byID[items[i].CompanyID]
	}
	return nil
}
