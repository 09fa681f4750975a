package main

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"jobportal/internal/auth"
	"jobportal/internal/database"
)

const tempPasswordEntropy = 24

var errAccountExists = errors.New("account already exists")

type provisionRequest struct {
	Email    string
	FullName string
	UserType string
}

func (r provisionRequest) normalized() provisionRequest {
	return provisionRequest{
		Email:    strings.ToLower(strings.TrimSpace(r.Email)),
		FullName: strings.TrimSpace(r.FullName),
		UserType: strings.TrimSpace(r.UserType),
	}
}

func (r provisionRequest) validate() error {
	switch {
	case r.Email == "":
		return errors.New("missing required flag: --email")
	case r.FullName == "":
		return errors.New("missing required flag: --full-name")
	case r.UserType != database.UserTypeApplicant && r.UserType != database.UserTypeCompany:
		return fmt.Errorf("invalid --user-type %q, want applicant or company", r.UserType)
	}
	return nil
}

// provision 在一个事务内创建用户、个人资料以及企业资料，返回明文初始密码。
// 账号带 must_change_password 标记，改密前只能访问改密与会话接口。
func provision(db *gorm.DB, r provisionRequest) (string, error) {
	password, err := auth.GenerateTempPassword(tempPasswordEntropy)
	if err != nil {
		return "", fmt.Errorf("generate password: %w", err)
	}
	hashed, err := auth.HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&database.User{}).Where("email = ?", r.Email).Count(&count).Error; err != nil {
			return fmt.Errorf("query user: %w", err)
		}
		if count > 0 {
			return fmt.Errorf("%w: %s", errAccountExists, r.Email)
		}

		user := database.User{Email: r.Email, PasswordHash: hashed, MustChangePassword: true}
		if err := tx.Create(&user).Error; err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		if err := tx.Create(&database.Profile{UserID: user.ID, FullName: r.FullName, UserType: r.UserType}).Error; err != nil {
			return fmt.Errorf("create profile: %w", err)
		}
		if r.UserType != database.UserTypeCompany {
			return nil
		}
		// 企业资料先用占位内容，账号持有人登录后自行完善。
		company := database.Company{
			UserID:      user.ID,
			Name:        r.FullName,
			Description: "Company description",
			Industry:    "Technology",
		}
		if err := tx.Create(&company).Error; err != nil {
			return fmt.Errorf("create company: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return password, nil
}
