// admin 为线下签约的企业或求职者开通账号，生成一次性初始密码。
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"jobportal/internal/config"
	"jobportal/internal/database"
)

type dbFlags struct {
	host, name, user, password, sslmode string
	port                                int
}

func main() {
	var (
		acct provisionRequest
		dbf  dbFlags
	)
	flag.StringVar(&acct.Email, "email", "", "账号邮箱（必填）")
	flag.StringVar(&acct.UserType, "user-type", database.UserTypeCompany, "账号类型：applicant 或 company")
	flag.StringVar(&acct.FullName, "full-name", "", "姓名或企业名称（必填）")
	flag.StringVar(&dbf.host, "db-host", "", "数据库 Host，默认 DATABASE_HOST")
	flag.IntVar(&dbf.port, "db-port", 0, "数据库 Port，默认 DATABASE_PORT")
	flag.StringVar(&dbf.name, "db-name", "", "数据库名，默认 POSTGRES_DB")
	flag.StringVar(&dbf.user, "db-user", "", "数据库用户，默认 POSTGRES_USER")
	flag.StringVar(&dbf.password, "db-password", "", "数据库密码，默认 POSTGRES_PASSWORD")
	flag.StringVar(&dbf.sslmode, "db-sslmode", "", "SSLMODE，默认 DATABASE_SSLMODE")
	flag.Parse()

	acct = acct.normalized()
	if err := acct.validate(); err != nil {
		log.Fatal(err)
	}

	dbCfg, err := dbf.resolve(os.Getenv)
	if err != nil {
		log.Fatalf("load database config: %v", err)
	}
	db, err := database.InitDatabase(dbCfg, nil)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("auto migrate: %v", err)
	}

	password, err := provision(db, acct)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("账号已开通，首次登录后必须修改密码\n")
	fmt.Printf("  email     %s\n", acct.Email)
	fmt.Printf("  user_type %s\n", acct.UserType)
	fmt.Printf("  password  %s\n", password)
	fmt.Printf("初始密码只显示这一次。\n")
}

// resolve 按 flag、环境变量、默认值的顺序补全连接参数。
func (f dbFlags) resolve(getenv func(string) string) (config.DatabaseConfig, error) {
	pick := func(v string, keys ...string) string {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
		for _, k := range keys {
			if s := strings.TrimSpace(getenv(k)); s != "" {
				return s
			}
		}
		return ""
	}

	cfg := config.DatabaseConfig{
		Host:     pick(f.host, "DATABASE_HOST"),
		Port:     f.port,
		Name:     pick(f.name, "POSTGRES_DB", "DB_NAME"),
		User:     pick(f.user, "POSTGRES_USER", "DB_USER"),
		Password: pick(f.password, "POSTGRES_PASSWORD", "DB_PASSWORD"),
		SSLMode:  pick(f.sslmode, "DATABASE_SSLMODE"),
	}
	if cfg.Port <= 0 {
		if raw := pick("", "DATABASE_PORT"); raw != "" {
			p, err := strconv.Atoi(raw)
			if err != nil {
				return config.DatabaseConfig{}, fmt.Errorf("parse DATABASE_PORT: %w", err)
			}
			cfg.Port = p
		}
	}

	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port <= 0 {
		cfg.Port = 5432
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = "disable"
	}

	var missing []string
	if cfg.Name == "" {
		missing = append(missing, "POSTGRES_DB")
	}
	if cfg.User == "" {
		missing = append(missing, "POSTGRES_USER")
	}
	if cfg.Password == "" {
		missing = append(missing, "POSTGRES_PASSWORD")
	}
	if len(missing) > 0 {
		return config.DatabaseConfig{}, fmt.Errorf("missing database settings: %s", strings.Join(missing, ", "))
	}
	return cfg, nil
}
