package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerTagNameOnce sync.Once

// useJSONFieldNames 让校验错误使用 json 字段名，与客户端表单字段一致。
func useJSONFieldNames() {
	registerTagNameOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return fld.Name
			}
			return name
		})
	})
}

// fieldMessages 以 "字段.规则" 为键覆盖默认提示，例如 "description.min"。
type fieldMessages map[string]string

// normalizer 由需要在校验前清洗字段的请求体实现，例如去掉邮箱两侧空白。
type normalizer interface {
	normalize()
}

var errEmptyBody = errors.New("empty request body")

// bindJSON 解析并校验请求体。失败时已写出 400 响应，调用方直接 return。
func bindJSON(c *gin.Context, req any, messages fieldMessages) bool {
	useJSONFieldNames()
	err := decodeJSON(c, req)
	if err == nil {
		return true
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		ValidationFailed(c, validationFields(verrs, messages))
		return false
	}
	BadRequest(c, "invalid request body")
	return false
}

// decodeJSON 对实现 normalizer 的请求体先解码、清洗，再按 binding 标签校验；
// 其余请求体走 gin 默认的解码加校验。
func decodeJSON(c *gin.Context, req any) error {
	n, ok := req.(normalizer)
	if !ok {
		return c.ShouldBindJSON(req)
	}
	if c.Request == nil || c.Request.Body == nil {
		return errEmptyBody
	}
	if err := json.NewDecoder(c.Request.Body).Decode(req); err != nil {
		return err
	}
	n.normalize()
	return binding.Validator.ValidateStruct(req)
}

func validationFields(verrs validator.ValidationErrors, messages fieldMessages) map[string]string {
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		name := fe.Field()
		if _, seen := fields[name]; seen {
			continue
		}
		if msg, ok := messages[name+"."+fe.Tag()]; ok {
			fields[name] = msg
			continue
		}
		fields[name] = defaultMessage(fe)
	}
	return fields
}

func defaultMessage(fe validator.FieldError) string {
	label := strings.ReplaceAll(fe.Field(), "_", " ")
	isString := fe.Kind() == reflect.String
	switch fe.Tag() {
	case "required":
		return label + " is required"
	case "email":
		return "please enter a valid email address"
	case "url":
		return "please enter a valid URL"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", label, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "min", "gte":
		if isString {
			return fmt.Sprintf("%s should be at least %s characters", label, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", label, fe.Param())
	case "max", "lte":
		if isString {
			return fmt.Sprintf("%s should be at most %s characters", label, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", label, fe.Param())
	}
	return label + " is invalid"
}
