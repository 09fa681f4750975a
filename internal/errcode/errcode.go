package errcode

// 错误码约定：
// - 0：无错误
// - 4xxx：请求方可修正的错误（校验、鉴权、资源缺失、状态冲突）
// - 5xxx：系统错误（存储或队列失败，不重试）
const (
	OK               = 0
	ValidationFailed = 4000
	Unauthorized     = 4010
	Forbidden        = 4030
	ResourceMissing  = 4004
	Conflict         = 4090
	RateLimited      = 4290
	SystemError      = 5000
)
