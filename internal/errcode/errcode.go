package errcode

// 错误码约定：
// - 0：无错误
// - 4xxx：业务可恢复/告警类错误（单个文件失败，批次可继续）
// - 5xxx：系统错误（需要中断流程）
const (
	OK               = 0
	InvalidFileType  = 4001
	DuplicateContent = 4009
	NoUsableText     = 4010
	MaliciousFile    = 4011
	ResourceMissing  = 4004
	SystemError      = 5000
)
