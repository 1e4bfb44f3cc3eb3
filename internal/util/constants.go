package util

const (
	// DateFormat 自动生成的试卷标题里使用的日期格式
	DateFormat = "2006-01-02"
)

const (
	StorageLocal = "local"
	StorageMinio = "minio"
	StorageOSS   = "oss"
)

// 出题资料相关常量
const (
	MimeImage       = "image/"
	MimePDF         = "application/pdf"
	MimeText        = "text/"
	MimeOctetStream = "application/octet-stream"
)

var (
	AllowedMaterialExtensions = []string{".pdf", ".txt", ".md", ".png", ".jpg", ".jpeg", ".webp"}
)
