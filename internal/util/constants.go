package util

const (
	StorageLocal = "local"
	StorageMinio = "minio"
)

const (
	MimePDF         = "application/pdf"
	MimeText        = "text/plain"
	MimeOctetStream = "application/octet-stream"
)

// MaxResumeChars 送入生成服务的简历文本上限
const MaxResumeChars = 20000

var AllowedResumeExtensions = []string{".pdf", ".txt", ".md"}

// MaxResumeBytes 简历上传大小上限
const MaxResumeBytes = 5 << 20
