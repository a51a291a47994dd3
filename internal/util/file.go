package util

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
)

// DetectResumeType 按扩展名和内容嗅探判断简历类型，只接受 PDF 与纯文本
func DetectResumeType(filename string, head []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	allowed := false
	for _, e := range AllowedResumeExtensions {
		if e == ext {
			allowed = true
			break
		}
	}
	if !allowed {
		return "", fmt.Errorf("%w: extension %q", ErrUnsupportedFile, ext)
	}

	mimeType := http.DetectContentType(head)
	switch {
	case mimeType == MimePDF:
		return MimePDF, nil
	case strings.HasPrefix(mimeType, MimeText):
		if ext == ".pdf" {
			return "", fmt.Errorf("%w: content does not match .pdf extension", ErrUnsupportedFile)
		}
		return MimeText, nil
	default:
		return mimeType, fmt.Errorf("%w: type %s", ErrUnsupportedFile, mimeType)
	}
}
