package util

import "strings"

// NormalizeText 折叠空白并截断到 limit 个字符
func NormalizeText(text string, limit int) string {
	text = strings.Join(strings.Fields(text), " ")
	if limit > 0 {
		runes := []rune(text)
		if len(runes) > limit {
			text = string(runes[:limit])
		}
	}
	return text
}
