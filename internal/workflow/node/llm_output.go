package node

import (
	"strings"
)

// firstJSONObject 截取文本中第一个括号配平的 JSON 对象；找不到时原样返回
func firstJSONObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return s
	}
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return s[start:]
}

// responseFormatMarkers 服务端拒绝 response_format 时错误信息中常见的片段
var responseFormatMarkers = [][]string{
	{"response_format"},
	{"json_schema"},
	{"response_schema"},
	{"unknown parameter", "response"},
	{"invalid", "response"},
	{"failed to parse"},
}

// IsResponseFormatUnsupportedError 判断模型是否不支持结构化输出，调用方据此降级为纯文本
func IsResponseFormatUnsupportedError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range responseFormatMarkers {
		matched := true
		for _, m := range marker {
			if !strings.Contains(msg, m) {
				matched = false
				break
			}
		}
		if matched {
			return true
		}
	}
	return false
}
