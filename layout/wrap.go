package layout

import (
	"strings"
)

// WrapText 使用贪心算法把文本按词折行，使每行测量宽度不超过 limit。
//
// 词之间以单个空格连接；显式换行符开始新段落（空段落产生空行）。
// 单个词本身超宽时按字符拆分，每段至少保留一个字符。
// 空白文本返回 nil。
func WrapText(content string, limit float64, face Face) []string {
	content = strings.TrimSpace(strings.ReplaceAll(content, "\r", ""))
	if content == "" {
		return nil
	}
	var lines []string
	for _, para := range strings.Split(content, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}
		lines = append(lines, wrapWords(words, limit, face)...)
	}
	return lines
}

func wrapWords(words []string, limit float64, face Face) []string {
	var lines []string
	current := ""
	for _, word := range words {
		candidate := word
		if current != "" {
			candidate = current + " " + word
		}
		if limit <= 0 || face.TextWidth(candidate) <= limit {
			current = candidate
			continue
		}
		if current != "" {
			lines = append(lines, current)
			current = ""
		}
		if face.TextWidth(word) <= limit {
			current = word
			continue
		}
		chunks := splitWordByWidth(word, limit, face)
		lines = append(lines, chunks[:len(chunks)-1]...)
		current = chunks[len(chunks)-1]
	}
	if current != "" {
		lines = append(lines, current)
	}
	return lines
}

func splitWordByWidth(word string, limit float64, face Face) []string {
	var parts []string
	var builder strings.Builder
	for _, r := range word {
		builder.WriteRune(r)
		if face.TextWidth(builder.String()) > limit && builder.Len() > len(string(r)) {
			s := builder.String()
			parts = append(parts, s[:len(s)-len(string(r))])
			builder.Reset()
			builder.WriteRune(r)
		}
	}
	if builder.Len() > 0 {
		parts = append(parts, builder.String())
	}
	return parts
}

// fillWidth 返回由 char 重复而成、测量宽度不超过 limit 的最长字符串。
func fillWidth(char string, limit float64, face Face) string {
	unit := face.TextWidth(char)
	if unit <= 0 || limit <= 0 {
		return char
	}
	n := int(limit / unit)
	for n > 1 && face.TextWidth(strings.Repeat(char, n)) > limit {
		n--
	}
	for face.TextWidth(strings.Repeat(char, n+1)) <= limit {
		n++
	}
	if n < 1 {
		n = 1
	}
	return strings.Repeat(char, n)
}
