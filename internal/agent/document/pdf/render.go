package pdf

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// renderPages 把每页文本转成段落, 每页后面跟一个带页码 (从 1 开始) 的分页标记.
// 没有文本的页也有分页标记
func renderPages(pages []string) string {
	var sb strings.Builder
	for i, text := range pages {
		for _, line := range strings.Split(text, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			sb.WriteString("<p>")
			sb.WriteString(html.EscapeString(line))
			sb.WriteString("</p>\n")
		}
		sb.WriteString("<hr class='page-break' data-page='")
		sb.WriteString(strconv.Itoa(i + 1))
		sb.WriteString("'>\n")
	}
	return sb.String()
}
