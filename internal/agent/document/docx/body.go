package docx

import (
	"encoding/xml"
	"errors"
	"io"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/feichai0017/book-reader/internal/agent/document"
)

const (
	wordNamespace       = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	strictWordNamespace = "http://purl.oclc.org/ooxml/wordprocessingml/main"
)

const imageStyle = "max-width: 100%; height: auto;"

// walker 逐个 token 把 document.xml 的 body 渲染成 HTML
type walker struct {
	dec  *xml.Decoder
	base string

	// images 按阅读顺序记录所有图片关系 id, 不论是否输出
	images []string
}

// isWord 匹配 wordprocessingml 元素, 未声明命名空间的 "w" 前缀也算
func isWord(name xml.Name, local string) bool {
	if name.Local != local {
		return false
	}
	switch name.Space {
	case wordNamespace, strictWordNamespace, "w":
		return true
	}
	return false
}

// renderBody 遍历 body 的顶层块元素
func renderBody(data []byte, imageBaseURL string) (string, []string, error) {
	w := &walker{
		dec:  document.NewXMLDecoder(data),
		base: imageBaseURL,
	}

	var out strings.Builder
	for {
		tok, err := w.dec.Token()
		if errors.Is(err, io.EOF) {
			return out.String(), w.images, nil
		}
		if err != nil {
			return "", nil, err
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch {
		case isWord(start.Name, "p"):
			p, err := w.paragraph()
			if err != nil {
				return "", nil, err
			}
			out.WriteString(p)
		case isWord(start.Name, "tbl"):
			t, err := w.table()
			if err != nil {
				return "", nil, err
			}
			out.WriteString(t)
		}
	}
}

// next 返回下一个 token, 文件被截断时提前结束当前元素
func (w *walker) next() (xml.Token, bool, error) {
	tok, err := w.dec.Token()
	if errors.Is(err, io.EOF) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return tok, true, nil
}

// paragraph 渲染开始标签已被读取的 w:p, 空段落返回 ""
func (w *walker) paragraph() (string, error) {
	var (
		out      strings.Builder
		visible  bool
		inText   bool
		rendered int
	)

	depth := 1
	for depth > 0 {
		tok, ok, err := w.next()
		if err != nil {
			return "", err
		}
		if !ok {
			break
		}

		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			switch {
			case isWord(t.Name, "t"):
				inText = true
			case isWord(t.Name, "tab"):
				out.WriteString("\t")
			case isWord(t.Name, "br"), isWord(t.Name, "cr"):
				out.WriteString("<br>")
			case t.Name.Local == "blip":
				if w.image(&out, attrLocal(t, "embed")) {
					rendered++
				}
			case t.Name.Local == "imagedata":
				// 旧版 VML 图片 <w:pict><v:shape><v:imagedata r:id=...>
				if w.image(&out, attrLocal(t, "id")) {
					rendered++
				}
			}
		case xml.EndElement:
			depth--
			if isWord(t.Name, "t") {
				inText = false
			}
		case xml.CharData:
			if inText {
				text := string(t)
				if strings.TrimSpace(text) != "" {
					visible = true
				}
				out.WriteString(html.EscapeString(text))
			}
		}
	}

	if !visible && rendered == 0 {
		return "", nil
	}
	return "<p>" + out.String() + "</p>", nil
}

// image 记录图片关系, 有 base 时输出 <img>. 返回是否输出
func (w *walker) image(out *strings.Builder, relID string) bool {
	if relID == "" {
		return false
	}
	w.images = append(w.images, relID)
	if w.base == "" {
		return false
	}
	out.WriteString(`<img src="` + html.EscapeString(w.base+"/"+relID) + `" style="` + imageStyle + `" />`)
	return true
}

// table 渲染 w:tbl, 每个 w:tr 一个 <tr>
func (w *walker) table() (string, error) {
	var out strings.Builder
	out.WriteString("<table>")

	depth := 1
	for depth > 0 {
		tok, ok, err := w.next()
		if err != nil {
			return "", err
		}
		if !ok {
			break
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if isWord(t.Name, "tr") {
				row, err := w.row()
				if err != nil {
					return "", err
				}
				out.WriteString(row)
				continue
			}
			depth++
		case xml.EndElement:
			depth--
		}
	}

	out.WriteString("</table>")
	return out.String(), nil
}

func (w *walker) row() (string, error) {
	var out strings.Builder
	out.WriteString("<tr>")

	depth := 1
	for depth > 0 {
		tok, ok, err := w.next()
		if err != nil {
			return "", err
		}
		if !ok {
			break
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if isWord(t.Name, "tc") {
				cell, err := w.cell()
				if err != nil {
					return "", err
				}
				out.WriteString(cell)
				continue
			}
			depth++
		case xml.EndElement:
			depth--
		}
	}

	out.WriteString("</tr>")
	return out.String(), nil
}

// cell 渲染 w:tc, 横向合并的单元格带 colspan
func (w *walker) cell() (string, error) {
	var (
		inner strings.Builder
		span  int
	)

	depth := 1
	for depth > 0 {
		tok, ok, err := w.next()
		if err != nil {
			return "", err
		}
		if !ok {
			break
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch {
			case isWord(t.Name, "p"):
				p, err := w.paragraph()
				if err != nil {
					return "", err
				}
				inner.WriteString(p)
				continue
			case isWord(t.Name, "tbl"):
				tbl, err := w.table()
				if err != nil {
					return "", err
				}
				inner.WriteString(tbl)
				continue
			case isWord(t.Name, "gridSpan"):
				span, _ = strconv.Atoi(attrLocal(t, "val"))
			}
			depth++
		case xml.EndElement:
			depth--
		}
	}

	if span > 1 {
		return `<td colspan="` + strconv.Itoa(span) + `">` + inner.String() + "</td>", nil
	}
	return "<td>" + inner.String() + "</td>", nil
}

func attrLocal(start xml.StartElement, local string) string {
	for _, a := range start.Attr {
		if a.Name.Local == local {
			return strings.TrimSpace(a.Value)
		}
	}
	return ""
}
