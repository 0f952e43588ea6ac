package epub

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var bodyTag = regexp.MustCompile(`(?i)<body[\s>/]`)

// assetURL 只接受 http(s) 绝对地址或不带 scheme 的相对路径
var assetURL = regexp.MustCompile(`^(?:(?i:https?)://\S+|[^:]+)$`)

// chapterPolicy 保留阅读所需的标记, 去掉可执行内容
func chapterPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("class").Globally()
	p.AllowAttrs("colspan", "rowspan").OnElements("td", "th")
	p.RequireNoFollowOnLinks(false)

	// 封面页常用 <svg><image xlink:href=...>
	p.AllowNoAttrs().OnElements("svg")
	p.AllowAttrs("viewbox", "width", "height", "preserveaspectratio", "version", "xmlns", "xmlns:xlink").OnElements("svg")
	p.AllowAttrs("width", "height").OnElements("image")
	p.AllowAttrs("xlink:href", "href").Matching(assetURL).OnElements("image")
	return p
}

// normalizeChapter 返回清洗后的 body 内部 HTML, 没有 body 时 ok 为 false
func normalizeChapter(data []byte, imageBaseURL string, policy *bluemonday.Policy) (content string, ok bool, err error) {
	if !bodyTag.Match(data) {
		return "", false, nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(expandSelfClosing(data)))
	if err != nil {
		return "", false, err
	}

	doc.Find("script, style").Remove()

	if imageBaseURL != "" {
		doc.Find("img").Each(func(_ int, s *goquery.Selection) {
			rebase(s, "src", imageBaseURL)
		})
		// 解析后 xlink:href 的 Key 是 href
		doc.Find("image").Each(func(_ int, s *goquery.Selection) {
			rebase(s, "href", imageBaseURL)
		})
	}

	inner, err := doc.Find("body").First().Html()
	if err != nil {
		return "", false, err
	}
	return policy.Sanitize(inner), true, nil
}

func rebase(s *goquery.Selection, key, imageBaseURL string) {
	ref, exists := s.Attr(key)
	if !exists || ref == "" || strings.HasPrefix(ref, "http") {
		return
	}
	s.SetAttr(key, imageBaseURL+"/"+ref)
}

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "keygen": true, "link": true,
	"meta": true, "param": true, "source": true, "track": true, "wbr": true,
}

// expandSelfClosing 把 XHTML 里的 <a id="x"/> 改写成 <a id="x"></a>.
// HTML5 解析器会忽略非 void 元素上的 "/", 后面的内容都会落进这个元素里.
// svg/math 内部保持原样, 外来内容本身支持自闭合.
func expandSelfClosing(data []byte) []byte {
	var out bytes.Buffer
	out.Grow(len(data) + len(data)/16)

	z := html.NewTokenizer(bytes.NewReader(data))
	foreign := 0
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			return out.Bytes()
		}
		// TagName 会原地转小写
		raw := append([]byte(nil), z.Raw()...)

		switch tt {
		case html.StartTagToken:
			if name, _ := z.TagName(); isForeignRoot(name) {
				foreign++
			}
		case html.EndTagToken:
			if name, _ := z.TagName(); isForeignRoot(name) && foreign > 0 {
				foreign--
			}
		case html.SelfClosingTagToken:
			// <title/> 之类不能让后续内容变成原始文本
			z.NextIsNotRawText()
			if foreign > 0 {
				break
			}
			tok := z.Token()
			if voidElements[tok.Data] {
				break
			}
			tok.Type = html.StartTagToken
			out.WriteString(tok.String())
			out.WriteString("</" + tok.Data + ">")
			continue
		}
		out.Write(raw)
	}
}

func isForeignRoot(name []byte) bool {
	return string(name) == "svg" || string(name) == "math"
}

// imageRefs 按文档顺序列出 <img src> 和 SVG <image> 的 href
func imageRefs(data []byte) (imgs, svgImages []string) {
	z := html.NewTokenizer(bytes.NewReader(data))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return imgs, svgImages
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			if !hasAttr {
				continue
			}
			switch atom.Lookup(name) {
			case atom.Img:
				if v := attr(z, "src"); v != "" {
					imgs = append(imgs, v)
				}
			case atom.Image:
				if v := attr(z, "xlink:href", "href"); v != "" {
					svgImages = append(svgImages, v)
				}
			}
		}
	}
}

func attr(z *html.Tokenizer, keys ...string) string {
	found := make(map[string]string, len(keys))
	for {
		k, v, more := z.TagAttr()
		found[string(k)] = string(v)
		if !more {
			break
		}
	}
	for _, k := range keys {
		if v := strings.TrimSpace(found[k]); v != "" {
			return v
		}
	}
	return ""
}
