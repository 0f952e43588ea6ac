package txt

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/feichai0017/book-reader/internal/agent/document"
)

// Candidate 解码时尝试的一种编码
type Candidate struct {
	Name     string
	Encoding encoding.Encoding
}

// DefaultCandidates 解码顺序: UTF-8, 三种中日韩编码, 最后是接受任意字节的 Latin-1
var DefaultCandidates = []Candidate{
	{Name: "utf-8", Encoding: unicode.UTF8},
	{Name: "gb18030", Encoding: simplifiedchinese.GB18030},
	{Name: "shift_jis", Encoding: japanese.ShiftJIS},
	{Name: "euc-kr", Encoding: korean.EUCKR},
	{Name: "latin-1", Encoding: charmap.ISO8859_1},
}

var utf8BOM = []byte("\xEF\xBB\xBF")

// decodeText 用第一个能完整解码的编码解码, 结果做 NFC 归一化
func decodeText(data []byte, candidates []Candidate) (string, string, error) {
	for _, c := range candidates {
		out, ok := tryDecode(data, c.Encoding)
		if !ok {
			continue
		}
		return norm.NFC.String(string(out)), c.Name, nil
	}
	return "", "", fmt.Errorf("tried %d encodings: %w", len(candidates), document.ErrEncodingUndecidable)
}

// tryDecode 遇到非法字节序列时返回 false.
// x/text 解码器不会报错而是替换成 U+FFFD, 所以输入里没有的替换字符就表示失败
func tryDecode(data []byte, enc encoding.Encoding) ([]byte, bool) {
	if enc == unicode.UTF8 {
		if !utf8.Valid(data) {
			return nil, false
		}
		return bytes.TrimPrefix(data, utf8BOM), true
	}

	out, _, err := transform.Bytes(enc.NewDecoder(), data)
	if err != nil {
		return nil, false
	}
	if bytes.ContainsRune(out, utf8.RuneError) && !bytes.ContainsRune(data, utf8.RuneError) {
		return nil, false
	}
	return out, true
}
