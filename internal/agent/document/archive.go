package document

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"io/fs"
	"path"
	"strings"

	"golang.org/x/net/html/charset"

	"github.com/feichai0017/book-reader/internal/models"
)

// MaxEntrySize 单个 zip 条目解压后的大小上限
const MaxEntrySize int64 = 256 << 20

// Archive zip 容器的只读视图
type Archive struct {
	entries []*zip.File
	files   map[string]*zip.File
	filesCI map[string]*zip.File
}

// OpenArchive 把源文件按 zip 打开. 返回原始 zip 错误, 由调用方用 Corrupt 包装
func OpenArchive(src *models.SourceFile) (*Archive, error) {
	zr, err := zip.NewReader(src.Reader(), src.Size())
	if err != nil {
		return nil, err
	}

	a := &Archive{
		entries: zr.File,
		files:   make(map[string]*zip.File, len(zr.File)),
		filesCI: make(map[string]*zip.File, len(zr.File)),
	}
	for _, f := range zr.File {
		a.files[f.Name] = f
		lower := strings.ToLower(f.Name)
		if _, ok := a.filesCI[lower]; !ok {
			a.filesCI[lower] = f
		}
	}
	return a, nil
}

// Entries 按中央目录顺序返回条目
func (a *Archive) Entries() []*zip.File {
	return a.entries
}

// Lookup 先精确匹配条目名, 再忽略大小写匹配
func (a *Archive) Lookup(name string) *zip.File {
	name = strings.TrimPrefix(name, "/")
	if f, ok := a.files[name]; ok {
		return f
	}
	return a.filesCI[strings.ToLower(name)]
}

// Read 返回解压后的条目内容, 条目不存在时包装 fs.ErrNotExist
func (a *Archive) Read(name string) ([]byte, error) {
	f := a.Lookup(name)
	if f == nil {
		return nil, fmt.Errorf("%s: %w", name, fs.ErrNotExist)
	}
	return readEntry(f)
}

func readEntry(f *zip.File) ([]byte, error) {
	if !isSafePath(f.Name) {
		return nil, fmt.Errorf("unsafe entry path %q", f.Name)
	}
	if f.UncompressedSize64 > uint64(MaxEntrySize) {
		return nil, fmt.Errorf("entry %s too large: %d bytes", f.Name, f.UncompressedSize64)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open entry %s: %w", f.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, MaxEntrySize+1))
	if err != nil {
		return nil, fmt.Errorf("read entry %s: %w", f.Name, err)
	}
	if int64(len(data)) > MaxEntrySize {
		return nil, fmt.Errorf("entry %s exceeds %d bytes", f.Name, MaxEntrySize)
	}
	return data, nil
}

func isSafePath(p string) bool {
	cleaned := path.Clean(p)
	return !strings.HasPrefix(cleaned, "/") && cleaned != ".." && !strings.HasPrefix(cleaned, "../")
}

// NewXMLDecoder 返回宽松的解码器, 接受 HTML 命名实体和非 UTF-8 编码声明
func NewXMLDecoder(data []byte) *xml.Decoder {
	dec := xml.NewDecoder(bytes.NewReader(stripBOM(data)))
	dec.Strict = false
	dec.Entity = xml.HTMLEntity
	dec.CharsetReader = charset.NewReaderLabel
	return dec
}

// DecodeXML 用 NewXMLDecoder 解析 data
func DecodeXML(data []byte, v any) error {
	return NewXMLDecoder(data).Decode(v)
}

func stripBOM(data []byte) []byte {
	return bytes.TrimPrefix(data, []byte("\xEF\xBB\xBF"))
}
