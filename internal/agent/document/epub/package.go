package epub

import (
	"encoding/xml"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/feichai0017/book-reader/internal/agent/document"
	"github.com/feichai0017/book-reader/internal/models"
)

const containerPath = "META-INF/container.xml"

type containerXML struct {
	XMLName   xml.Name `xml:"container"`
	RootFiles []struct {
		FullPath  string `xml:"full-path,attr"`
		MediaType string `xml:"media-type,attr"`
	} `xml:"rootfiles>rootfile"`
}

type opfPackage struct {
	XMLName  xml.Name `xml:"package"`
	Metadata struct {
		Titles    []string `xml:"http://purl.org/dc/elements/1.1/ title"`
		Creators  []string `xml:"http://purl.org/dc/elements/1.1/ creator"`
		Languages []string `xml:"http://purl.org/dc/elements/1.1/ language"`
		Metas     []struct {
			Name    string `xml:"name,attr"`
			Content string `xml:"content,attr"`
		} `xml:"meta"`
	} `xml:"metadata"`
	Manifest struct {
		Items []struct {
			ID         string `xml:"id,attr"`
			Href       string `xml:"href,attr"`
			MediaType  string `xml:"media-type,attr"`
			Properties string `xml:"properties,attr"`
		} `xml:"item"`
	} `xml:"manifest"`
	Spine struct {
		ItemRefs []struct {
			IDRef string `xml:"idref,attr"`
		} `xml:"itemref"`
	} `xml:"spine"`
}

// item manifest 中的一项. Href 相对于 OPF, Path 是归档内的完整条目名
type item struct {
	ID         string
	Href       string
	Path       string
	MediaType  string
	Properties []string
}

func (it *item) isImage() bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(it.MediaType)), "image/")
}

func (it *item) isDocument() bool {
	mt := strings.ToLower(strings.TrimSpace(it.MediaType))
	return mt == "application/xhtml+xml" || mt == "text/html"
}

func (it *item) hasProperty(p string) bool {
	for _, v := range it.Properties {
		if v == p {
			return true
		}
	}
	return false
}

func (it *item) basename() string {
	return path.Base(it.Href)
}

// pkg 已打开的 EPUB 包及其索引
type pkg struct {
	ar       *document.Archive
	opfDir   string
	title    string
	author   string
	language string
	coverID  string

	manifest []*item
	spine    []*item
	byID     map[string]*item
	byPath   map[string]*item
	byBase   map[string]*item
}

func openPackage(src *models.SourceFile) (*pkg, error) {
	ar, err := document.OpenArchive(src)
	if err != nil {
		return nil, document.Corrupt("epub", err)
	}

	p := &pkg{
		ar:     ar,
		byID:   make(map[string]*item),
		byPath: make(map[string]*item),
		byBase: make(map[string]*item),
	}

	opfPath, err := p.locateOPF()
	if err != nil {
		return nil, document.Corrupt("epub", err)
	}
	data, err := ar.Read(opfPath)
	if err != nil {
		return nil, document.Corrupt("epub", err)
	}

	var opf opfPackage
	if err := document.DecodeXML(data, &opf); err != nil {
		return nil, document.Corrupt("epub", fmt.Errorf("parse package document: %w", err))
	}

	p.opfDir = path.Dir(opfPath)
	p.title = firstNonEmpty(opf.Metadata.Titles)
	p.author = firstNonEmpty(opf.Metadata.Creators)
	p.language = firstNonEmpty(opf.Metadata.Languages)
	for _, m := range opf.Metadata.Metas {
		if strings.EqualFold(m.Name, "cover") && strings.TrimSpace(m.Content) != "" {
			p.coverID = strings.TrimSpace(m.Content)
			break
		}
	}

	for _, raw := range opf.Manifest.Items {
		if raw.ID == "" || raw.Href == "" {
			continue
		}
		it := &item{
			ID:         raw.ID,
			Href:       unescape(raw.Href),
			MediaType:  raw.MediaType,
			Properties: strings.Fields(raw.Properties),
		}
		it.Path = p.resolve(it.Href)
		p.manifest = append(p.manifest, it)
		p.byID[it.ID] = it
		for _, key := range []string{it.Href, raw.Href, it.Path} {
			if _, ok := p.byPath[key]; !ok && key != "" {
				p.byPath[key] = it
			}
		}
		if _, ok := p.byBase[it.basename()]; !ok {
			p.byBase[it.basename()] = it
		}
	}

	for _, ref := range opf.Spine.ItemRefs {
		if it, ok := p.byID[ref.IDRef]; ok {
			p.spine = append(p.spine, it)
		}
	}

	return p, nil
}

// locateOPF 读取 container.xml, 找不到时取第一个 .opf 条目
func (p *pkg) locateOPF() (string, error) {
	if p.ar.Lookup(containerPath) != nil {
		data, err := p.ar.Read(containerPath)
		if err != nil {
			return "", err
		}
		var c containerXML
		if err := document.DecodeXML(data, &c); err != nil {
			return "", fmt.Errorf("parse container.xml: %w", err)
		}
		for _, rf := range c.RootFiles {
			if full := strings.TrimSpace(rf.FullPath); full != "" {
				return full, nil
			}
		}
	}
	for _, f := range p.ar.Entries() {
		if strings.HasSuffix(strings.ToLower(f.Name), ".opf") {
			return f.Name, nil
		}
	}
	return "", errors.New("no package document in archive")
}

// resolve 把相对 OPF 的 href 拼到包目录上
func (p *pkg) resolve(href string) string {
	if p.opfDir == "." || p.opfDir == "" {
		return path.Clean(href)
	}
	return path.Join(p.opfDir, href)
}

func (p *pkg) readItem(it *item) ([]byte, error) {
	return p.ar.Read(it.Path)
}

// imageByBase 只按文件名把标记中的引用解析成图片项
func (p *pkg) imageByBase(ref string) *item {
	name := path.Base(strings.ReplaceAll(unescape(ref), "\\", "/"))
	if it, ok := p.byBase[name]; ok && it.isImage() {
		return it
	}
	for _, it := range p.manifest {
		if it.isImage() && it.basename() == name {
			return it
		}
	}
	return nil
}

func unescape(href string) string {
	href = strings.TrimSpace(href)
	if decoded, err := url.PathUnescape(href); err == nil {
		return decoded
	}
	return href
}

func firstNonEmpty(values []string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
