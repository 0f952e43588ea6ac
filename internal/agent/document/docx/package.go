package docx

import (
	"encoding/xml"
	"fmt"
	"path"
	"strings"

	"github.com/feichai0017/book-reader/internal/agent/document"
	"github.com/feichai0017/book-reader/internal/models"
)

const (
	rootRelsPath        = "_rels/.rels"
	defaultDocumentPath = "word/document.xml"
	corePropsPath       = "docProps/core.xml"

	officeDocumentRel = "/officeDocument"
	imageRel          = "/image"
)

type relationships struct {
	XMLName xml.Name `xml:"Relationships"`
	Items   []struct {
		ID         string `xml:"Id,attr"`
		Type       string `xml:"Type,attr"`
		Target     string `xml:"Target,attr"`
		TargetMode string `xml:"TargetMode,attr"`
	} `xml:"Relationship"`
}

type coreProperties struct {
	Titles    []string `xml:"http://purl.org/dc/elements/1.1/ title"`
	Creators  []string `xml:"http://purl.org/dc/elements/1.1/ creator"`
	Languages []string `xml:"http://purl.org/dc/elements/1.1/ language"`
}

// relation 主文档关系表中的一项
type relation struct {
	ID       string
	Type     string
	Target   string
	Path     string
	External bool
}

// isImage 关系是否指向包内的图片
func (r *relation) isImage() bool {
	if r.External {
		return false
	}
	return strings.HasSuffix(r.Type, imageRel) || strings.Contains(strings.ToLower(r.Target), "image")
}

// pkg 已打开的 docx 包
type pkg struct {
	ar       *document.Archive
	mainPath string
	body     []byte
	rels     map[string]*relation

	title    string
	author   string
	language string
}

func openPackage(src *models.SourceFile) (*pkg, error) {
	ar, err := document.OpenArchive(src)
	if err != nil {
		return nil, document.Corrupt("docx", err)
	}

	p := &pkg{
		ar:       ar,
		mainPath: locateMainDocument(ar),
		rels:     make(map[string]*relation),
	}

	p.body, err = ar.Read(p.mainPath)
	if err != nil {
		return nil, document.Corrupt("docx", err)
	}

	relsPath := path.Join(path.Dir(p.mainPath), "_rels", path.Base(p.mainPath)+".rels")
	if data, err := ar.Read(relsPath); err == nil {
		var rs relationships
		if err := document.DecodeXML(data, &rs); err != nil {
			return nil, document.Corrupt("docx", fmt.Errorf("parse %s: %w", relsPath, err))
		}
		for _, r := range rs.Items {
			if r.ID == "" {
				continue
			}
			rel := &relation{
				ID:       r.ID,
				Type:     r.Type,
				Target:   r.Target,
				External: strings.EqualFold(r.TargetMode, "External"),
			}
			if !rel.External {
				rel.Path = resolveTarget(path.Dir(p.mainPath), r.Target)
			}
			p.rels[r.ID] = rel
		}
	}

	if data, err := ar.Read(corePropsPath); err == nil {
		var cp coreProperties
		if document.DecodeXML(data, &cp) == nil {
			p.title = firstNonEmpty(cp.Titles)
			p.author = firstNonEmpty(cp.Creators)
			p.language = firstNonEmpty(cp.Languages)
		}
	}

	return p, nil
}

// locateMainDocument 根据 officeDocument 关系定位主文档
func locateMainDocument(ar *document.Archive) string {
	data, err := ar.Read(rootRelsPath)
	if err != nil {
		return defaultDocumentPath
	}
	var rs relationships
	if err := document.DecodeXML(data, &rs); err != nil {
		return defaultDocumentPath
	}
	for _, r := range rs.Items {
		if strings.HasSuffix(r.Type, officeDocumentRel) && r.Target != "" {
			return resolveTarget("", r.Target)
		}
	}
	return defaultDocumentPath
}

// resolveTarget 相对源部件目录解析关系目标, 以 "/" 开头的是包内绝对路径
func resolveTarget(dir, target string) string {
	target = strings.ReplaceAll(target, "\\", "/")
	if strings.HasPrefix(target, "/") {
		return path.Clean(strings.TrimPrefix(target, "/"))
	}
	return path.Clean(path.Join(dir, target))
}

// image 返回图片关系对应的字节
func (p *pkg) image(relID string) (*relation, []byte, bool) {
	rel, ok := p.rels[relID]
	if !ok || !rel.isImage() {
		return nil, nil, false
	}
	data, err := p.ar.Read(rel.Path)
	if err != nil || len(data) == 0 {
		return nil, nil, false
	}
	return rel, data, true
}

func firstNonEmpty(values []string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
