package content

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"
)

var (
	ErrNotFound    = errors.New("content: document not found")
	ErrInvalidPath = errors.New("content: invalid document path")
)

// TOCDepth 目录收录 h1 到 h4
const TOCDepth = 4

type Heading struct {
	Depth int    `json:"depth"`
	ID    string `json:"id"`
	Text  string `json:"text"`
}

// Document 解析后的 markdown 文档
type Document struct {
	Path  string         `json:"path"`
	Title string         `json:"title"`
	Meta  map[string]any `json:"meta,omitempty"`
	TOC   []Heading      `json:"toc"`
	HTML  string         `json:"html"`
}

// Library 从 fsys 读取 {path}.md 文档
type Library struct {
	fsys fs.FS
	md   goldmark.Markdown
}

func New(fsys fs.FS) *Library {
	return &Library{
		fsys: fsys,
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithParserOptions(parser.WithAutoHeadingID()),
			goldmark.WithRendererOptions(html.WithXHTML()),
		),
	}
}

func (l *Library) Load(name string) (*Document, error) {
	name = strings.Trim(name, "/")
	name = strings.TrimSuffix(name, ".md")
	if name == "" || !fs.ValidPath(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPath, name)
	}

	raw, err := fs.ReadFile(l.fsys, name+".md")
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("content: read %s: %w", name, err)
	}

	meta, body, err := splitFrontMatter(raw)
	if err != nil {
		return nil, fmt.Errorf("content: %s front matter: %w", name, err)
	}

	root := l.md.Parser().Parse(text.NewReader(body))
	doc := &Document{Path: name, Meta: meta, TOC: headings(root, body)}

	var buf bytes.Buffer
	if err := l.md.Renderer().Render(&buf, body, root); err != nil {
		return nil, fmt.Errorf("content: render %s: %w", name, err)
	}
	doc.HTML = buf.String()

	if t, ok := meta["title"].(string); ok && t != "" {
		doc.Title = t
	} else {
		for _, h := range doc.TOC {
			if h.Depth == 1 {
				doc.Title = h.Text
				break
			}
		}
	}
	if doc.Title == "" {
		doc.Title = path.Base(name)
	}
	return doc, nil
}

func headings(root ast.Node, source []byte) []Heading {
	var out []Heading
	ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		h, ok := n.(*ast.Heading)
		if !ok || !entering {
			return ast.WalkContinue, nil
		}
		if h.Level <= TOCDepth {
			id := ""
			if v, ok := h.AttributeString("id"); ok {
				if b, ok := v.([]byte); ok {
					id = string(b)
				}
			}
			out = append(out, Heading{Depth: h.Level, ID: id, Text: string(h.Text(source))})
		}
		return ast.WalkSkipChildren, nil
	})
	return out
}

var fence = []byte("---")

// splitFrontMatter 拆出开头 --- 包围的 yaml 元数据
func splitFrontMatter(raw []byte) (map[string]any, []byte, error) {
	raw = bytes.TrimPrefix(raw, []byte("\ufeff"))
	if !bytes.HasPrefix(raw, fence) {
		return nil, raw, nil
	}
	rest := raw[len(fence):]
	nl := bytes.IndexByte(rest, '\n')
	if nl < 0 || len(bytes.TrimSpace(rest[:nl])) != 0 {
		return nil, raw, nil
	}
	rest = rest[nl+1:]

	end := bytes.Index(rest, []byte("\n---"))
	if end < 0 {
		return nil, raw, nil
	}
	var meta map[string]any
	if err := yaml.Unmarshal(rest[:end], &meta); err != nil {
		return nil, nil, err
	}

	body := rest[end+len("\n---"):]
	if i := bytes.IndexByte(body, '\n'); i >= 0 {
		body = body[i+1:]
	} else {
		body = nil
	}
	return meta, body, nil
}
