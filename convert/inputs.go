package convert

import (
	"bytes"
	"fmt"
	htmlesc "html"
	"os"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	ghtml "github.com/yuin/goldmark/renderer/html"
	"go.uber.org/zap"
	xhtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/ianaindex"

	"d2e/config"
	"d2e/content"
	"d2e/convert/epub"
	"d2e/docx"
	"d2e/state"
	"d2e/stylemap"
	"d2e/utils/images"
)

// source is the normalized form every input format is reduced to before the
// split stage: one HTML stream, the extracted images and fallback metadata.
type source struct {
	Stream string
	Images []epub.ImageFile
	MapCSS string
	Core   docx.CoreProperties
}

// loadSource dispatches on the detected input format. scratchDir receives
// files extracted along the way and is removed by the caller.
func loadSource(path, scratchDir string, env *state.LocalEnv, log *zap.Logger) (*source, error) {
	format, err := config.InputFmtForExt(filepath.Ext(path))
	if err != nil {
		return nil, err
	}

	switch format {
	case config.InputFmtDocx:
		return loadDocx(path, scratchDir, env, log)
	case config.InputFmtMarkdown:
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return loadMarkdown(data)
	case config.InputFmtHTML:
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return loadHTML(data)
	case config.InputFmtTxt:
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return loadTxt(data, env.Cfg.Document.TextEncoding, log)
	default:
		return nil, fmt.Errorf("no loader for input format %s", format)
	}
}

// loadDocx runs the full structural transform: parse the package, apply the
// style map, convert blocks, then post-process extracted images.
func loadDocx(path, scratchDir string, env *state.LocalEnv, log *zap.Logger) (*source, error) {
	doc, err := docx.Parse(path, log)
	if err != nil {
		return nil, err
	}

	styles := stylemap.Load(path, env.Cfg.Document.StyleMapPath, log)

	store, err := content.NewImageStore(scratchDir, log)
	if err != nil {
		return nil, err
	}

	conv := content.NewConverter(doc, styles, store, env.Cfg.Document.KeepComments, log)
	res := conv.Convert()

	src := &source{
		Stream: strings.Join(res.Sections, "\n"),
		MapCSS: res.CSS,
		Core:   doc.Core,
	}

	imgCfg := env.Cfg.Document.Images
	opts := images.TransformOptions{
		RemovePNGTransparency: imgCfg.RemovePNGTransparency,
		ScaleFactor:           imgCfg.ScaleFactor,
		JPEGQuality:           imgCfg.JPEGQuality,
		RasterizeSVG:          imgCfg.RasterizeSVG,
	}
	for _, p := range res.ImagePaths {
		data, err := os.ReadFile(p)
		if err != nil {
			log.Warn("Unable to read extracted image, dropping it", zap.String("path", p), zap.Error(err))
			continue
		}
		name := filepath.Base(p)
		newName, out, err := images.Transform(name, data, opts)
		if err != nil {
			log.Warn("Image processing failed, keeping original bytes", zap.String("image", name), zap.Error(err))
			newName, out = name, data
		}
		if newName != name {
			// markup references follow the rename
			src.Stream = strings.ReplaceAll(src.Stream, "images/"+name, "images/"+newName)
		}
		src.Images = append(src.Images, epub.ImageFile{Name: newName, Data: out})
	}
	return src, nil
}

// loadMarkdown renders Markdown to HTML. Thematic breaks become pagebreak
// markers so the pagebreak splitter recognizes them.
func loadMarkdown(data []byte) (*source, error) {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			extension.Footnote,
		),
		goldmark.WithRendererOptions(
			ghtml.WithUnsafe(),
		),
	)

	var buf bytes.Buffer
	if err := md.Convert(data, &buf); err != nil {
		return nil, fmt.Errorf("unable to render markdown: %w", err)
	}

	stream := buf.String()
	stream = strings.ReplaceAll(stream, "<hr>", `<hr class="pagebreak"/>`)
	stream = strings.ReplaceAll(stream, "<hr />", `<hr class="pagebreak"/>`)
	return &source{Stream: stream}, nil
}

// loadHTML accepts a complete document or a fragment, in any declared
// charset, and reduces it to body content.
func loadHTML(data []byte) (*source, error) {
	r, err := charset.NewReader(bytes.NewReader(data), "")
	if err != nil {
		return nil, fmt.Errorf("unable to detect input charset: %w", err)
	}

	doc, err := xhtml.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("unable to parse HTML input: %w", err)
	}

	body := findBody(doc)
	if body == nil {
		return nil, fmt.Errorf("HTML input has no body")
	}

	var sb strings.Builder
	for child := body.FirstChild; child != nil; child = child.NextSibling {
		if err := xhtml.Render(&sb, child); err != nil {
			return nil, fmt.Errorf("unable to serialize HTML input: %w", err)
		}
	}
	return &source{Stream: sb.String()}, nil
}

func findBody(n *xhtml.Node) *xhtml.Node {
	if n.Type == xhtml.ElementNode && n.DataAtom == atom.Body {
		return n
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if found := findBody(child); found != nil {
			return found
		}
	}
	return nil
}

// loadTxt turns plain text into paragraphs. Blank lines separate paragraphs,
// form feeds become pagebreak markers, a configured IANA code page decodes
// legacy files.
func loadTxt(data []byte, encodingName string, log *zap.Logger) (*source, error) {
	if encodingName != "" {
		enc, err := ianaindex.IANA.Encoding(encodingName)
		if err != nil || enc == nil {
			log.Warn("Unknown text encoding, assuming UTF-8", zap.String("charset", encodingName), zap.Error(err))
		} else {
			decoded, err := enc.NewDecoder().Bytes(data)
			if err != nil {
				return nil, fmt.Errorf("unable to decode text input as %s: %w", encodingName, err)
			}
			data = decoded
		}
	}

	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	text = strings.ReplaceAll(text, "\f", "\n\n"+content.Pagebreak+"\n\n")

	var sb strings.Builder
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if para == content.Pagebreak {
			sb.WriteString(content.Pagebreak + "\n")
			continue
		}
		sb.WriteString("<p>" + htmlesc.EscapeString(para) + "</p>\n")
	}
	return &source{Stream: sb.String()}, nil
}
