package convert

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/language"

	"d2e/config"
	"d2e/content/split"
	"d2e/content/text"
	"d2e/convert/epub"
	"d2e/css"
	"d2e/docx"
	"d2e/figures"
	"d2e/nav"
	"d2e/state"
	"d2e/utils/debug"
)

// buildBook runs the stream through the split, chapter assignment, figure
// numbering and stylesheet stages and assembles the result for generation.
func buildBook(src *source, srcName string, env *state.LocalEnv, log *zap.Logger) (*epub.Book, error) {
	cfg := &env.Cfg.Document

	meta := mergeMetadata(cfg.Metadata, src.Core)

	chunks := splitStream(src.Stream, &cfg.Split)
	log.Debug("Stream split into chunks", zap.Int("count", len(chunks)))

	var chapters []nav.Chapter
	switch cfg.Chapters.StartMode {
	case config.ChapterStartModeManual, config.ChapterStartModeMixed:
		chapters = nav.AssignManual(chunks, cfg.Chapters.Starts, cfg.Split.TOCDepth, log)
	default:
		chapters = make([]nav.Chapter, 0, len(chunks))
		for i, chunk := range chunks {
			chapters = append(chapters, nav.AssignAuto(i+1, chunk, cfg.Split.TOCDepth))
		}
	}

	lang, err := language.Parse(meta.Language)
	if err != nil {
		lang = language.English
	}
	registry := figures.NewRegistry(cfg.Figures.FigureLabel, cfg.Figures.TableLabel,
		cfg.Figures.InferCaptions, text.NewSplitter(lang, log), log)
	for i := range chapters {
		chapters[i].HTML = registry.ProcessChunk(chapters[i].ID, chapters[i].HTML)
	}

	if env.Rpt != nil {
		for _, ch := range chapters {
			env.Rpt.StoreData("chunk-"+ch.ID+".html", []byte(ch.HTML))
		}
	}

	dedication, err := optionalTextFile(cfg.Pages.DedicationPath)
	if err != nil {
		return nil, err
	}
	acknowledgements, err := optionalTextFile(cfg.Pages.AcknowledgementsPath)
	if err != nil {
		return nil, err
	}

	front := nav.FrontMatter{
		Title:            cfg.Pages.TitlePage,
		Copyright:        cfg.Pages.CopyrightPage,
		Dedication:       dedication != "",
		Acknowledgements: acknowledgements != "",
		ListOfFigures:    cfg.Pages.ListOfFigures && len(registry.Figures()) > 0,
		ListOfTables:     cfg.Pages.ListOfTables && len(registry.Tables()) > 0,
	}

	pageList := nav.AssignPageAnchors(chapters)

	navigator := nav.NewNavigator(front, chapters, cfg.Split.TOCDepth)
	spine := navigator.Spine()
	toc := navigator.TOC()
	quiet := env.Cfg.Logging.ConsoleLogger.Level == "none"
	nav.ReportConsistency(nav.CheckConsistency(spine, toc), quiet, log)

	if env.Rpt != nil {
		env.Rpt.StoreData("navigation.txt", []byte(navigationTree(spine, toc)))
	}

	sheet, err := css.Compose(cfg.Theme, cfg.StylesheetPath, src.MapCSS, log)
	if err != nil {
		return nil, fmt.Errorf("unable to compose stylesheet: %w", err)
	}

	cover, dim, err := prepareCover(env, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("unable to prepare cover: %w", err)
	}

	return &epub.Book{
		SrcName:          srcName,
		Meta:             meta,
		Front:            front,
		Spine:            spine,
		TOC:              toc,
		PageList:         pageList,
		Chapters:         chapters,
		Figures:          registry.Figures(),
		Tables:           registry.Tables(),
		Images:           src.Images,
		Cover:            cover,
		CoverDim:         dim,
		CSS:              sheet.String(),
		Dedication:       dedication,
		Acknowledgements: acknowledgements,
	}, nil
}

func splitStream(stream string, cfg *config.SplitConfig) []string {
	switch cfg.Mode {
	case config.SplitModePagebreak:
		return split.ByPagebreak(stream)
	case config.SplitModeMixed:
		return split.Mixed(stream, fmt.Sprintf("h%d,pagebreak", cfg.HeadingLevel))
	default:
		return split.ByHeading(stream, cfg.HeadingLevel)
	}
}

// mergeMetadata fills metadata fields the configuration left empty from the
// source document's core properties.
func mergeMetadata(meta config.MetadataConfig, core docx.CoreProperties) config.MetadataConfig {
	if meta.Title == "" {
		meta.Title = core.Title
	}
	if meta.Author == "" {
		meta.Author = core.Creator
	}
	if meta.Description == "" {
		meta.Description = core.Description
	}
	if meta.Language == "" && core.Language != "" {
		meta.Language = core.Language
	}
	if meta.Language == "" {
		meta.Language = "en"
	}
	if meta.Date == "" && len(core.Created) >= 10 {
		meta.Date = core.Created[:10]
	}
	if len(meta.Subjects) == 0 && core.Subject != "" {
		meta.Subjects = []string{core.Subject}
	}
	return meta
}

// navigationTree renders spine order and the nested table of contents for the
// debug report.
func navigationTree(spine []nav.SpineItem, toc []nav.TOCEntry) string {
	tw := debug.NewTreeWriter()
	tw.Line(0, "spine:")
	for _, item := range spine {
		if item.Landmark != "" {
			tw.Line(1, "%s -> %s (%s)", item.ID, item.Filename, item.Landmark)
			continue
		}
		tw.Line(1, "%s -> %s", item.ID, item.Filename)
	}
	tw.Line(0, "toc:")
	writeTOCEntries(tw, toc, 1)
	return tw.String()
}

func writeTOCEntries(tw *debug.TreeWriter, entries []nav.TOCEntry, depth int) {
	for _, e := range entries {
		tw.Line(depth, "%q -> %s", e.Title, e.Href)
		writeTOCEntries(tw, e.Children, depth+1)
	}
}

// optionalTextFile reads a configured page source. An empty path means the
// page is not wanted, a configured but unreadable path is an error.
func optionalTextFile(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("unable to read page text from %q: %w", path, err)
	}
	return strings.TrimSpace(string(data)), nil
}
