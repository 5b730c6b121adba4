package config

import (
	"fmt"
	"strings"
)

// ImageResizeMode selects how the cover image is fitted into the requested box.
type ImageResizeMode int

const (
	ImageResizeModeNone ImageResizeMode = iota
	ImageResizeModeKeepAR
	ImageResizeModeStretch
)

var imageResizeModeNames = []string{"none", "keepAR", "stretch"}

func (m ImageResizeMode) IsValid() bool {
	return m >= ImageResizeModeNone && m <= ImageResizeModeStretch
}

func (m ImageResizeMode) String() string {
	if !m.IsValid() {
		return fmt.Sprintf("ImageResizeMode(%d)", int(m))
	}
	return imageResizeModeNames[m]
}

func ParseImageResizeMode(name string) (ImageResizeMode, error) {
	for i, n := range imageResizeModeNames {
		if strings.EqualFold(name, n) {
			return ImageResizeMode(i), nil
		}
	}
	return 0, fmt.Errorf("%s is not a valid ImageResizeMode", name)
}

func (m ImageResizeMode) MarshalText() ([]byte, error) {
	if !m.IsValid() {
		return nil, fmt.Errorf("%d is not a valid ImageResizeMode", int(m))
	}
	return []byte(m.String()), nil
}

func (m *ImageResizeMode) UnmarshalText(text []byte) error {
	v, err := ParseImageResizeMode(string(text))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// SplitMode selects how converted content is cut into chapter chunks.
type SplitMode int

const (
	SplitModeHeading SplitMode = iota
	SplitModePagebreak
	SplitModeMixed
)

var splitModeNames = []string{"heading", "pagebreak", "mixed"}

func (m SplitMode) IsValid() bool {
	return m >= SplitModeHeading && m <= SplitModeMixed
}

func (m SplitMode) String() string {
	if !m.IsValid() {
		return fmt.Sprintf("SplitMode(%d)", int(m))
	}
	return splitModeNames[m]
}

func ParseSplitMode(name string) (SplitMode, error) {
	for i, n := range splitModeNames {
		if strings.EqualFold(name, n) {
			return SplitMode(i), nil
		}
	}
	return 0, fmt.Errorf("%s is not a valid SplitMode", name)
}

func SplitModeNames() []string {
	return append([]string{}, splitModeNames...)
}

func (m SplitMode) MarshalText() ([]byte, error) {
	if !m.IsValid() {
		return nil, fmt.Errorf("%d is not a valid SplitMode", int(m))
	}
	return []byte(m.String()), nil
}

func (m *SplitMode) UnmarshalText(text []byte) error {
	v, err := ParseSplitMode(string(text))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// ChapterStartMode selects how chapter boundaries receive navigation entries.
type ChapterStartMode int

const (
	ChapterStartModeAuto ChapterStartMode = iota
	ChapterStartModeManual
	ChapterStartModeMixed
)

var chapterStartModeNames = []string{"auto", "manual", "mixed"}

func (m ChapterStartMode) IsValid() bool {
	return m >= ChapterStartModeAuto && m <= ChapterStartModeMixed
}

func (m ChapterStartMode) String() string {
	if !m.IsValid() {
		return fmt.Sprintf("ChapterStartMode(%d)", int(m))
	}
	return chapterStartModeNames[m]
}

func ParseChapterStartMode(name string) (ChapterStartMode, error) {
	for i, n := range chapterStartModeNames {
		if strings.EqualFold(name, n) {
			return ChapterStartMode(i), nil
		}
	}
	return 0, fmt.Errorf("%s is not a valid ChapterStartMode", name)
}

func ChapterStartModeNames() []string {
	return append([]string{}, chapterStartModeNames...)
}

func (m ChapterStartMode) MarshalText() ([]byte, error) {
	if !m.IsValid() {
		return nil, fmt.Errorf("%d is not a valid ChapterStartMode", int(m))
	}
	return []byte(m.String()), nil
}

func (m *ChapterStartMode) UnmarshalText(text []byte) error {
	v, err := ParseChapterStartMode(string(text))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// InputFmt is the detected type of a source document.
type InputFmt int

const (
	InputFmtDocx InputFmt = iota
	InputFmtMarkdown
	InputFmtHTML
	InputFmtTxt
)

var inputFmtNames = []string{"docx", "markdown", "html", "txt"}

func (f InputFmt) IsValid() bool {
	return f >= InputFmtDocx && f <= InputFmtTxt
}

func (f InputFmt) String() string {
	if !f.IsValid() {
		return fmt.Sprintf("InputFmt(%d)", int(f))
	}
	return inputFmtNames[f]
}

func ParseInputFmt(name string) (InputFmt, error) {
	for i, n := range inputFmtNames {
		if strings.EqualFold(name, n) {
			return InputFmt(i), nil
		}
	}
	return 0, fmt.Errorf("%s is not a valid InputFmt", name)
}

func InputFmtNames() []string {
	return append([]string{}, inputFmtNames...)
}

// InputFmtForExt maps a file extension (with or without the leading dot) to
// the source format it conventionally carries.
func InputFmtForExt(ext string) (InputFmt, error) {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "docx":
		return InputFmtDocx, nil
	case "md", "markdown":
		return InputFmtMarkdown, nil
	case "html", "htm", "xhtml":
		return InputFmtHTML, nil
	case "txt", "text":
		return InputFmtTxt, nil
	default:
		return 0, fmt.Errorf("unsupported source extension %q", ext)
	}
}
