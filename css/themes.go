package css

import (
	"embed"
	"fmt"
	"os"

	"go.uber.org/zap"
)

//go:embed themes/*.css
var themesFS embed.FS

// ThemeNames lists the packaged themes.
func ThemeNames() []string {
	return []string{"serif", "sans", "printlike"}
}

// ThemeCSS returns the packaged stylesheet for the named theme.
func ThemeCSS(name string) ([]byte, error) {
	data, err := themesFS.ReadFile("themes/" + name + ".css")
	if err != nil {
		return nil, fmt.Errorf("unknown theme '%s': %w", name, err)
	}
	return data, nil
}

// Compose builds the final book stylesheet: packaged theme, then an optional
// user stylesheet file, then the rules the style map contributed. Later
// layers override earlier ones in cascade order. A broken layer is skipped
// with a warning, composition itself never fails on user input.
func Compose(theme, userPath, mapped string, log *zap.Logger) (*Stylesheet, error) {
	p := NewParser(log)

	data, err := ThemeCSS(theme)
	if err != nil {
		return nil, err
	}
	sheet := p.Parse(data, "theme:"+theme)

	if userPath != "" {
		if data, err := os.ReadFile(userPath); err != nil {
			log.Warn("Unable to read user stylesheet, skipping it", zap.String("path", userPath), zap.Error(err))
		} else {
			sheet.Append(p.Parse(data, userPath))
		}
	}

	if mapped != "" {
		sheet.Append(p.Parse([]byte(mapped), "style map"))
	}

	for _, w := range sheet.Warnings {
		log.Debug("Stylesheet feature not carried through", zap.String("warning", w))
	}
	return sheet, nil
}
