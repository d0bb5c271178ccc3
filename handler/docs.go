package handler

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	texttemplate "text/template"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/billybrichards/climate-parser/config"
	"github.com/billybrichards/climate-parser/extract"
)

//go:embed docs.md
var docsMarkdown string

var docsPage = template.Must(template.New("docs").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Climate Project Parser API</title>
<style>
body { font-family: system-ui, sans-serif; max-width: 52rem; margin: 2rem auto; padding: 0 1rem; line-height: 1.5; }
code, pre { background: #f4f4f4; border-radius: 4px; }
pre { padding: 0.75rem; overflow-x: auto; }
table { border-collapse: collapse; }
th, td { border: 1px solid #ddd; padding: 0.3rem 0.6rem; text-align: left; }
</style>
</head>
<body>
{{.}}
</body>
</html>
`))

// renderDocs renders the documentation page once; it only depends on configuration.
func renderDocs(cfg *config.Config) ([]byte, error) {
	md, err := texttemplate.New("docs.md").Parse(docsMarkdown)
	if err != nil {
		return nil, err
	}
	var src bytes.Buffer
	if err := md.Execute(&src, map[string]any{
		"MaxTextLength": cfg.MaxTextLength,
		"MaxBodyBytes":  cfg.MaxBodyBytes,
		"PromptVersion": extract.PromptVersion,
		"Example":       fmt.Sprintf("http://localhost:%d", cfg.Port),
	}); err != nil {
		return nil, err
	}

	var body bytes.Buffer
	if err := goldmark.New(goldmark.WithExtensions(extension.GFM)).Convert(src.Bytes(), &body); err != nil {
		return nil, err
	}

	var page bytes.Buffer
	// docs.md is embedded in the binary.
	//nolint:gosec
	if err := docsPage.Execute(&page, template.HTML(body.String())); err != nil {
		return nil, err
	}
	return page.Bytes(), nil
}
