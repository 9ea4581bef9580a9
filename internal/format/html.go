package format

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/kazuph/tab-transfer/internal/tabs"
)

// pageTemplate renders a tab list as a page of links that can be opened by
// hand on any device, including ones without a debugging bridge.
var pageTemplate = template.Must(template.New("tabs").Funcs(template.FuncMap{
	"inc": func(i int) int { return i + 1 },
}).Parse(`<!DOCTYPE html>
<html>
<head>
    <title>Saved tabs</title>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <style>
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            max-width: 800px;
            margin: 0 auto;
            padding: 20px;
            background-color: #f5f5f5;
        }
        .container {
            background: white;
            padding: 20px;
            border-radius: 8px;
            box-shadow: 0 2px 10px rgba(0,0,0,0.1);
        }
        .tab-item { padding: 5px; border-bottom: 1px solid #eee; font-size: 14px; }
        .tab-item:last-child { border-bottom: none; }
        .tab-title { font-weight: bold; }
        .tab-url { color: #666; font-size: 12px; word-break: break-all; }
        button {
            background-color: #007bff;
            color: white;
            border: none;
            padding: 10px 20px;
            border-radius: 4px;
            font-size: 16px;
            margin: 10px 0;
        }
    </style>
</head>
<body>
    <div class="container">
        <h1>Saved tabs ({{len .}})</h1>
        <button onclick="openAll()">Open all</button>
        <div class="tab-list">
{{- range $i, $tab := .}}
            <div class="tab-item">
                <a class="tab-title" href="{{$tab.URL}}" target="_blank">{{inc $i}}. {{if $tab.Title}}{{$tab.Title}}{{else}}Untitled{{end}}</a>
                <div class="tab-url">{{$tab.URL}}</div>
            </div>
{{- end}}
        </div>
    </div>
    <script>
        const urls = [{{range $i, $tab := .}}{{if $i}}, {{end}}{{$tab.URL}}{{end}}];
        function openAll() {
            urls.forEach(function (url) { window.open(url, '_blank'); });
        }
    </script>
</body>
</html>
`))

func encodeHTML(records []tabs.Record) ([]byte, error) {
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, records); err != nil {
		return nil, fmt.Errorf("failed to render HTML: %w", err)
	}

	return buf.Bytes(), nil
}
