package export

import (
	"html/template"
	"io"

	"github.com/dustin/go-humanize"
)

var htmlFuncs = template.FuncMap{
	"bytes": func(n int64) string { return humanize.Bytes(uint64(n)) },
	"hex":   digestHex,
	"inc":   func(i int) int { return i + 1 },
}

var htmlTmpl = template.Must(template.New("report").Funcs(htmlFuncs).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<title>File Similarity Report</title>
<style>
body { font-family: sans-serif; margin: 2em; color: #222; }
h1 { color: #2c3e50; }
h2 { color: #34495e; border-bottom: 2px solid #3498db; padding-bottom: .3em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
th, td { padding: .5em .8em; text-align: left; border-bottom: 1px solid #ddd; }
th { background: #3498db; color: white; }
.group { background: #fff8e1; border-left: 4px solid #ffc107; padding: .6em 1em; margin: .8em 0; }
.path { font-family: monospace; font-size: .85em; color: #666; }
.summary span { display: inline-block; margin-right: 2em; }
.summary b { font-size: 1.4em; color: #e74c3c; }
</style>
</head>
<body>
<h1>File Similarity Report</h1>
<p>Scanned <code>{{.Root}}</code> (recursive: {{.Recursive}}) at {{.GeneratedAt.Format "2006-01-02 15:04:05"}}.
Method {{.Method}}, threshold {{printf "%.1f" .Threshold}}.</p>

<div class="summary">
<span><b>{{.Meta.TotalFiles}}</b> files</span>
<span><b>{{bytes .Meta.TotalSize}}</b> total</span>
<span><b>{{len .Duplicates}}</b> duplicate groups</span>
<span><b>{{len .NameConflicts}}</b> name conflicts</span>
<span><b>{{len .SimilarNames}}</b> similar pairs</span>
<span><b>{{bytes .Meta.PotentialSavings}}</b> reclaimable</span>
</div>

<h2>Content Duplicates</h2>
{{range $i, $g := .Duplicates}}
<div class="group">
<h4>Group {{inc $i}} ({{len $g.Files}} files, hash {{hex $g.Digest}})</h4>
{{range $g.Files}}<p><strong>{{.BaseName}}</strong> ({{bytes .Size}})<br><span class="path">{{.Path}}</span></p>{{end}}
</div>
{{else}}<p>None.</p>{{end}}

<h2>Name Conflicts</h2>
{{range $i, $c := .NameConflicts}}
<div class="group">
<h4>Group {{inc $i}}: {{$c.BaseName}} ({{len $c.Subgroups}} variants)</h4>
{{range $c.Subgroups}}{{range .Files}}<p><strong>{{.BaseName}}</strong> ({{bytes .Size}}, hash {{hex .Digest}})<br><span class="path">{{.Path}}</span></p>{{end}}{{end}}
</div>
{{else}}<p>None.</p>{{end}}

<h2>Similar Names</h2>
{{if .SimilarNames}}
<table>
<tr><th>File 1</th><th>File 2</th><th>Similarity</th></tr>
{{range .SimilarNames}}
<tr>
<td>{{.A.BaseName}}<br><span class="path">{{.A.Path}}</span></td>
<td>{{.B.BaseName}}<br><span class="path">{{.B.Path}}</span></td>
<td>{{printf "%.1f" .Score}}%</td>
</tr>
{{end}}
</table>
{{else}}<p>None.</p>{{end}}
</body>
</html>
`))

func writeHTML(w io.Writer, r *Report) error {
	return htmlTmpl.Execute(w, r)
}
