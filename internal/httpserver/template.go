package httpserver

import "html/template"

var defaultTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{with index .Attributes "title"}}{{.}}{{else}}{{.Route}}{{end}}</title>
{{- with index .Attributes "description"}}
<meta name="description" content="{{.}}">
{{- end}}
</head>
<body>
{{- with .Form}}
<form action="{{.Action}}" method="{{.Method}}"{{if not .Validate}} novalidate{{end}}>
{{- range .Fields}}
{{- if eq .Type "submit"}}
<button type="submit">{{.Value}}</button>
{{- else if eq .Type "hidden"}}
<input type="hidden" name="{{.Name}}" value="{{.Value}}">
{{- else if eq .Type "textarea"}}
<label>{{.Label}}<textarea name="{{.Name}}"{{if .Required}} required{{end}}>{{.Value}}</textarea></label>
{{- else}}
<label>{{.Label}}<input type="{{if .Type}}{{.Type}}{{else}}text{{end}}" name="{{.Name}}" value="{{.Value}}"{{if .Required}} required{{end}}></label>
{{- end}}
{{- end}}
</form>
{{- end}}
</body>
</html>
`))
