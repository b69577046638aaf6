package middleware

import (
	"bytes"
	"html/template"
	"net/http"

	storeAuth "github.com/MrEthical07/storeAuth"
)

var deniedPage = template.Must(template.New("denied").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>Access denied</title></head>
<body>
<main>
<h1>Access denied</h1>
<p>Your account role ({{.Role}}) cannot open this page.{{if .Allowed}} It requires {{range $i, $r := .Allowed}}{{if $i}} or {{end}}{{$r}}{{end}}.{{end}}</p>
<p>Ask an administrator if you need access.</p>
<p><a href="/" onclick="history.back(); return false;">Go back</a></p>
</main>
</body>
</html>
`))

type deniedData struct {
	Role    storeAuth.Role
	Allowed []storeAuth.Role
}

func renderDenied(w http.ResponseWriter, role storeAuth.Role, allowed []storeAuth.Role) {
	var buf bytes.Buffer
	if err := deniedPage.Execute(&buf, deniedData{Role: role, Allowed: allowed}); err != nil {
		http.Error(w, "access denied", http.StatusForbidden)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusForbidden)
	_, _ = w.Write(buf.Bytes())
}
