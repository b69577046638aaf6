package gateway

import (
	"html/template"
	"net/http"
)

type loginPageData struct {
	LoginPath      string
	From           string
	Username       string
	Error          string
	Registered     bool
	GoogleClientID string
}

var loginPage = template.Must(template.New("login").Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Sign in</title>
</head>
<body>
<main>
  <h1>Sign in</h1>
  {{if .Registered}}<p class="notice">Account created. You can sign in now.</p>{{end}}
  {{if .Error}}<p class="error" role="alert">{{.Error}}</p>{{end}}
  <form method="post" action="{{.LoginPath}}">
    <input type="hidden" name="from" value="{{.From}}">
    <label>Username <input name="username" value="{{.Username}}" autocomplete="username" required></label>
    <label>Password <input name="password" type="password" autocomplete="current-password" required></label>
    <button type="submit">Sign in</button>
  </form>
  {{if .GoogleClientID}}
  <div id="g_id_onload" data-client_id="{{.GoogleClientID}}" data-login_uri="/auth/google" data-ux_mode="redirect"></div>
  <div class="g_id_signin" data-type="standard"></div>
  <script src="https://accounts.google.com/gsi/client" async></script>
  {{end}}
  <h2>New here?</h2>
  <form method="post" action="/signup">
    <label>Username <input name="username" autocomplete="username" required></label>
    <label>Email <input name="email" type="email" autocomplete="email" required></label>
    <label>Password <input name="password" type="password" autocomplete="new-password" required></label>
    <button type="submit">Create account</button>
  </form>
</main>
</body>
</html>
`))

func renderLogin(w http.ResponseWriter, status int, data loginPageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = loginPage.Execute(w, data)
}
