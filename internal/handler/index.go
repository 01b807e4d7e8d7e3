package handler

import "net/http"

const indexPage = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>Quest Bot</title>
  <style>
    body { font-family: sans-serif; max-width: 720px; margin: 40px auto; color: #222; }
    code { background: #f2f2f2; padding: 2px 4px; border-radius: 3px; }
    li { margin: 6px 0; }
  </style>
</head>
<body>
  <h1>Quest Bot</h1>
  <p>Automates quest platform tasks per registered session:
     status, points, task claiming and daily check-in.</p>
  <ul>
    <li><code>POST /api/sessions</code> — register a session</li>
    <li><code>PUT /api/sessions/{id}/credential</code> — set session cookie or wallet key</li>
    <li><code>POST /api/sessions/{id}/auto</code> — toggle auto mode</li>
    <li><code>GET /api/sessions/{id}/status</code> — account status</li>
    <li><code>GET /api/sessions/{id}/points</code> — points balance</li>
    <li><code>GET /api/sessions/{id}/tasks</code> — task list</li>
    <li><code>POST /api/sessions/{id}/tasks/complete</code> — claim all manual tasks</li>
    <li><code>POST /api/sessions/{id}/checkin</code> — daily check-in</li>
  </ul>
</body>
</html>
`

// Index отдаёт статическую страницу с описанием API.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	_, _ = w.Write([]byte(indexPage))
}
