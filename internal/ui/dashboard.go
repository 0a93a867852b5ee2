package ui

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
)

// Row is one dashboard table entry built from a task snapshot.
type Row struct {
	ID         string
	Status     string
	Percentage float64
	Filename   string
	Size       string
	Speed      string
	Detail     string // error message, when any
}

const pageTop = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>mediafetch</title>
<script src="https://unpkg.com/htmx.org@1.9.12"></script>
<style>
body { font-family: system-ui, sans-serif; margin: 2rem; }
table { border-collapse: collapse; width: 100%; }
th, td { border-bottom: 1px solid #ddd; padding: 0.4rem 0.6rem; text-align: left; }
progress { width: 10rem; }
.status-error { color: #b00020; }
.status-finished { color: #1b5e20; }
</style>
</head>
<body>
<h1>mediafetch</h1>
<div hx-get="/dashboard/rows" hx-trigger="load, every 2s" hx-swap="innerHTML">
`

const pageBottom = `</div>
</body>
</html>
`

// Dashboard renders the full dashboard page with the queue table embedded.
func Dashboard(rows []Row) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, pageTop); err != nil {
			return err
		}
		if err := QueueTable(rows).Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, pageBottom)
		return err
	})
}

// QueueTable renders the task table fragment polled by HTMX.
func QueueTable(rows []Row) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if len(rows) == 0 {
			_, err := io.WriteString(w, `<p>No tasks yet.</p>`)
			return err
		}
		if _, err := io.WriteString(w,
			`<table id="queue"><thead><tr><th>Task</th><th>Status</th><th>Progress</th><th>File</th><th>Size</th><th>Speed</th></tr></thead><tbody>`); err != nil {
			return err
		}
		for _, r := range rows {
			file := TruncateWithEllipsis(r.Filename, 48)
			detail := r.Status
			if r.Detail != "" {
				detail = r.Detail
			}
			if _, err := fmt.Fprintf(w,
				`<tr><td title="%s">%s</td><td class="status-%s" title="%s">%s</td><td><progress max="100" value="%.1f"></progress> %.1f%%</td><td>%s</td><td>%s</td><td>%s</td></tr>`,
				templ.EscapeString(r.ID),
				templ.EscapeString(ShortID(r.ID)),
				templ.EscapeString(r.Status),
				templ.EscapeString(detail),
				templ.EscapeString(r.Status),
				r.Percentage, r.Percentage,
				templ.EscapeString(file),
				templ.EscapeString(r.Size),
				templ.EscapeString(r.Speed),
			); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, `</tbody></table>`)
		return err
	})
}
