package render

import (
	"context"
	"fmt"
	"html"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"dealflow-billing/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.DocumentRenderer = (*HTMLRenderer)(nil)

// HTMLRenderer writes layouts as self-contained HTML documents, one
// file per invoice. Writes go through a temp file and rename, so a
// crash mid-render never leaves a half-written document at the final
// path.
type HTMLRenderer struct {
	dir string
	// entropy is shared by every Render call; pool workers render
	// concurrently, so the monotonic source must be the locked variant.
	entropy ulid.MonotonicReader
	log     *zerolog.Logger
}

func NewHTMLRenderer(dir string, logger *zerolog.Logger) (*HTMLRenderer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create document dir: %w", err)
	}
	l := logger.With().Str("component", "HTMLRenderer").Logger()
	return &HTMLRenderer{
		dir: dir,
		entropy: &ulid.LockedMonotonicReader{
			MonotonicReader: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
		},
		log: &l,
	}, nil
}

func (r *HTMLRenderer) Render(ctx context.Context, name string, layout *adapter.DocumentLayout) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	final := filepath.Join(r.dir, name+".html")
	tmp := filepath.Join(r.dir, "."+ulid.MustNew(ulid.Timestamp(time.Now()), r.entropy).String()+".tmp")

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("open temp document: %w", err)
	}
	defer os.Remove(tmp)

	if _, err := f.WriteString(renderHTML(layout)); err != nil {
		f.Close()
		return "", fmt.Errorf("write document: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return "", fmt.Errorf("sync document: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp, final); err != nil {
		return "", fmt.Errorf("publish document: %w", err)
	}

	r.log.Debug().Str("path", final).Msg("document rendered")
	return final, nil
}

func renderHTML(layout *adapter.DocumentLayout) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>")
	b.WriteString(html.EscapeString(layout.Title))
	b.WriteString("</title></head><body>\n")
	fmt.Fprintf(&b, "<h1>%s</h1>\n", html.EscapeString(layout.Title))

	for _, blk := range layout.Blocks {
		text := html.EscapeString(blk.Text)
		if blk.Bold {
			text = "<strong>" + text + "</strong>"
		}
		if blk.Size > 0 {
			fmt.Fprintf(&b, "<p style=\"font-size:%dpt\">%s</p>\n", blk.Size, text)
		} else {
			fmt.Fprintf(&b, "<p>%s</p>\n", text)
		}
	}

	for _, tbl := range layout.Tables {
		b.WriteString("<table border=\"1\" cellspacing=\"0\" cellpadding=\"4\">\n<tr>")
		for _, h := range tbl.Header {
			fmt.Fprintf(&b, "<th>%s</th>", html.EscapeString(h))
		}
		b.WriteString("</tr>\n")
		for _, row := range tbl.Rows {
			b.WriteString("<tr>")
			for _, cell := range row {
				fmt.Fprintf(&b, "<td>%s</td>", html.EscapeString(cell))
			}
			b.WriteString("</tr>\n")
		}
		b.WriteString("</table>\n")
	}

	if layout.Footer != "" {
		fmt.Fprintf(&b, "<footer><small>%s</small></footer>\n", html.EscapeString(layout.Footer))
	}
	b.WriteString("</body></html>\n")
	return b.String()
}
