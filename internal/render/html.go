// Package render turns report markdown into printable HTML and PDF.
package render

import (
	"fmt"
	"html"
	"os"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

// Meta is shown above the report body. Empty fields are omitted.
type Meta struct {
	Title    string
	ReportID string
	Date     string
	Source   string
}

const baseCSS = `
html,body,*{-webkit-print-color-adjust:exact !important;print-color-adjust:exact !important;}
body{font-family:"Noto Sans CJK SC","PingFang SC","Microsoft YaHei",sans-serif;color:#1c1917;background:#fff;margin:0;padding:0.6rem;line-height:1.55;}
.report-wrap{max-width:960px;margin:0 auto;}
.report-meta{color:#44403c;font-size:0.85rem;margin-bottom:1rem;border-bottom:1px solid #d6d3d1;padding-bottom:0.5rem;}
.report-meta strong{color:#1c1917;}
.report-html h1{font-size:1.6rem;text-align:center;}
.report-html h2{font-size:1.2rem;border-left:4px solid #b91c1c;padding-left:0.5rem;margin-top:1.4rem;}
.report-html h3{font-size:1rem;color:#44403c;margin-bottom:0.2rem;}
.report-html p{white-space:pre-line;margin-top:0.2rem;}
.report-html hr{border:0;border-top:1px dashed #a8a29e;margin:1.2rem 0;}
.report-html table{width:100%;border-collapse:collapse;border:1px solid #a8a29e;font-size:0.8rem;}
.report-html th,.report-html td{border:1px solid #a8a29e;padding:0.35rem 0.45rem;text-align:left;vertical-align:top;}
h2[data-page-break-before="true"]{break-before:page;page-break-before:always;}
@media print{ @page{size:A4;margin:12mm;} body{padding:0;} .report-wrap{max-width:none;} }
`

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(gmhtml.WithHardWraps()),
)

// HTML renders md into a standalone document. extraCSS is appended after the
// built-in stylesheet.
func HTML(md string, meta Meta, extraCSS string) (string, error) {
	var content strings.Builder
	if err := markdown.Convert([]byte(md), &content); err != nil {
		return "", fmt.Errorf("markdown convert: %w", err)
	}
	title := meta.Title
	if title == "" {
		title = "Conference Report"
	}
	return "<!doctype html><html><head><meta charset='utf-8'><title>" + html.EscapeString(title) + "</title>" +
		"<style>" + baseCSS + extraCSS + "</style></head><body>" +
		"<div class='report-wrap'>" +
		"<div class='report-meta'>" + metaHTML(meta) + "</div>" +
		"<div class='report-html'>" + applyPrintLayoutHooks(content.String()) + "</div>" +
		"</div></body></html>", nil
}

func metaHTML(m Meta) string {
	var out strings.Builder
	for _, f := range []struct{ label, value string }{
		{"Report", m.ReportID},
		{"Date", m.Date},
		{"Source", m.Source},
	} {
		if v := strings.TrimSpace(f.value); v != "" {
			out.WriteString("<div><strong>" + f.label + ":</strong> " + html.EscapeString(v) + "</div>")
		}
	}
	return out.String()
}

var highlightsHeading = regexp.MustCompile(`<h1([^>]*)>\s*每日精选内容\s*</h1>`)

// applyPrintLayoutHooks starts the highlights section on a new page when a
// report and its highlights are printed together.
func applyPrintLayoutHooks(contentHTML string) string {
	return highlightsHeading.ReplaceAllString(contentHTML, `<h2$1 data-page-break-before="true">每日精选内容</h2>`)
}

// LoadCSS reads an optional stylesheet; an empty path yields "".
func LoadCSS(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read stylesheet: %w", err)
	}
	return string(b), nil
}
