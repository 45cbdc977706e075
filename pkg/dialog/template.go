package dialog

import (
	"bytes"
	"fmt"
	"io"
	"sync"
	"text/template"
)

const maxTemplateOutput = 64 * 1024

// templateCache caches parsed templates to avoid re-parsing on every call.
var templateCache sync.Map

// summaryCtx is the data available to summary templates.
//
//	{{.Fields.name}}            a single answer by field name
//	{{range .Answers}}...{{end}} answers in step order
type summaryCtx struct {
	Dialog  string
	Key     string
	Fields  map[string]string
	Answers []Answer
}

func newSummaryCtx(state ConversationState) summaryCtx {
	return summaryCtx{
		Dialog:  state.Dialog,
		Key:     state.Key,
		Fields:  state.FieldMap(),
		Answers: state.Answers,
	}
}

// RenderSummary renders a summary template against the collected answers.
func RenderSummary(tmpl string, state ConversationState) (string, error) {
	return renderTemplate(tmpl, newSummaryCtx(state))
}

// limitWriter caps output from template.Execute.
type limitWriter struct {
	w       io.Writer
	n       int64
	written int64
}

func (lw *limitWriter) Write(p []byte) (int, error) {
	if lw.written+int64(len(p)) > lw.n {
		allowed := lw.n - lw.written
		if allowed > 0 {
			n, err := lw.w.Write(p[:allowed])
			lw.written += int64(n)
			if err != nil {
				return n, err
			}
		}
		return 0, fmt.Errorf("template output exceeds %d bytes", lw.n)
	}
	n, err := lw.w.Write(p)
	lw.written += int64(n)
	return n, err
}

func parseTemplate(tmplStr string) (*template.Template, error) {
	if cached, ok := templateCache.Load(tmplStr); ok {
		return cached.(*template.Template), nil
	}
	tmpl, err := template.New("").Option("missingkey=zero").Parse(tmplStr)
	if err != nil {
		return nil, err
	}
	templateCache.Store(tmplStr, tmpl)
	return tmpl, nil
}

func renderTemplate(tmplStr string, data any) (string, error) {
	tmpl, err := parseTemplate(tmplStr)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	lw := &limitWriter{w: &buf, n: maxTemplateOutput}
	if err := tmpl.Execute(lw, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
