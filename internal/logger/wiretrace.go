package logger

import (
	"io"
	"log"
	"strings"
	"sync"
)

var (
	wireMu       sync.Mutex
	wireLog      *log.Logger
	wireDumpBody bool
)

// SetWireWriter directs the wire trace to w; nil disables tracing.
// Separate from the main log so raw platform payloads never land in
// normal output.
func SetWireWriter(w io.Writer) {
	wireMu.Lock()
	defer wireMu.Unlock()
	if w == nil {
		wireLog = nil
		return
	}
	wireLog = log.New(w, "", log.LstdFlags)
}

// EnableWireBodyDump includes response bodies in the trace. Off by
// default: bodies can be large and may echo account identifiers.
func EnableWireBodyDump(enabled bool) {
	wireMu.Lock()
	wireDumpBody = enabled
	wireMu.Unlock()
}

type wireSection struct {
	Title string
	Body  string
}

func logWire(direction, endpoint string, sections []wireSection) {
	wireMu.Lock()
	logger := wireLog
	wireMu.Unlock()
	if logger == nil {
		return
	}
	var b strings.Builder
	b.WriteString("[WIRE]")
	if direction != "" {
		b.WriteString("[")
		b.WriteString(direction)
		b.WriteString("]")
	}
	if endpoint != "" {
		b.WriteString("[")
		b.WriteString(endpoint)
		b.WriteString("]")
	}
	b.WriteString("\n")
	for _, sec := range sections {
		t := strings.TrimSpace(sec.Title)
		if t == "" {
			t = "CONTENT"
		}
		b.WriteString("--- ")
		b.WriteString(t)
		b.WriteString(" ---\n")
		body := sec.Body
		b.WriteString(body)
		if !strings.HasSuffix(body, "\n") {
			b.WriteString("\n")
		}
	}
	b.WriteString("=====\n")
	logger.Print(b.String())
}

// LogWireRequest traces one outgoing platform call.
func LogWireRequest(method, endpoint, payload string) {
	sections := []wireSection{{Title: "REQUEST", Body: method + " " + endpoint}}
	if wireDumpBody && strings.TrimSpace(payload) != "" {
		sections = append(sections, wireSection{Title: "BODY", Body: payload})
	}
	logWire("out", endpoint, sections)
}

// LogWireResponse traces the platform's answer.
func LogWireResponse(method, endpoint, status, body string) {
	sections := []wireSection{{Title: "STATUS", Body: status}}
	if wireDumpBody && strings.TrimSpace(body) != "" {
		sections = append(sections, wireSection{Title: "BODY", Body: body})
	}
	logWire("in", endpoint, sections)
}
