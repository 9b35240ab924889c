package main

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
)

// State-conflict rejections. These are surfaced only to the offending
// connection and never mutate shared state.
var (
	errNotHost     = errors.New("only the host can do that")
	errNotJoined   = errors.New("join the lobby first")
	errWrongPhase  = errors.New("not allowed in the current phase")
	errNoQuestions = errors.New("no questions available for this lobby's filter")
)

func logf(cfg *Config, format string, args ...any) {
	if !cfg.verbose {
		return
	}

	log.Printf("%s | "+format, append([]any{time.Now().Format(logDate)}, args...)...)
}

// warnf logs regardless of verbosity. Used for conditions worth surfacing
// even on a quiet server, like malformed corpus entries.
func warnf(format string, args ...any) {
	log.Printf("%s | WARN: "+format, append([]any{time.Now().Format(logDate)}, args...)...)
}

func newPage(title, body string) string {
	var htmlBody strings.Builder

	htmlBody.WriteString(`<!DOCTYPE html><html lang="en"><head>`)
	htmlBody.WriteString(`<style>`)
	htmlBody.WriteString(`html,body,a{display:block;height:100%;width:100%;text-decoration:none;color:inherit;cursor:auto;}</style>`)
	htmlBody.WriteString(fmt.Sprintf("<title>%s</title></head>", title))
	htmlBody.WriteString(fmt.Sprintf("<body><a href=\"/\">%s</a></body></html>", body))

	return htmlBody.String()
}
