package upstream

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"DailyBriefing/internal/apperr"
)

const (
	maxDetailBytes = 4096
	maxDetailRunes = 200
)

// StatusError builds an upstream error for a non-success response, consuming part of its body.
func StatusError(service, code string, resp *http.Response) error {
	detail := Detail(resp)
	if detail == "" {
		return apperr.Upstream(code, fmt.Errorf("%s returned %s", service, resp.Status))
	}
	return apperr.Upstream(code, fmt.Errorf("%s returned %s: %s", service, resp.Status, detail))
}

// Detail extracts a short human-readable reason from an error response.
// JSON bodies yield their error message, HTML pages their title or visible text.
func Detail(resp *http.Response) string {
	if resp == nil || resp.Body == nil {
		return ""
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxDetailBytes))
	if err != nil || len(bytes.TrimSpace(raw)) == 0 {
		return ""
	}

	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	switch {
	case strings.Contains(contentType, "html"):
		return htmlDetail(raw)
	case strings.Contains(contentType, "json"):
		if msg := jsonDetail(raw); msg != "" {
			return msg
		}
	}
	return collapse(string(raw))
}

func htmlDetail(raw []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return collapse(string(raw))
	}
	title := collapse(doc.Find("title").First().Text())
	if title != "" {
		return title
	}
	return collapse(doc.Find("body").Text())
}

// jsonDetail understands the error shapes used by Google, Telegram and OpenAI.
func jsonDetail(raw []byte) string {
	var body struct {
		Error            json.RawMessage `json:"error"`
		ErrorDescription string          `json:"error_description"`
		Description      string          `json:"description"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return ""
	}
	if body.Description != "" {
		return body.Description
	}
	if body.ErrorDescription != "" {
		return body.ErrorDescription
	}
	if len(body.Error) == 0 {
		return ""
	}
	var nested struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body.Error, &nested); err == nil && nested.Message != "" {
		return nested.Message
	}
	var plain string
	if err := json.Unmarshal(body.Error, &plain); err == nil {
		return plain
	}
	return ""
}

func collapse(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) > maxDetailRunes {
		s = string([]rune(s)[:maxDetailRunes]) + "..."
	}
	return s
}
