package utils

import (
	"strconv"
	"strings"
	"time"
	"unicode"
)

// Slugify lowercases a title and collapses every run of
// non-alphanumeric characters into a single hyphen.
func Slugify(s string) string {
	var b strings.Builder
	lastHyphen := true // suppress a leading hyphen
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastHyphen = false
		} else if !lastHyphen {
			b.WriteRune('-')
			lastHyphen = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// UniqueSlug appends the epoch milliseconds of t so that two articles
// with identical titles still land on distinct slugs.
func UniqueSlug(title string, t time.Time) string {
	slug := Slugify(title)
	if slug == "" {
		slug = "article"
	}
	return slug + "-" + strconv.FormatInt(t.UnixMilli(), 10)
}
