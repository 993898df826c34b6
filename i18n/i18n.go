// Package i18n translates mdtrans's own user-facing messages.
//
// Catalogs are gettext .po files embedded from locales/{lang}/LC_MESSAGES/mdtrans.po
// and loaded with gotext. Messages without a translation pass through as-is.
//
//	i18n.Init("")  // LANGUAGE, LC_ALL, LC_MESSAGES, LANG
//	logInfo(i18n.N("%d document translated", "%d documents translated", n), n)
package i18n

import (
	"embed"
	"os"
	"strings"

	"github.com/leonelquinteros/gotext"
)

//go:embed all:locales
var locales embed.FS

const domain = "mdtrans"

var (
	po   *gotext.Locale
	lang = "en"
)

// Init loads the catalog for lang, or for the environment's language when
// lang is empty. It should run once before any T or N call.
func Init(l string) {
	if l == "" {
		l = detectLanguage()
	}
	lang = l

	po = gotext.NewLocaleFSWithPath(l, locales, "locales")
	po.AddDomain(domain)
	po.SetDomain(domain)
}

// Lang returns the language selected by Init.
func Lang() string { return lang }

// T translates msgid.
func T(msgid string) string {
	if po == nil {
		return msgid
	}
	return po.Get(msgid)
}

// N translates a message with plural forms chosen by n.
func N(singular, plural string, n int) string {
	if po == nil {
		if n == 1 {
			return singular
		}
		return plural
	}
	return po.GetN(singular, plural, n)
}

// detectLanguage follows GNU gettext precedence: LANGUAGE, LC_ALL,
// LC_MESSAGES, LANG. The C and POSIX locales mean no translation.
func detectLanguage() string {
	for _, env := range []string{"LANGUAGE", "LC_ALL", "LC_MESSAGES", "LANG"} {
		val := os.Getenv(env)
		if env == "LANGUAGE" {
			val, _, _ = strings.Cut(val, ":")
		}
		// ru_RU.UTF-8, de_DE@euro
		if i := strings.IndexAny(val, ".@"); i >= 0 {
			val = val[:i]
		}
		if val == "" || val == "C" || val == "POSIX" {
			continue
		}
		return val
	}
	return "en"
}
