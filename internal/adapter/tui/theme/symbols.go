package theme

import (
	"os"
	"strings"
)

// SymbolSet holds the glyphs the TUI draws, allowing runtime switching
// between Unicode and ASCII fallback sets.
type SymbolSet struct {
	Cursor   string
	Ellipsis string
	Loading  string
	Error    string
	Bullet   string
}

var unicodeSymbols = SymbolSet{
	Cursor:   "█", // █
	Ellipsis: "…", // …
	Loading:  "◌", // ◌
	Error:    "✗", // ✗
	Bullet:   "•", // •
}

var asciiSymbols = SymbolSet{
	Cursor:   "_",
	Ellipsis: "~",
	Loading:  "...",
	Error:    "[ERR]",
	Bullet:   "*",
}

// Symbols is the active symbol set, chosen by InitSymbols.
var Symbols = unicodeSymbols

// DetectUnicodeSupport checks whether the terminal likely supports Unicode.
// Priority: TELEHAUNT_ASCII_SYMBOLS env (explicit override) > locale detection.
func DetectUnicodeSupport() bool {
	// Explicit override: set TELEHAUNT_ASCII_SYMBOLS=1 to force ASCII.
	if v := os.Getenv("TELEHAUNT_ASCII_SYMBOLS"); v == "1" || strings.EqualFold(v, "true") {
		return false
	}

	for _, key := range []string{"LC_ALL", "LC_CTYPE", "LANG"} {
		val := strings.ToLower(os.Getenv(key))
		if strings.Contains(val, "utf-8") || strings.Contains(val, "utf8") {
			return true
		}
	}

	// Most modern terminals support Unicode; default to true.
	return true
}

// InitSymbols sets Symbols based on terminal capabilities. Called
// automatically by init(), but can be called again if the environment
// changes (e.g., in tests).
func InitSymbols() {
	Symbols = unicodeSymbols
	if !DetectUnicodeSupport() {
		Symbols = asciiSymbols
	}
}

func init() {
	InitSymbols()
}
