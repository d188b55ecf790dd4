package syncer

import "strings"

// scriptEscaper rewrites characters that could break out of the
// single-quoted string literals the replay scripts embed captured text in.
// Backslash must be handled before the characters it escapes; the
// single-pass replacer guarantees no produced backslash is re-escaped.
// Backtick and dollar are included to defeat template-literal breakout
// (` and ${...}) should a generated snippet ever be wrapped in one.
var scriptEscaper = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\'`,
	"`", "\\`",
	`$`, `\$`,
	"\n", `\n`,
	"\r", `\r`,
)

// EscapeForScript makes an arbitrary captured string (selector, input
// value) safe to interpolate into a script evaluated in the right page.
// Replay code must never embed untrusted text without it.
func EscapeForScript(s string) string {
	return scriptEscaper.Replace(s)
}
