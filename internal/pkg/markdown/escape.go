// Package markdown escapes text for Telegram's MarkdownV2 parse mode.
package markdown

import "strings"

// ReservedV2 lists every character MarkdownV2 treats as markup outside of
// code entities. Backslash is escaped too so literal backslashes survive.
const ReservedV2 = "\\_*[]()~`>#+-=|{}.!"

var v2Replacer = func() *strings.Replacer {
	pairs := make([]string, 0, len(ReservedV2)*2)
	for _, r := range ReservedV2 {
		pairs = append(pairs, string(r), "\\"+string(r))
	}
	return strings.NewReplacer(pairs...)
}()

// EscapeV2 prefixes every reserved character in s with a backslash.
// Applying it twice escapes the escapes; callers escape field values exactly once.
func EscapeV2(s string) string {
	return v2Replacer.Replace(s)
}
