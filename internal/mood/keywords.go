package mood

import "strings"

// keywords is the canonical detection list. Order matters: the first
// substring hit wins, and the self-harm terms sit at the end so an everyday
// mood word in the same message takes precedence while a message containing
// only a self-harm term is still captured.
var keywords = []string{
	"happy",
	"sad",
	"angry",
	"excited",
	"tired",
	"anxious",
	"suicidal",
	"suicide",
	"kill",
	"killing",
	"dead",
}

// Detect reports the first keyword contained in the message,
// case-insensitively, and whether any matched.
func Detect(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return kw, true
		}
	}
	return "", false
}
