package tokenizer

import (
	"strings"
)

// Token is one classified span of a line. Start and End are character offsets within the
// line, which includes its terminator.
type Token struct {
	Scopes []string `json:"scopes"`
	Text   string   `json:"text"`
	Start  int      `json:"start"`
	End    int      `json:"end"`
}

func (t Token) String() string {
	return strings.Join(t.Scopes, " ") + " " + quote(t.Text)
}

func quote(s string) string {
	r := strings.NewReplacer("\n", `\n`, "\r", `\r`, "\t", `\t`)
	return `"` + r.Replace(s) + `"`
}

// SplitLines splits input into lines that keep their terminators (\r\n, \n or \r). The last
// line always ends in a terminator: "\n" is appended when the input does not supply one, so
// input ending in a terminator yields a final line of just "\n".
func SplitLines(input string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(input); i++ {
		switch input[i] {
		case '\n':
			lines = append(lines, input[start:i+1])
			start = i + 1
		case '\r':
			end := i + 1
			if end < len(input) && input[end] == '\n' {
				end++
			}
			lines = append(lines, input[start:end])
			start = end
			i = end - 1
		}
	}
	return append(lines, input[start:]+"\n")
}
