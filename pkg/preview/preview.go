package preview

import (
	"strings"

	"github.com/russross/blackfriday/v2"
)

// Text flattens a message body to plain text and truncates it to max
// runes, appending an ellipsis when the original was longer.
func Text(body string, max int) string {
	plain := Flatten(body)
	runes := []rune(plain)
	if len(runes) <= max {
		return plain
	}
	return string(runes[:max]) + "…"
}

// Flatten renders markdown in a message body and keeps only the literal
// text, with whitespace collapsed to single spaces.
func Flatten(body string) string {
	if strings.TrimSpace(body) == "" {
		return ""
	}

	md := blackfriday.New(blackfriday.WithExtensions(blackfriday.CommonExtensions))
	root := md.Parse([]byte(body))

	var b strings.Builder
	root.Walk(func(node *blackfriday.Node, entering bool) blackfriday.WalkStatus {
		if !entering {
			switch node.Type {
			case blackfriday.Paragraph, blackfriday.Heading, blackfriday.Item, blackfriday.BlockQuote:
				b.WriteByte(' ')
			}
			return blackfriday.GoToNext
		}

		switch node.Type {
		case blackfriday.Text, blackfriday.Code:
			b.Write(node.Literal)
		case blackfriday.CodeBlock:
			b.Write(node.Literal)
			b.WriteByte(' ')
		case blackfriday.Softbreak, blackfriday.Hardbreak:
			b.WriteByte(' ')
		}
		return blackfriday.GoToNext
	})

	return strings.Join(strings.Fields(b.String()), " ")
}
