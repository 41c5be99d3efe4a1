package port

// TextExtractor converts article HTML into plain text.
type TextExtractor interface {
	ExtractText(html string) string
}
