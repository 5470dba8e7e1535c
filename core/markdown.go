package core

import (
	"gitlab.com/golang-commonmark/markdown"
)

var resolutionRenderer = markdown.New(
	markdown.HTML(false), // resolution texts are user input
	markdown.Linkify(true),
	markdown.Typographer(true),
	markdown.MaxNesting(10),
)

// RenderResolution renders a resolution text from CommonMark to HTML.
func RenderResolution(text string) string {
	return resolutionRenderer.RenderToString([]byte(text))
}
