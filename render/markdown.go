package render

import (
	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
)

// newMarkdownConverter creates a reusable, goroutine-safe Converter.
//
//   - base plugin: drops script, style, head and comments.
//   - commonmark plugin: headings, lists, links and images.
//   - table plugin: minimal cell padding.
func newMarkdownConverter() *converter.Converter {
	return converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(
				table.WithCellPaddingBehavior(table.CellPaddingBehaviorMinimal),
			),
		),
	)
}

// toMarkdown converts an HTML fragment. pageURL resolves any relative
// href or src left in the fragment.
func toMarkdown(conv *converter.Converter, html, pageURL string) (string, error) {
	if pageURL == "" {
		return conv.ConvertString(html)
	}
	return conv.ConvertString(html, converter.WithDomain(pageURL))
}
