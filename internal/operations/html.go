package operations

import (
	"context"
	"fmt"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/leapstack-labs/leapmix/internal/operation"
	"github.com/leapstack-labs/leapmix/pkg/dataset"
)

// HTMLToMarkdown converts an HTML column to Markdown, in place or into target.
type HTMLToMarkdown struct{}

type htmlArgs struct {
	Column string `mapstructure:"column"`
	Target string `mapstructure:"target"`
}

func (*HTMLToMarkdown) Description() string {
	return "convert the HTML in `column` to Markdown, writing to `target` (default: column)"
}

func (*HTMLToMarkdown) Apply(ctx context.Context, table *dataset.Table, args operation.Args) (*dataset.Table, error) {
	var a htmlArgs
	if err := decodeArgs("html_to_markdown", args, &a); err != nil {
		return nil, err
	}
	if a.Column == "" {
		return nil, invalid("html_to_markdown", "column is required")
	}
	if a.Target == "" {
		a.Target = a.Column
	}

	values, err := table.Column(a.Column)
	if err != nil {
		return nil, invalid("html_to_markdown", "%v", err)
	}
	err = forEachRow(ctx, len(values), func(i int) error {
		html, ok := values[i].(string)
		if !ok {
			return nil
		}
		md, err := htmltomarkdown.ConvertString(html)
		if err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
		values[i] = md
		return nil
	})
	if err != nil {
		return nil, err
	}
	return table.WithColumn(a.Target, values)
}
