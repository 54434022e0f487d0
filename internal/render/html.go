package render

import (
	"bytes"
	"context"
	"io"

	"github.com/a-h/templ"
)

// Text returns a component writing s with HTML escaping applied.
func Text(s string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, templ.EscapeString(s))
		return err
	})
}

// Safe returns a component writing s verbatim. Only use it for markup that is
// already escaped or fully trusted.
func Safe(s string) templ.Component {
	return templ.Raw(s)
}

// Join renders components one after another.
func Join(cs ...templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		for _, c := range cs {
			if c == nil {
				continue
			}
			if err := c.Render(ctx, w); err != nil {
				return err
			}
		}
		return nil
	})
}

// String renders c into a string.
func String(ctx context.Context, c templ.Component) (string, error) {
	if c == nil {
		return "", nil
	}
	var buf bytes.Buffer
	if err := c.Render(ctx, &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}
