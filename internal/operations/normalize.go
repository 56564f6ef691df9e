package operations

import (
	"context"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/leapstack-labs/leapmix/internal/operation"
	"github.com/leapstack-labs/leapmix/pkg/dataset"
)

// NormalizeText applies Unicode normalization, case folding and trimming to
// string columns. Non-string values are left alone.
type NormalizeText struct{}

type normalizeArgs struct {
	Columns   []string `mapstructure:"columns"`
	Form      string   `mapstructure:"form"`
	Lowercase bool     `mapstructure:"lowercase"`
	Trim      bool     `mapstructure:"trim"`
}

var forms = map[string]norm.Form{
	"NFC":  norm.NFC,
	"NFD":  norm.NFD,
	"NFKC": norm.NFKC,
	"NFKD": norm.NFKD,
}

func (*NormalizeText) Description() string {
	return "unicode-normalize (NFC|NFD|NFKC|NFKD), lowercase and trim text columns"
}

func (*NormalizeText) Apply(ctx context.Context, table *dataset.Table, args operation.Args) (*dataset.Table, error) {
	var a normalizeArgs
	if err := decodeArgs("normalize_text", args, &a); err != nil {
		return nil, err
	}
	if len(a.Columns) == 0 {
		return nil, invalid("normalize_text", "columns is required")
	}
	form, hasForm := forms[strings.ToUpper(a.Form)]
	if a.Form != "" && !hasForm {
		return nil, invalid("normalize_text", "unknown form %q (want NFC, NFD, NFKC or NFKD)", a.Form)
	}

	out := table
	for _, col := range a.Columns {
		values, err := out.Column(col)
		if err != nil {
			return nil, invalid("normalize_text", "%v", err)
		}
		err = forEachRow(ctx, len(values), func(i int) error {
			s, ok := values[i].(string)
			if !ok {
				return nil
			}
			if hasForm {
				s = form.String(s)
			}
			if a.Lowercase {
				// Casers keep state and cannot be shared across goroutines.
				s = cases.Lower(language.Und).String(s)
			}
			if a.Trim {
				s = strings.TrimSpace(s)
			}
			values[i] = s
			return nil
		})
		if err != nil {
			return nil, err
		}
		if out, err = out.WithColumn(col, values); err != nil {
			return nil, err
		}
	}
	return out, nil
}
