package grid

import (
	"cmp"
	"math"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// CompareOptions tunes the generic comparator.
type CompareOptions struct {
	NullsLast  bool         // Rank nil after every other value
	EmptyLast  bool         // Rank "" after every other string
	Locale     language.Tag // Collation locale; the zero value is language.Und
	IgnoreCase bool
	Numeric    bool // Collate digit runs by numeric value ("a2" < "a10")
}

// Numberer is implemented by values with a natural numeric form. The generic
// comparator uses it to order values that are neither strings nor numbers.
type Numberer interface {
	Number() (float64, bool)
}

// Comparer is the generic column comparator. It orders heterogeneous values
// with a fixed policy:
//
//  1. nil ranks first (last with NullsLast); two nils are equal.
//  2. "" ranks first (last with EmptyLast) among strings.
//  3. Two strings compare with locale-aware collation.
//  4. Two numbers compare arithmetically; NaN compares equal to everything.
//     That ordering is not transitive: a stable sort leaves NaN where it was,
//     and values on either side of a NaN may stay unsorted relative to each
//     other ([3, NaN, 1] is already "sorted").
//  5. Two times compare chronologically; otherwise values with a numeric form
//     (times, booleans, Numberer) compare by that form.
//  6. Anything else is incomparable and treated as equal.
//
// Invalid pgtype values count as nil. A Comparer is not safe for concurrent
// use.
type Comparer struct {
	opts     CompareOptions
	collator *collate.Collator
	mixed    int
}

// NewComparer creates a comparer for opts.
func NewComparer(opts CompareOptions) *Comparer {
	var copts []collate.Option
	if opts.IgnoreCase {
		copts = append(copts, collate.IgnoreCase)
	}
	if opts.Numeric {
		copts = append(copts, collate.Numeric)
	}
	return &Comparer{
		opts:     opts,
		collator: collate.New(opts.Locale, copts...),
	}
}

// Compare returns -1, 0 or +1.
func (c *Comparer) Compare(a, b any) int {
	r, _ := c.compare(a, b)
	return r
}

// Incomparable returns how many incomparable pairs were seen since the last
// call and resets the count.
func (c *Comparer) Incomparable() int {
	n := c.mixed
	c.mixed = 0
	return n
}

func (c *Comparer) compare(a, b any) (int, bool) {
	a, b = normalize(a), normalize(b)

	switch an, bn := a == nil, b == nil; {
	case an && bn:
		return 0, true
	case an:
		return c.nullRank(), true
	case bn:
		return -c.nullRank(), true
	}

	if as, ok := a.(string); ok {
		if bs, ok := b.(string); ok {
			return c.compareStrings(as, bs), true
		}
	}

	if af, ok := number(a); ok {
		if bf, ok := number(b); ok {
			return compareFloats(af, bf), true
		}
	}

	if at, ok := a.(time.Time); ok {
		if bt, ok := b.(time.Time); ok {
			return at.Compare(bt), true
		}
	}

	if af, ok := coerce(a); ok {
		if bf, ok := coerce(b); ok {
			return compareFloats(af, bf), true
		}
	}

	c.mixed++
	return 0, false
}

func (c *Comparer) nullRank() int {
	if c.opts.NullsLast {
		return 1
	}
	return -1
}

func (c *Comparer) compareStrings(a, b string) int {
	switch {
	case a == "" && b == "":
		return 0
	case a == "":
		if c.opts.EmptyLast {
			return 1
		}
		return -1
	case b == "":
		if c.opts.EmptyLast {
			return -1
		}
		return 1
	}
	return c.collator.CompareString(a, b)
}

func compareFloats(a, b float64) int {
	if math.IsNaN(a) || math.IsNaN(b) {
		return 0
	}
	return cmp.Compare(a, b)
}

// normalize unwraps pointers and database values into plain Go values.
// Invalid (NULL) database values become nil.
func normalize(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case pgtype.Text:
		if !x.Valid {
			return nil
		}
		return x.String
	case pgtype.Numeric:
		if !x.Valid {
			return nil
		}
		if x.NaN {
			return math.NaN()
		}
		f, err := x.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	case pgtype.Int2:
		if !x.Valid {
			return nil
		}
		return int64(x.Int16)
	case pgtype.Int4:
		if !x.Valid {
			return nil
		}
		return int64(x.Int32)
	case pgtype.Int8:
		if !x.Valid {
			return nil
		}
		return x.Int64
	case pgtype.Float8:
		if !x.Valid {
			return nil
		}
		return x.Float64
	case pgtype.Bool:
		if !x.Valid {
			return nil
		}
		return x.Bool
	case pgtype.Date:
		if !x.Valid {
			return nil
		}
		return x.Time
	case pgtype.Timestamp:
		if !x.Valid {
			return nil
		}
		return x.Time
	case pgtype.Timestamptz:
		if !x.Valid {
			return nil
		}
		return x.Time
	case pgtype.UUID:
		if !x.Valid {
			return nil
		}
		return uuid.UUID(x.Bytes).String()
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		return normalize(rv.Elem().Interface())
	}
	return v
}

// number reports the value of Go numeric kinds.
func number(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}

// coerce reports the numeric form of dates, booleans and Numberers.
func coerce(v any) (float64, bool) {
	switch x := v.(type) {
	case time.Time:
		return float64(x.UnixMilli()), true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case Numberer:
		return x.Number()
	}
	return number(v)
}
