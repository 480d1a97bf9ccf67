package dataset

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Bound is one side of a split slice: an absolute row number or a percentage.
// A zero Bound with Set false means "unbounded".
type Bound struct {
	Set     bool
	Value   float64
	Percent bool
}

// Split is a parsed split expression such as "train", "train[:10%]" or "test[100:200]".
type Split struct {
	Name  string
	Start Bound
	End   Bound
}

// ParseSplit parses name[start:end]. Either bound may be omitted; bounds are
// non-negative integers or percentages.
func ParseSplit(expr string) (Split, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return Split{}, fmt.Errorf("empty split")
	}
	open := strings.IndexByte(expr, '[')
	if open < 0 {
		if strings.ContainsAny(expr, "]:") {
			return Split{}, fmt.Errorf("invalid split %q", expr)
		}
		return Split{Name: expr}, nil
	}
	if !strings.HasSuffix(expr, "]") {
		return Split{}, fmt.Errorf("invalid split %q: missing ]", expr)
	}
	name := strings.TrimSpace(expr[:open])
	if name == "" {
		return Split{}, fmt.Errorf("invalid split %q: missing name", expr)
	}
	body := expr[open+1 : len(expr)-1]
	parts := strings.Split(body, ":")
	if len(parts) != 2 {
		return Split{}, fmt.Errorf("invalid split %q: expected [start:end]", expr)
	}
	start, err := parseBound(parts[0])
	if err != nil {
		return Split{}, fmt.Errorf("invalid split %q: %w", expr, err)
	}
	end, err := parseBound(parts[1])
	if err != nil {
		return Split{}, fmt.Errorf("invalid split %q: %w", expr, err)
	}
	return Split{Name: name, Start: start, End: end}, nil
}

func parseBound(raw string) (Bound, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Bound{}, nil
	}
	percent := strings.HasSuffix(raw, "%")
	if percent {
		raw = strings.TrimSpace(strings.TrimSuffix(raw, "%"))
	}
	if percent {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 || v > 100 {
			return Bound{}, fmt.Errorf("bad percentage %q", raw)
		}
		return Bound{Set: true, Value: v, Percent: true}, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return Bound{}, fmt.Errorf("bad row number %q", raw)
	}
	return Bound{Set: true, Value: float64(v)}, nil
}

// Range resolves the split against a split of total rows and returns the
// half-open row range [start, end). Percent bounds round to the nearest row,
// halves to even.
func (s Split) Range(total int) (int, int) {
	start := s.Start.resolve(total, 0)
	end := s.End.resolve(total, total)
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}
	if end < start {
		end = start
	}
	return start, end
}

func (b Bound) resolve(total, unset int) int {
	if !b.Set {
		return unset
	}
	if b.Percent {
		return int(math.RoundToEven(b.Value * float64(total) / 100))
	}
	return int(b.Value)
}

func (s Split) String() string {
	if !s.Start.Set && !s.End.Set {
		return s.Name
	}
	return s.Name + "[" + s.Start.String() + ":" + s.End.String() + "]"
}

func (b Bound) String() string {
	if !b.Set {
		return ""
	}
	v := strconv.FormatFloat(b.Value, 'f', -1, 64)
	if b.Percent {
		return v + "%"
	}
	return v
}
