package media

import (
	"fmt"
	"strconv"
	"strings"
)

type PlanKind int

const (
	PlanFull PlanKind = iota
	PlanPartial
	PlanUnsatisfiable
)

func (k PlanKind) String() string {
	switch k {
	case PlanFull:
		return "full"
	case PlanPartial:
		return "partial"
	default:
		return "unsatisfiable"
	}
}

// DeliveryPlan describes which bytes of an object to send. Start and End are
// inclusive offsets and only meaningful when Length > 0.
type DeliveryPlan struct {
	Kind   PlanKind
	Start  int64
	End    int64
	Length int64
	Size   int64
}

// ContentRange is the Content-Range header value for a partial or
// unsatisfiable plan.
func (p DeliveryPlan) ContentRange() string {
	if p.Kind == PlanUnsatisfiable {
		return fmt.Sprintf("bytes */%d", p.Size)
	}
	return fmt.Sprintf("bytes %d-%d/%d", p.Start, p.End, p.Size)
}

// Plan maps an object size and a Range header to a delivery plan.
//
// Accepted forms are "bytes=a-b", "bytes=a-" and "bytes=-n". An end past
// the object is clipped to the last byte. A start at or past the end of
// the object, a reversed range, a zero suffix, several ranges, another unit
// or any syntax error yields PlanUnsatisfiable.
func Plan(size int64, rangeHeader string) DeliveryPlan {
	rangeHeader = strings.TrimSpace(rangeHeader)
	if rangeHeader == "" {
		return DeliveryPlan{Kind: PlanFull, Start: 0, End: size - 1, Length: size, Size: size}
	}
	unsatisfiable := DeliveryPlan{Kind: PlanUnsatisfiable, Size: size}

	const prefix = "bytes="
	if len(rangeHeader) < len(prefix) || !strings.EqualFold(rangeHeader[:len(prefix)], prefix) {
		return unsatisfiable
	}
	rng := strings.TrimSpace(rangeHeader[len(prefix):])
	if strings.Contains(rng, ",") {
		return unsatisfiable
	}
	first, last, ok := strings.Cut(rng, "-")
	if !ok {
		return unsatisfiable
	}
	first, last = strings.TrimSpace(first), strings.TrimSpace(last)

	if first == "" {
		n, ok := parseOffset(last)
		if !ok || n == 0 || size == 0 {
			return unsatisfiable
		}
		if n > size {
			n = size
		}
		return partial(size-n, size-1, size)
	}

	start, ok := parseOffset(first)
	if !ok || start >= size {
		return unsatisfiable
	}
	end := size - 1
	if last != "" {
		e, ok := parseOffset(last)
		if !ok || e < start {
			return unsatisfiable
		}
		if e < end {
			end = e
		}
	}
	return partial(start, end, size)
}

func partial(start, end, size int64) DeliveryPlan {
	return DeliveryPlan{Kind: PlanPartial, Start: start, End: end, Length: end - start + 1, Size: size}
}

// parseOffset accepts plain decimal digits only.
func parseOffset(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
