package judge

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// checkHard runs the named hard checker over one argument pair. The string
// result is the diagnostic on mismatch.
func (c *Config) checkHard(ct CheckerType, agent, oracle any) (bool, string) {
	switch ct {
	case CheckerEq:
		return checkEq(agent, oracle)
	case CheckerUnorderedList:
		return checkUnorderedList(agent, oracle, nil)
	case CheckerListAttendees:
		return checkUnorderedList(agent, oracle, c.ToleratedAttendees)
	case CheckerDatetime:
		return checkDatetime(agent, oracle)
	case CheckerPhoneNumber:
		return checkPhoneNumber(agent, oracle)
	case CheckerEqStrStrip:
		return checkEqStrStrip(agent, oracle)
	case CheckerPath:
		return checkPath(agent, oracle)
	case CheckerUnorderedPathList:
		return checkUnorderedPathList(agent, oracle)
	case CheckerContainAny:
		return checkContain(agent, oracle, false)
	case CheckerContainAll:
		return checkContain(agent, oracle, true)
	default:
		return false, fmt.Sprintf("unknown checker %q", ct)
	}
}

// coerce renders a scalar in a type-insensitive canonical form so 5, 5.0
// and "5" compare equal.
func coerce(v any) string {
	switch n := v.(type) {
	case nil:
		return ""
	case string:
		return n
	case bool:
		return strconv.FormatBool(n)
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(n), 'f', -1, 32)
	case int:
		return strconv.Itoa(n)
	case int64:
		return strconv.FormatInt(n, 10)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func checkEq(agent, oracle any) (bool, string) {
	if agent == nil || oracle == nil {
		if agent == nil && oracle == nil {
			return true, ""
		}
		return false, fmt.Sprintf("%v != %v", agent, oracle)
	}
	a, o := coerce(agent), coerce(oracle)
	if a == o {
		return true, ""
	}
	return false, fmt.Sprintf("%q != %q", a, o)
}

// toList accepts nil, []any, and []string; null means empty.
func toList(v any) ([]string, error) {
	switch l := v.(type) {
	case nil:
		return nil, nil
	case []string:
		return l, nil
	case []any:
		out := make([]string, len(l))
		for i, item := range l {
			out[i] = coerce(item)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected a list, got %T", v)
	}
}

func checkUnorderedList(agent, oracle any, tolerated []string) (bool, string) {
	a, err := toList(agent)
	if err != nil {
		return false, "agent arg: " + err.Error()
	}
	o, err := toList(oracle)
	if err != nil {
		return false, "oracle arg: " + err.Error()
	}

	counts := make(map[string]int)
	for _, item := range a {
		counts[item]++
	}
	for _, item := range o {
		counts[item]--
	}
	for _, t := range tolerated {
		delete(counts, t)
	}
	for item, n := range counts {
		if n != 0 {
			return false, fmt.Sprintf("multiset mismatch on %q", item)
		}
	}
	return true, ""
}

const datetimeLayout = "2006-01-02 15:04:05"

func checkDatetime(agent, oracle any) (bool, string) {
	a, err := time.Parse(datetimeLayout, strings.TrimSpace(coerce(agent)))
	if err != nil {
		return false, fmt.Sprintf("agent datetime %q: %v", coerce(agent), err)
	}
	o, err := time.Parse(datetimeLayout, strings.TrimSpace(coerce(oracle)))
	if err != nil {
		return false, fmt.Sprintf("oracle datetime %q: %v", coerce(oracle), err)
	}
	if a.Equal(o) {
		return true, ""
	}
	return false, fmt.Sprintf("%s != %s", a.Format(datetimeLayout), o.Format(datetimeLayout))
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func checkPhoneNumber(agent, oracle any) (bool, string) {
	a, o := digitsOnly(coerce(agent)), digitsOnly(coerce(oracle))
	if a == o {
		return true, ""
	}
	return false, fmt.Sprintf("phone %q != %q", a, o)
}

func checkEqStrStrip(agent, oracle any) (bool, string) {
	a := strings.TrimSpace(coerce(agent))
	o := strings.TrimSpace(coerce(oracle))
	if a == o {
		return true, ""
	}
	return false, fmt.Sprintf("%q != %q", a, o)
}

// normalizePath collapses separators and strips the leading slash.
func normalizePath(s string) string {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == '/' })
	return strings.Join(parts, "/")
}

func checkPath(agent, oracle any) (bool, string) {
	a := normalizePath(coerce(agent))
	o := normalizePath(coerce(oracle))
	if a == o {
		return true, ""
	}
	return false, fmt.Sprintf("path %q != %q", a, o)
}

func checkUnorderedPathList(agent, oracle any) (bool, string) {
	a, err := toList(agent)
	if err != nil {
		return false, "agent arg: " + err.Error()
	}
	o, err := toList(oracle)
	if err != nil {
		return false, "oracle arg: " + err.Error()
	}

	set := func(items []string) map[string]bool {
		out := make(map[string]bool, len(items))
		for _, item := range items {
			out[normalizePath(item)] = true
		}
		return out
	}
	got, want := set(a), set(o)
	if len(got) != len(want) {
		return false, fmt.Sprintf("path sets differ in size: %d vs %d", len(got), len(want))
	}
	for p := range want {
		if !got[p] {
			return false, fmt.Sprintf("path %q missing", p)
		}
	}
	return true, ""
}

// checkContain tests lowercase substring containment of the oracle targets
// in the agent value. all selects contain_all over contain_any.
func checkContain(agent, oracle any, all bool) (bool, string) {
	haystack := strings.ToLower(coerce(agent))

	var targets []string
	if list, err := toList(oracle); err == nil && oracle != nil {
		targets = list
	} else {
		targets = []string{coerce(oracle)}
	}
	if len(targets) == 0 {
		return true, ""
	}

	for _, t := range targets {
		found := strings.Contains(haystack, strings.ToLower(t))
		if all && !found {
			return false, fmt.Sprintf("%q not contained", t)
		}
		if !all && found {
			return true, ""
		}
	}
	if all {
		return true, ""
	}
	return false, fmt.Sprintf("none of %v contained", targets)
}
