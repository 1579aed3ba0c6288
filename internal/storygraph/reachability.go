package storygraph

import "fmt"

// Unreachable returns the positions of pages that cannot be reached from the
// first page by following in-range choice targets. It is advisory and is not
// part of Validate.
func Unreachable(d Draft) []int {
	n := len(d.Pages)
	if n == 0 {
		return nil
	}
	seen := make([]bool, n)
	seen[0] = true
	queue := []int{0}
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		for _, c := range d.Pages[i].Choices {
			t, ok := c.Target.Index()
			if !ok || t < 0 || t >= n || seen[t] {
				continue
			}
			seen[t] = true
			queue = append(queue, t)
		}
	}
	var out []int
	for i, ok := range seen {
		if !ok {
			out = append(out, i)
		}
	}
	return out
}

// ReachabilityWarnings renders Unreachable as messages. It also warns when no
// ending page can be reached even though one exists.
func ReachabilityWarnings(d Draft) []string {
	unreachable := Unreachable(d)
	var warnings []string
	skip := make(map[int]bool, len(unreachable))
	for _, i := range unreachable {
		skip[i] = true
		warnings = append(warnings, fmt.Sprintf("Page %d is not reachable from the first page", i+1))
	}
	hasEnding, reachableEnding := false, false
	for i, p := range d.Pages {
		if !p.IsEnding {
			continue
		}
		hasEnding = true
		if !skip[i] {
			reachableEnding = true
		}
	}
	if hasEnding && !reachableEnding {
		warnings = append(warnings, "No ending page is reachable from the first page")
	}
	return warnings
}
