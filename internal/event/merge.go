package event

import "fmt"

// Merge collapses an unordered multiset of events into exactly one event per
// row identity, preserving the first-seen order of distinct identities.
// Events within a group fold in arrival order:
//
//   - a merge-flagged event deep-merges into the accumulated payload
//     (matching keys overwrite, nested objects merge recursively, non-object
//     values overwrite);
//   - a non-merge event replaces the accumulated payload wholesale, except
//     that lineage fields carry forward last-writer-wins;
//   - the result's merge flag is set only when every contributor was
//     merge-flagged.
//
// A group with a single event is returned unchanged. Inputs are never
// mutated; accumulated payloads are fresh maps.
func Merge(events []Event) ([]Event, error) {
	if len(events) <= 1 {
		return events, nil
	}

	order := make([]string, 0, len(events))
	groups := make(map[string]*accumulator, len(events))

	for _, ev := range events {
		key := ev.identity()
		acc, ok := groups[key]
		if !ok {
			order = append(order, key)
			groups[key] = &accumulator{event: ev}
			continue
		}
		if err := acc.fold(ev); err != nil {
			return nil, fmt.Errorf("merge rows for %q: %w", ev.ID, err)
		}
	}

	out := make([]Event, 0, len(order))
	for _, key := range order {
		out = append(out, groups[key].event)
	}
	return out, nil
}

// accumulator folds events sharing one identity.
type accumulator struct {
	event  Event
	copied bool // event.Data is a private copy safe to mutate
}

func (a *accumulator) fold(next Event) error {
	if next.IsMerge {
		merged, err := deepMerge(a.writable(), next.Data)
		if err != nil {
			return err
		}
		a.event.Data = merged
	} else {
		replaced := make(map[string]any, len(next.Data)+len(lineageFields))
		for k, v := range next.Data {
			replaced[k] = v
		}
		for _, k := range lineageFields {
			if _, ok := replaced[k]; ok {
				continue
			}
			if v, ok := a.event.Data[k]; ok {
				replaced[k] = v
			}
		}
		a.event.Data = replaced
		a.copied = true
	}

	a.event.IsMerge = a.event.IsMerge && next.IsMerge
	return nil
}

func (a *accumulator) writable() map[string]any {
	if !a.copied {
		cp := make(map[string]any, len(a.event.Data))
		for k, v := range a.event.Data {
			cp[k] = v
		}
		a.event.Data = cp
		a.copied = true
	}
	return a.event.Data
}

// deepMerge merges src into dst key-by-key and returns dst. Nested objects
// merge recursively; any other value overwrites. Merging an object into an
// existing scalar is irreconcilable and errors: the call sites constructing
// events are responsible for shape, so this indicates corrupted state.
func deepMerge(dst, src map[string]any) (map[string]any, error) {
	for k, v := range src {
		srcObj, srcIsObj := v.(map[string]any)
		if !srcIsObj {
			dst[k] = v
			continue
		}
		old, exists := dst[k]
		if !exists {
			dst[k] = copyObject(srcObj)
			continue
		}
		dstObj, dstIsObj := old.(map[string]any)
		if !dstIsObj {
			return nil, fmt.Errorf("cannot merge object into scalar at key %q", k)
		}
		merged, err := deepMerge(copyObject(dstObj), srcObj)
		if err != nil {
			return nil, err
		}
		dst[k] = merged
	}
	return dst, nil
}

// copyObject shallow-copies a nested object so merge never aliases caller
// maps. Deeper levels are copied lazily as deepMerge descends.
func copyObject(m map[string]any) map[string]any {
	cp := make(map[string]any, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
