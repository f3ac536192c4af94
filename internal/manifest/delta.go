package manifest

import "strconv"

// Delta captures added and removed rows between two manifests.
type Delta struct {
	Added   Manifest `json:"added"`
	Removed Manifest `json:"removed"`
}

// ComputeDelta computes row-level additions and removals between two manifests.
func ComputeDelta(prev, next Manifest) Delta {
	return Delta{
		Added:   diffManifests(prev, next),
		Removed: diffManifests(next, prev),
	}
}

func diffManifests(from, to Manifest) Manifest {
	out := Empty()

	out.Connections = diffRows(from.Connections, to.Connections, func(r ConnectionRow) string {
		return r.Name + "|" + hexKey(r.Address) + "|" + r.File + "|" + r.Prefix + "|" + boolKey(r.Omitted) + "|" + strconv.Itoa(r.Registers)
	})
	out.Registers = diffRows(from.Registers, to.Registers, func(r RegisterRow) string {
		return r.Connection + "|" + r.Name + "|" + hexKey(r.Address) + "|" + r.Description
	})
	out.Fields = diffRows(from.Fields, to.Fields, func(r FieldRow) string {
		return r.Register + "|" + r.Name + "|" + r.Constant + "|" + r.Type + "|" + r.Reset + "|" + r.Description
	})

	return out
}

func diffRows[T any](from, to []T, key func(T) string) []T {
	fromSet := make(map[string]struct{}, len(from))
	for _, row := range from {
		fromSet[key(row)] = struct{}{}
	}
	var diff []T
	for _, row := range to {
		if _, ok := fromSet[key(row)]; !ok {
			diff = append(diff, row)
		}
	}
	if diff == nil {
		diff = []T{}
	}
	return diff
}

func boolKey(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

func hexKey(v uint64) string {
	return strconv.FormatUint(v, 16)
}

// Unchanged reports whether the delta carries no rows
func (d Delta) Unchanged() bool {
	return len(d.Added.Connections) == 0 && len(d.Added.Registers) == 0 && len(d.Added.Fields) == 0 &&
		len(d.Removed.Connections) == 0 && len(d.Removed.Registers) == 0 && len(d.Removed.Fields) == 0
}
