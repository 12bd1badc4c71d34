package query

import (
	"path/filepath"
	"strconv"
	"strings"
)

var identifierReplacer = strings.NewReplacer("-", "_", " ", "_")

// SanitizeIdentifier derives a table identifier from a file's base name
// without its final extension.
func SanitizeIdentifier(path string) string {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" {
		stem = base
	}
	return identifierReplacer.Replace(stem)
}

// BindTables assigns one identifier per path in encounter order. Colliding
// identifiers get _1, _2, ... appended; the counter is local to this call.
func BindTables(paths []string) []TableBinding {
	bindings := make([]TableBinding, 0, len(paths))
	taken := make(map[string]struct{}, len(paths))
	for _, path := range paths {
		original := SanitizeIdentifier(path)
		identifier := original
		for counter := 1; ; counter++ {
			if _, exists := taken[identifier]; !exists {
				break
			}
			identifier = original + "_" + strconv.Itoa(counter)
		}
		taken[identifier] = struct{}{}
		bindings = append(bindings, TableBinding{Identifier: identifier, Path: path})
	}
	return bindings
}

func Identifiers(bindings []TableBinding) []string {
	identifiers := make([]string, 0, len(bindings))
	for _, binding := range bindings {
		identifiers = append(identifiers, binding.Identifier)
	}
	return identifiers
}
