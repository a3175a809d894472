package parser

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.English)

// HumanizeName converts a bracket-wrapped snake_case name such as "<damage_dealt>"
// to Title Case ("Damage Dealt"). Other names are returned trimmed.
func HumanizeName(raw string) string {
	name := strings.TrimSpace(raw)
	if len(name) < 2 || !strings.HasPrefix(name, "<") || !strings.HasSuffix(name, ">") {
		return name
	}
	inner := strings.TrimSpace(strings.ReplaceAll(name[1:len(name)-1], "_", " "))
	if inner == "" {
		return name
	}
	return titleCaser.String(strings.Join(strings.Fields(inner), " "))
}

// isSingleWord reports whether a name has no spaces and no '/' separators.
func isSingleWord(name string) bool {
	return name != "" && !strings.ContainsAny(name, " \t/")
}

func wholeWord(word string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(word) + `\b`)
}

// containsWord reports whether word occurs as a whole word inside s.
func containsWord(s, word string) bool {
	return wholeWord(word).MatchString(s)
}

// expandName rewrites a child's short name using its parent's name, with every
// sibling name removed. "Dealt" under "Damage Dealt / Taken" with sibling "Taken"
// becomes "Damage Dealt". An empty result keeps the original name.
func expandName(name, parentName string, siblings []string) string {
	out := parentName
	for _, sibling := range siblings {
		if strings.TrimSpace(sibling) == "" {
			continue
		}
		out = wholeWord(sibling).ReplaceAllString(out, "")
	}

	var segments []string
	for _, seg := range strings.Split(out, "/") {
		if seg = strings.Join(strings.Fields(seg), " "); seg != "" {
			segments = append(segments, seg)
		}
	}
	out = strings.Join(segments, " / ")
	if out == "" {
		return name
	}
	return out
}
