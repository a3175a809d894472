package parser

import (
	"fmt"
	"strconv"
	"strings"
)

// Directive tags recognized at the start of a line.
const (
	tagMission = "#mission"
	tagPlayers = "#players"
	tagGroup   = "#group"
	tagRow     = "#row"
)

// directive is one classified log line.
type directive interface {
	directive()
}

type missionDirective struct {
	missionID       string
	difficulty      int
	modifier        string
	result          Result
	durationSeconds int
}

type playersDirective struct {
	count int
}

type groupDirective struct {
	id   string
	name string
}

type rowDirective struct {
	id            string
	rowOrder      int
	dataLineCount int
	rawName       string
	sortDirection SortDirection
	visible       bool
	pluginID      string
	parentID      string
	childIDs      []string
}

// dataLine is any non-directive line with at least two fields.
type dataLine struct {
	fields []string
}

// unknownLine is a non-blank line that is neither a directive nor a data line.
type unknownLine struct{}

func (missionDirective) directive() {}
func (playersDirective) directive() {}
func (groupDirective) directive()   {}
func (rowDirective) directive()     {}
func (dataLine) directive()         {}
func (unknownLine) directive()      {}

// isDirectiveLine reports whether a line starts a directive block.
func isDirectiveLine(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), "#")
}

// splitFields splits a line on ';' and trims every field.
func splitFields(line string) []string {
	fields := strings.Split(line, ";")
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	return fields
}

// classify turns one non-blank line into a directive. A recognized tag with too few
// or invalid fields yields an error; the caller records it and moves on.
func classify(line string) (directive, error) {
	fields := splitFields(line)
	switch strings.ToLower(fields[0]) {
	case tagMission:
		return parseMission(fields)
	case tagPlayers:
		return parsePlayers(fields)
	case tagGroup:
		return parseGroup(fields)
	case tagRow:
		return parseRow(fields)
	}
	if isDirectiveLine(line) || len(fields) < 2 {
		return unknownLine{}, nil
	}
	return dataLine{fields: fields}, nil
}

func parseMission(fields []string) (directive, error) {
	if len(fields) < 3 {
		return nil, fmt.Errorf("mission needs at least 2 fields, got %d", len(fields)-1)
	}
	difficulty, err := strconv.Atoi(fields[2])
	if err != nil {
		return nil, fmt.Errorf("invalid difficulty %q", fields[2])
	}
	d := missionDirective{
		missionID:  fields[1],
		difficulty: difficulty,
		result:     ResultUnknown,
	}
	if len(fields) > 3 {
		d.modifier = normalizeModifier(fields[3])
	}
	if len(fields) > 4 {
		d.result = normalizeResult(fields[4])
	}
	if len(fields) > 5 {
		d.durationSeconds = parseDuration(fields[5])
	}
	return d, nil
}

func parsePlayers(fields []string) (directive, error) {
	if len(fields) < 2 {
		return nil, fmt.Errorf("players needs a count")
	}
	count, err := strconv.Atoi(fields[1])
	if err != nil || count < 0 {
		return nil, fmt.Errorf("invalid player count %q", fields[1])
	}
	return playersDirective{count: count}, nil
}

func parseGroup(fields []string) (directive, error) {
	if len(fields) < 2 || fields[1] == "" {
		return nil, fmt.Errorf("group needs an id")
	}
	d := groupDirective{id: fields[1], name: fields[1]}
	if len(fields) > 2 && fields[2] != "" {
		d.name = fields[2]
	}
	return d, nil
}

func parseRow(fields []string) (directive, error) {
	if len(fields) < 6 {
		return nil, fmt.Errorf("row needs at least 5 fields, got %d", len(fields)-1)
	}
	if fields[1] == "" {
		return nil, fmt.Errorf("row needs an id")
	}
	rowOrder, err := strconv.Atoi(fields[2])
	if err != nil {
		return nil, fmt.Errorf("invalid row order %q", fields[2])
	}
	count, err := strconv.Atoi(fields[3])
	if err != nil || count < 0 {
		return nil, fmt.Errorf("invalid data line count %q", fields[3])
	}

	d := rowDirective{
		id:            fields[1],
		rowOrder:      rowOrder,
		dataLineCount: count,
		rawName:       fields[4],
		sortDirection: normalizeSortDirection(fields[5]),
		visible:       true,
	}
	if len(fields) > 6 && strings.EqualFold(fields[6], "false") {
		d.visible = false
	}
	if len(fields) > 7 {
		d.pluginID = optionalField(fields[7])
	}
	if len(fields) > 8 {
		d.parentID = optionalField(fields[8])
	}
	if len(fields) > 9 {
		if raw := optionalField(fields[9]); raw != "" {
			for _, id := range strings.Split(raw, ":") {
				if id = strings.TrimSpace(id); id != "" {
					d.childIDs = append(d.childIDs, id)
				}
			}
		}
	}
	return d, nil
}

// optionalField maps the "nil" sentinel and empty fields to "".
func optionalField(s string) string {
	if strings.EqualFold(s, "nil") {
		return ""
	}
	return s
}

func normalizeModifier(s string) string {
	if strings.EqualFold(s, "nil") || strings.EqualFold(s, "default") {
		return ""
	}
	return s
}

func normalizeResult(s string) Result {
	switch Result(strings.ToLower(s)) {
	case ResultWon:
		return ResultWon
	case ResultLost:
		return ResultLost
	default:
		return ResultUnknown
	}
}

func normalizeSortDirection(s string) SortDirection {
	if strings.EqualFold(s, string(SortAsc)) {
		return SortAsc
	}
	return SortDesc
}

// parseDuration reads whole seconds; fractional values are truncated and garbage is 0.
func parseDuration(s string) int {
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int(f)
	}
	return 0
}
