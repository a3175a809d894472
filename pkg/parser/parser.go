package parser

import (
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"
)

// Parser turns the text of one log file into a draft Match.
// A Parser holds only configuration and may be reused for many files.
type Parser struct {
	missionNames map[string]string
}

// Option configures a Parser.
type Option func(*Parser)

// WithMissionNames sets display names for mission ids. Missions without an entry
// get their id humanized.
func WithMissionNames(names map[string]string) Option {
	return func(p *Parser) {
		for id, name := range names {
			p.missionNames[id] = name
		}
	}
}

// New creates a Parser.
func New(opts ...Option) *Parser {
	p := &Parser{missionNames: make(map[string]string)}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ParseTimestamp decodes the unix timestamp encoded in a log filename.
func ParseTimestamp(filename string) (int64, error) {
	base := filepath.Base(filename)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	ts, err := strconv.ParseInt(stem, 10, 64)
	if err != nil || stem == "" || stem[0] == '+' || stem[0] == '-' {
		return 0, fmt.Errorf("%w: %q", ErrBadFilename, base)
	}
	return ts, nil
}

// MissionName returns the display name for a mission id.
func (p *Parser) MissionName(id string) string {
	if name, ok := p.missionNames[id]; ok && name != "" {
		return name
	}
	return HumanizeName("<" + id + ">")
}

// Parse parses one log file. Only a bad filename is fatal; malformed lines are
// skipped and recorded in Match.Warnings.
func (p *Parser) Parse(filename, content string) (*Match, error) {
	ts, err := ParseTimestamp(filename)
	if err != nil {
		return nil, err
	}

	content = strings.ReplaceAll(content, "\r\n", "\n")
	st := &state{
		parser:     p,
		lines:      strings.Split(content, "\n"),
		groupID:    DefaultGroupID,
		groupName:  DefaultGroupName,
		roster:     make(map[string]int),
		properties: make(map[string]*Property),
		scores:     make(map[scoreKey]bool),
		match: &Match{
			Filename:  filepath.Base(filename),
			Timestamp: ts,
			Result:    ResultUnknown,
		},
	}
	st.run()

	resolveHierarchy(st.match.Properties)
	return st.match, nil
}

type scoreKey struct {
	player   string
	property string
}

// state is the parse state machine for a single file.
type state struct {
	parser *Parser
	lines  []string
	pos    int

	// current category applied to subsequent rows
	groupID   string
	groupName string

	roster     map[string]int // player id -> index in match.Roster
	properties map[string]*Property
	scores     map[scoreKey]bool

	match *Match
}

// next returns the next line and its 1-based number, or ok=false at end of input.
func (s *state) next() (line string, num int, ok bool) {
	if s.pos >= len(s.lines) {
		return "", 0, false
	}
	s.pos++
	return s.lines[s.pos-1], s.pos, true
}

// backup un-reads the last line so the main loop sees it again.
func (s *state) backup() {
	s.pos--
}

func (s *state) warn(kind WarningKind, num int, line, reason string) {
	s.match.Warnings = append(s.match.Warnings, Warning{
		Kind:    kind,
		LineNum: num,
		Line:    line,
		Reason:  reason,
	})
}

func (s *state) run() {
	for {
		line, num, ok := s.next()
		if !ok {
			return
		}
		if strings.TrimSpace(line) == "" {
			continue
		}

		d, err := classify(line)
		if err != nil {
			s.warn(WarnMalformedDirective, num, line, err.Error())
			continue
		}

		switch d := d.(type) {
		case missionDirective:
			s.applyMission(d)
		case playersDirective:
			s.readPlayers(d)
		case groupDirective:
			s.groupID, s.groupName = d.id, d.name
		case rowDirective:
			s.readRow(d)
		}
	}
}

func (s *state) applyMission(d missionDirective) {
	m := s.match
	m.MissionID = d.missionID
	m.MissionName = s.parser.MissionName(d.missionID)
	m.Difficulty = d.difficulty
	m.Modifier = d.modifier
	m.Result = d.result
	m.DurationSeconds = d.durationSeconds
}

// blockLine reads the next line of a counted block. It backs up and reports
// ok=false when the block ends early on a directive, blank or short line.
func (s *state) blockLine() (fields []string, line string, num int, ok bool) {
	line, num, ok = s.next()
	if !ok {
		return nil, "", 0, false
	}
	if strings.TrimSpace(line) == "" || isDirectiveLine(line) {
		s.backup()
		return nil, "", 0, false
	}
	fields = splitFields(line)
	if len(fields) < 2 {
		s.backup()
		return nil, "", 0, false
	}
	return fields, line, num, true
}

func (s *state) readPlayers(d playersDirective) {
	for i := 0; i < d.count; i++ {
		fields, line, num, ok := s.blockLine()
		if !ok {
			return
		}
		if fields[1] == "" {
			s.warn(WarnMalformedDirective, num, line, "player line needs an id")
			continue
		}
		slot, err := strconv.Atoi(fields[0])
		if err != nil {
			s.warn(WarnMalformedDirective, num, line, fmt.Sprintf("invalid slot %q", fields[0]))
			continue
		}
		name := UnknownName
		if len(fields) > 2 && fields[2] != "" {
			name = fields[2]
		}
		id, isBot := resolveParticipant(fields[1])
		if isBot && name == UnknownName {
			name = BotName(fields[1])
		}
		s.register(RosterEntry{PlayerID: id, IsBot: isBot, Slot: slot, Name: name})
	}
}

// register adds or refreshes a registered roster entry.
func (s *state) register(e RosterEntry) {
	if idx, ok := s.roster[e.PlayerID]; ok {
		s.match.Roster[idx] = e
		return
	}
	s.roster[e.PlayerID] = len(s.match.Roster)
	s.match.Roster = append(s.match.Roster, e)
}

// participant resolves a value-line token, recording participants absent from the roster.
func (s *state) participant(token string) string {
	id, isBot := resolveParticipant(token)
	if _, ok := s.roster[id]; ok {
		return id
	}

	e := RosterEntry{PlayerID: id, IsBot: isBot, Slot: -1, Name: UnknownName, Quitter: true}
	if isBot {
		e.Name = BotName(token)
		if e.Name == "" {
			e.Name = UnknownName
		}
		e.Quitter = false
	}
	s.roster[id] = len(s.match.Roster)
	s.match.Roster = append(s.match.Roster, e)
	return id
}

func (s *state) readRow(d rowDirective) {
	prop, ok := s.properties[d.id]
	if !ok {
		prop = &Property{ID: d.id}
		s.properties[d.id] = prop
		s.match.Properties = append(s.match.Properties, prop)
	}
	*prop = Property{
		ID:            d.id,
		DisplayName:   HumanizeName(d.rawName),
		RawName:       d.rawName,
		GroupID:       s.groupID,
		GroupName:     s.groupName,
		SortDirection: d.sortDirection,
		IsSummary:     len(d.childIDs) > 1,
		ParentID:      d.parentID,
		ChildIDs:      d.childIDs,
		RowOrder:      d.rowOrder,
		Visible:       d.visible,
		PluginID:      d.pluginID,
	}

	for i := 0; i < d.dataLineCount; i++ {
		fields, line, num, ok := s.blockLine()
		if !ok {
			return
		}
		if fields[0] == "" {
			s.warn(WarnMalformedDirective, num, line, "value line needs a participant")
			continue
		}
		value, err := strconv.ParseFloat(fields[1], 64)
		if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
			s.warn(WarnUnparseableValue, num, line, fmt.Sprintf("value %q is not numeric", fields[1]))
			continue
		}
		playerID := s.participant(fields[0])
		key := scoreKey{player: playerID, property: d.id}
		if s.scores[key] {
			continue
		}
		s.scores[key] = true
		s.match.Scores = append(s.match.Scores, Score{
			PlayerID:   playerID,
			PropertyID: d.id,
			Value:      value,
		})
	}
}
