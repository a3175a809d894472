// Package parser turns per-match log files into draft match records.
package parser

import "errors"

// ErrBadFilename is returned when a log filename does not decode to a decimal timestamp.
var ErrBadFilename = errors.New("filename is not a decimal timestamp")

// Result is the outcome of a match.
type Result string

const (
	ResultWon     Result = "won"
	ResultLost    Result = "lost"
	ResultUnknown Result = "unknown"
)

// SortDirection tells consumers which end of a property's range is better.
type SortDirection string

const (
	SortAsc  SortDirection = "ASC"
	SortDesc SortDirection = "DESC"
)

// UnknownName is the placeholder name for participants whose name was never reported.
const UnknownName = "Unknown"

// Default category used for rows declared before any #group directive.
const (
	DefaultGroupID   = "general"
	DefaultGroupName = "General"
)

// Match is the draft record parsed from one log file.
type Match struct {
	// Filename is the base name of the source file; it is the natural key of the match.
	Filename string

	// Timestamp is the unix time (seconds) decoded from the filename.
	Timestamp int64

	MissionID       string
	MissionName     string
	Difficulty      int
	Modifier        string
	Result          Result
	DurationSeconds int

	// Roster lists participants in discovery order: registered players first,
	// then participants found only in value lines.
	Roster []RosterEntry

	// Properties are kept in declaration order.
	Properties []*Property

	// Scores are kept in the order they appeared.
	Scores []Score

	// Warnings records non-fatal anomalies met while parsing.
	Warnings []Warning
}

// RosterEntry associates a participant with the match.
type RosterEntry struct {
	PlayerID string
	IsBot    bool

	// Slot is the roster slot, or -1 for participants missing from the #players block.
	Slot    int
	Name    string
	Quitter bool
}

// Property is a statistic column declared by a #row directive.
type Property struct {
	ID            string
	DisplayName   string
	RawName       string
	GroupID       string
	GroupName     string
	SortDirection SortDirection
	IsSummary     bool
	ParentID      string
	ChildIDs      []string
	RowOrder      int
	Visible       bool
	PluginID      string
}

// Score is one participant's value for one property.
type Score struct {
	PlayerID   string
	PropertyID string
	Value      float64
}

// WarningKind classifies a recoverable parse anomaly.
type WarningKind string

const (
	WarnMalformedDirective WarningKind = "malformed_directive"
	WarnUnparseableValue   WarningKind = "unparseable_value"
)

// Warning describes a line that was skipped.
type Warning struct {
	Kind    WarningKind
	LineNum int
	Line    string
	Reason  string
}
