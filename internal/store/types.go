// Package store persists the entity model of spec §3 — Text, Feature,
// Unit, Search, Match, MultiResult — in SQLite, through database/sql with
// the pure-Go modernc.org/sqlite driver (no cgo driver is linked).
package store

import "time"

// TextStatus is the ingestion state of a Text (spec.md §3).
type TextStatus string

const (
	TextStatusInit    TextStatus = "init"
	TextStatusRunning TextStatus = "running"
	TextStatusDone    TextStatus = "done"
	TextStatusFailed  TextStatus = "failed"
)

// UnitType distinguishes line-level from phrase-level segmentation.
type UnitType string

const (
	UnitTypeLine   UnitType = "line"
	UnitTypePhrase UnitType = "phrase"
)

// FeatureKind is the category of extractor that produced a Feature.
type FeatureKind string

const (
	FeatureKindForm            FeatureKind = "form"
	FeatureKindLemmata         FeatureKind = "lemmata"
	FeatureKindSound           FeatureKind = "sound"
	FeatureKindSemantic        FeatureKind = "semantic"
	FeatureKindSemanticLemmata FeatureKind = "semantic+lemmata"
)

// SearchType distinguishes the three matcher dispatches of spec.md §4.9.
type SearchType string

const (
	SearchTypeVanilla      SearchType = "vanilla"
	SearchTypeMultitext    SearchType = "multitext"
	SearchTypeGreekToLatin SearchType = "greek_to_latin"
)

// SearchStatus mirrors TextStatus's state machine for a Search entity.
type SearchStatus string

const (
	SearchStatusInit    SearchStatus = "init"
	SearchStatusRunning SearchStatus = "running"
	SearchStatusDone    SearchStatus = "done"
	SearchStatusFailed  SearchStatus = "failed"
)

// FrequencyBasis selects the population inverse frequency is computed
// over (spec.md §4.3).
type FrequencyBasis string

const (
	FrequencyBasisCorpus FrequencyBasis = "corpus"
	FrequencyBasisTexts  FrequencyBasis = "texts"
)

// DistanceBasis selects how a candidate pair's distance is measured
// (spec.md §4.4).
type DistanceBasis string

const (
	DistanceBasisSpan      DistanceBasis = "span"
	DistanceBasisFrequency DistanceBasis = "frequency"
)

// Text identifies a work (spec.md §3 "Text").
type Text struct {
	ID        string
	Language  string
	Author    string
	Title     string
	Year      int
	IsProse   bool
	Hash      string // content hash, used for already-ingested detection
	Path      string
	UnitTypes []UnitType
	Status    TextStatus
	Message   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Feature is an interned (language, kind, token) symbol (spec.md §3
// "Feature"). Counts is per-text occurrence count, keyed by Text.ID.
type Feature struct {
	Index    int
	Language string
	Kind     FeatureKind
	Token    string
	Counts   map[string]int
}

// Unit is a contiguous slice of a text (spec.md §3 "Unit").
type Unit struct {
	ID         int64
	TextID     string
	UnitType   UnitType
	Ordinal    int
	Tags       []string
	Snippet    string
	Tokens     []int // token positions, in order
	Features   map[FeatureKind]map[int][]int // kind -> position -> feature indices
}

// Search is a named computation over source/target (spec.md §3 "Search").
type Search struct {
	ID            string
	ResultsID     string // indirection so a multitext search can key off a vanilla search (SPEC_FULL §3.1)
	Type          SearchType
	Params        SearchParams
	Status        SearchStatus
	Message       string
	Stages        []ProgressStage
	LastQueriedAt time.Time
	MaxScore      float64
	CreatedAt     time.Time
}

// ProgressStage is one named step of a Search or Text's progress report.
type ProgressStage struct {
	Name       string
	Completion float64
}

// TextRef names one side of a search (spec.md §6 "source"/"target").
type TextRef struct {
	TextID   string
	UnitType UnitType
}

// Method selects the feature kind, stopword policy, and distance model
// for a search (spec.md §6 "method").
type Method struct {
	Name           SearchType
	Feature        FeatureKind
	Stopwords      []string // normalized tokens; empty if StopwordCount is used instead
	StopwordCount  int      // >0 triggers automatic top-N derivation (spec.md §6)
	GreekStopwords []string
	LatinStopwords []string
	FreqBasis      FrequencyBasis
	MaxDistance    int
	DistanceBasis  DistanceBasis
	MinScore       float64
}

// SearchParams is the full nested parameter record of spec.md §6.
type SearchParams struct {
	Source TextRef
	Target TextRef
	Method Method
}

// Match is a scored unit pair (spec.md §3 "Match").
type Match struct {
	ID             int64
	SearchID       string
	SourceUnitID   int64
	TargetUnitID   int64
	SourceTag      string
	TargetTag      string
	SourceSnippet  string
	TargetSnippet  string
	MatchedTokens  []string
	Highlights     []PositionPair
	Score          float64
}

// PositionPair is a (source_position, target_position) highlight pair.
type PositionPair struct {
	Source int
	Target int
}

// MultiResult is attached to a Match by the Multitext Engine (spec.md §3).
type MultiResult struct {
	ID         int64
	MatchID    int64
	FeatureA   string
	FeatureB   string
	Units      []MultiUnitScore
}

// MultiUnitScore is one corpus unit found to contain a match's bigram.
type MultiUnitScore struct {
	UnitID int64
	TextID string
	Tag    string
	Score  float64
}

// ResultSet is the aggregate root a Search produces (SPEC_FULL.md §3.1,
// grounded on the original's MatchSet/results_pair.py): the set of
// matches (and, for a multitext search, multi-results) that deletion
// walks from a single Search.ID.
type ResultSet struct {
	SearchID     string
	Matches      []Match
	MultiResults []MultiResult
}
