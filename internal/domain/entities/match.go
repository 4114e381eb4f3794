package entities

// MatchScore is computed per (appointment, doctor) pair during matching and never persisted
type MatchScore struct {
	Eligible            bool    `json:"eligible"`
	TimeAvailable       bool    `json:"time_available"`
	AreaBonus           float64 `json:"area_bonus"`
	SpecializationBonus float64 `json:"specialization_bonus"`
	LoadPenalty         float64 `json:"load_penalty"`
	ConfirmedCount      int     `json:"confirmed_count"`
	Total               float64 `json:"total"`
}

// ScoredDoctor pairs a candidate with its score
type ScoredDoctor struct {
	Doctor *Doctor    `json:"doctor"`
	Score  MatchScore `json:"score"`
}
