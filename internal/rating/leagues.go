package rating

// League is a named band of trophy values. Max is inclusive; the topmost
// league has Max < 0 and absorbs every higher trophy count.
type League struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Min  int    `json:"minTrophies"`
	Max  int    `json:"maxTrophies"`
}

// Leagues is the fixed ascending tier table. There are no gaps: every
// non-negative trophy count maps to exactly one league.
var Leagues = []League{
	{ID: "bronze", Name: "Bronze", Min: 0, Max: 500},
	{ID: "silver", Name: "Silver", Min: 501, Max: 1000},
	{ID: "gold", Name: "Gold", Min: 1001, Max: 1500},
	{ID: "platinum", Name: "Platinum", Min: 1501, Max: 2000},
	{ID: "diamond", Name: "Diamond", Min: 2001, Max: 2500},
	{ID: "champion", Name: "Champion", Min: 2501, Max: 3000},
	{ID: "legend", Name: "Legend", Min: 3001, Max: -1},
}

// LeagueFor maps a trophy count to its league. Total over all inputs:
// negative counts fall into the bottom league, counts above the table into
// the topmost.
func LeagueFor(trophies int) League {
	for _, l := range Leagues {
		if l.Max < 0 || trophies <= l.Max {
			return l
		}
	}
	return Leagues[len(Leagues)-1]
}

// CloseToPromotion reports whether the player is within threshold trophies of
// the next league boundary.
func CloseToPromotion(trophies, threshold int) bool {
	l := LeagueFor(trophies)
	if l.Max < 0 {
		return false
	}
	return l.Max+1-trophies <= threshold
}

// CloseToDemotion reports whether the player is within threshold trophies of
// dropping below their league floor.
func CloseToDemotion(trophies, threshold int) bool {
	l := LeagueFor(trophies)
	if l.Min == 0 {
		return false
	}
	return trophies-l.Min <= threshold
}
