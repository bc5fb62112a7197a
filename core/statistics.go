package core

// StatisticType is the closed set of statistics the pipeline can resolve.
type StatisticType string

const (
	StatYellowCards            StatisticType = "yellow_cards"
	StatRedCards               StatisticType = "red_cards"
	StatTotalCards             StatisticType = "total_cards"
	StatCorners                StatisticType = "corners"
	StatShotsOnTarget          StatisticType = "shots_on_target"
	StatShotsTotal             StatisticType = "shots_total"
	StatFouls                  StatisticType = "fouls"
	StatPossession             StatisticType = "possession"
	StatPasses                 StatisticType = "passes"
	StatPassAccuracy           StatisticType = "pass_accuracy"
	StatKeyPasses              StatisticType = "key_passes"
	StatSaves                  StatisticType = "saves"
	StatTackles                StatisticType = "tackles"
	StatInterceptions          StatisticType = "interceptions"
	StatFreeKicks              StatisticType = "free_kicks"
	StatPenaltiesAwarded       StatisticType = "penalties_awarded"
	StatPenaltiesScored        StatisticType = "penalties_scored"
	StatTechnicalFouls         StatisticType = "technical_fouls"
	StatFlagrantFouls          StatisticType = "flagrant_fouls"
	StatTurnovers              StatisticType = "turnovers"
	StatReboundsOffensive      StatisticType = "rebounds_offensive"
	StatReboundsDefensive      StatisticType = "rebounds_defensive"
	StatReboundsTotal          StatisticType = "rebounds_total"
	StatBlocks                 StatisticType = "blocks"
	StatSteals                 StatisticType = "steals"
	StatThreePointersMade      StatisticType = "three_pointers_made"
	StatThreePointersAttempted StatisticType = "three_pointers_attempted"
	StatFreeThrowsMade         StatisticType = "free_throws_made"
	StatFreeThrowsAttempted    StatisticType = "free_throws_attempted"
	StatMinutesPlayed          StatisticType = "minutes_played"
	StatPenalties              StatisticType = "penalties"
	StatPenaltyYards           StatisticType = "penalty_yards"
	StatFumbles                StatisticType = "fumbles"
	StatSacks                  StatisticType = "sacks"
	StatTimeOfPossession       StatisticType = "time_of_possession"
	StatThirdDownConversions   StatisticType = "third_down_conversions"
	StatRedZoneEfficiency      StatisticType = "red_zone_efficiency"
	StatGoals                  StatisticType = "goals"
	StatAssists                StatisticType = "assists"
	StatOther                  StatisticType = "other"
)

// AllStatisticTypes lists every member of the closed set, in declaration order.
var AllStatisticTypes = []StatisticType{
	StatYellowCards, StatRedCards, StatTotalCards, StatCorners,
	StatShotsOnTarget, StatShotsTotal, StatFouls, StatPossession,
	StatPasses, StatPassAccuracy, StatKeyPasses, StatSaves,
	StatTackles, StatInterceptions, StatFreeKicks, StatPenaltiesAwarded,
	StatPenaltiesScored, StatTechnicalFouls, StatFlagrantFouls,
	StatTurnovers, StatReboundsOffensive, StatReboundsDefensive,
	StatReboundsTotal, StatBlocks, StatSteals, StatThreePointersMade,
	StatThreePointersAttempted, StatFreeThrowsMade, StatFreeThrowsAttempted,
	StatMinutesPlayed, StatPenalties, StatPenaltyYards, StatFumbles,
	StatSacks, StatTimeOfPossession, StatThirdDownConversions,
	StatRedZoneEfficiency, StatGoals, StatAssists, StatOther,
}

// Unit is the measurement unit of a statistic value.
type Unit string

const (
	UnitCount      Unit = "count"
	UnitPercentage Unit = "percentage"
	UnitMinutes    Unit = "minutes"
	UnitYards      Unit = "yards"
	UnitOther      Unit = "other"
)

// UnitFor returns the unit a statistic type is measured in.
func UnitFor(t StatisticType) Unit {
	switch t {
	case StatPossession, StatPassAccuracy, StatRedZoneEfficiency, StatTimeOfPossession:
		return UnitPercentage
	case StatMinutesPlayed:
		return UnitMinutes
	case StatPenaltyYards:
		return UnitYards
	default:
		return UnitCount
	}
}

// Tolerance is the agreement window for values of the given unit: two
// sources corroborate each other when their values differ by less than this.
func Tolerance(u Unit) float64 {
	if u == UnitPercentage {
		return 4
	}
	return 1
}
