package validate

import "github.com/arbiterlab/sportsresolve/core"

// rangeRule bounds a statistic type. Values outside [Min, Max] are invalid;
// values outside Typical are merely unusual and produce a warning.
type rangeRule struct {
	Min     float64
	Max     float64
	Typical [2]float64
}

// Per-match bounds. Typical bands are wide on purpose: they flag data entry
// glitches, not close games.
var rangeRules = map[core.StatisticType]rangeRule{
	core.StatYellowCards:            {0, 15, [2]float64{0, 8}},
	core.StatRedCards:               {0, 5, [2]float64{0, 2}},
	core.StatTotalCards:             {0, 20, [2]float64{0, 10}},
	core.StatCorners:                {0, 30, [2]float64{2, 16}},
	core.StatShotsOnTarget:          {0, 30, [2]float64{1, 15}},
	core.StatShotsTotal:             {0, 60, [2]float64{4, 30}},
	core.StatFouls:                  {0, 50, [2]float64{5, 30}},
	core.StatPossession:             {0, 100, [2]float64{25, 75}},
	core.StatPasses:                 {0, 1500, [2]float64{150, 900}},
	core.StatPassAccuracy:           {0, 100, [2]float64{50, 95}},
	core.StatKeyPasses:              {0, 40, [2]float64{2, 20}},
	core.StatSaves:                  {0, 20, [2]float64{0, 10}},
	core.StatTackles:                {0, 60, [2]float64{5, 35}},
	core.StatInterceptions:          {0, 40, [2]float64{2, 25}},
	core.StatFreeKicks:              {0, 40, [2]float64{5, 25}},
	core.StatPenaltiesAwarded:       {0, 5, [2]float64{0, 2}},
	core.StatPenaltiesScored:        {0, 5, [2]float64{0, 2}},
	core.StatTechnicalFouls:         {0, 10, [2]float64{0, 3}},
	core.StatFlagrantFouls:          {0, 5, [2]float64{0, 2}},
	core.StatTurnovers:              {0, 40, [2]float64{8, 25}},
	core.StatReboundsOffensive:      {0, 30, [2]float64{5, 18}},
	core.StatReboundsDefensive:      {0, 50, [2]float64{20, 40}},
	core.StatReboundsTotal:          {0, 80, [2]float64{30, 60}},
	core.StatBlocks:                 {0, 20, [2]float64{2, 12}},
	core.StatSteals:                 {0, 25, [2]float64{3, 15}},
	core.StatThreePointersMade:      {0, 35, [2]float64{5, 22}},
	core.StatThreePointersAttempted: {0, 70, [2]float64{20, 50}},
	core.StatFreeThrowsMade:         {0, 60, [2]float64{10, 35}},
	core.StatFreeThrowsAttempted:    {0, 70, [2]float64{12, 45}},
	core.StatMinutesPlayed:          {0, 70, [2]float64{10, 48}},
	core.StatPenalties:              {0, 20, [2]float64{0, 12}},
	core.StatPenaltyYards:           {0, 200, [2]float64{20, 120}},
	core.StatFumbles:                {0, 10, [2]float64{0, 4}},
	core.StatSacks:                  {0, 15, [2]float64{0, 8}},
	core.StatTimeOfPossession:       {0, 100, [2]float64{35, 65}},
	core.StatThirdDownConversions:   {0, 20, [2]float64{2, 12}},
	core.StatRedZoneEfficiency:      {0, 100, [2]float64{20, 90}},
	core.StatGoals:                  {0, 20, [2]float64{0, 8}},
	core.StatAssists:                {0, 50, [2]float64{5, 35}},
	core.StatOther:                  {0, 10000, [2]float64{0, 1000}},
}
