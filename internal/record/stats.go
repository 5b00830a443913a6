package record

// BatterStats is a batting stat record for one season (WindowYears == 1) or
// a trailing window of seasons ending at Year.
type BatterStats struct {
	PlayerID    string `csv:"player_id"`
	Year        int    `csv:"year" feature:"-"`
	WindowYears int    `csv:"window_years" feature:"-"`

	G       *float64 `csv:"G"`
	PA      *float64 `csv:"PA"`
	AB      *float64 `csv:"AB"`
	R       *float64 `csv:"R"`
	H       *float64 `csv:"H"`
	Doubles *float64 `csv:"2B"`
	Triples *float64 `csv:"3B"`
	HR      *float64 `csv:"HR"`
	RBI     *float64 `csv:"RBI"`
	SB      *float64 `csv:"SB"`
	CS      *float64 `csv:"CS"`
	BB      *float64 `csv:"BB"`
	IBB     *float64 `csv:"IBB"`
	SO      *float64 `csv:"SO"`
	HBP     *float64 `csv:"HBP"`
	SF      *float64 `csv:"SF"`
	SH      *float64 `csv:"SH"`
	GDP     *float64 `csv:"GDP"`

	AVG   *float64 `csv:"AVG"`
	OBP   *float64 `csv:"OBP"`
	SLG   *float64 `csv:"SLG"`
	OPS   *float64 `csv:"OPS"`
	ISO   *float64 `csv:"ISO"`
	BABIP *float64 `csv:"BABIP"`
	WOBA  *float64 `csv:"wOBA"`
	WRC   *float64 `csv:"wRC+"`
	WAR   *float64 `csv:"WAR"`

	BBPct      *float64 `csv:"BB%"`
	KPct       *float64 `csv:"K%"`
	OSwingPct  *float64 `csv:"O-Swing%"`
	ZSwingPct  *float64 `csv:"Z-Swing%"`
	ContactPct *float64 `csv:"Contact%"`
	GBPct      *float64 `csv:"GB%"`
	FBPct      *float64 `csv:"FB%"`
	LDPct      *float64 `csv:"LD%"`
	HardPct    *float64 `csv:"Hard%"`
}

// Key returns the composite (player, year, window) key.
func (s BatterStats) Key() string { return StatKey(s.PlayerID, s.Year, s.WindowYears) }

// PitcherStats is a pitching stat record for one season (WindowYears == 1)
// or a trailing window of seasons ending at Year.
type PitcherStats struct {
	PlayerID    string `csv:"player_id"`
	Year        int    `csv:"year" feature:"-"`
	WindowYears int    `csv:"window_years" feature:"-"`

	W   *float64 `csv:"W"`
	L   *float64 `csv:"L"`
	ERA *float64 `csv:"ERA"`
	G   *float64 `csv:"G"`
	GS  *float64 `csv:"GS"`
	CG  *float64 `csv:"CG"`
	ShO *float64 `csv:"ShO"`
	SV  *float64 `csv:"SV"`
	HLD *float64 `csv:"HLD"`
	BS  *float64 `csv:"BS"`
	IP  *float64 `csv:"IP"`
	TBF *float64 `csv:"TBF"`
	H   *float64 `csv:"H"`
	R   *float64 `csv:"R"`
	ER  *float64 `csv:"ER"`
	HR  *float64 `csv:"HR"`
	BB  *float64 `csv:"BB"`
	IBB *float64 `csv:"IBB"`
	HBP *float64 `csv:"HBP"`
	WP  *float64 `csv:"WP"`
	BK  *float64 `csv:"BK"`
	SO  *float64 `csv:"SO"`

	K9    *float64 `csv:"K/9"`
	BB9   *float64 `csv:"BB/9"`
	HR9   *float64 `csv:"HR/9"`
	KBB   *float64 `csv:"K/BB"`
	WHIP  *float64 `csv:"WHIP"`
	AVG   *float64 `csv:"AVG"`
	BABIP *float64 `csv:"BABIP"`
	LOB   *float64 `csv:"LOB%"`
	FIP   *float64 `csv:"FIP"`
	XFIP  *float64 `csv:"xFIP"`
	WAR   *float64 `csv:"WAR"`

	KPct     *float64 `csv:"K%"`
	BBPct    *float64 `csv:"BB%"`
	GBPct    *float64 `csv:"GB%"`
	FBPct    *float64 `csv:"FB%"`
	LDPct    *float64 `csv:"LD%"`
	SwStrPct *float64 `csv:"SwStr%"`
}

// Key returns the composite (player, year, window) key.
func (s PitcherStats) Key() string { return StatKey(s.PlayerID, s.Year, s.WindowYears) }

// StatKind selects the batting or pitching variant of a stat record.
type StatKind string

const (
	Batting  StatKind = "bat"
	Pitching StatKind = "pit"
)
