package defline

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

type pattern struct {
	kind    Kind
	re      *regexp.Regexp
	extract func(m []string, d *Defline) bool
}

const uuidRe = `[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`

// casava matches the Casava 1.8 comment "<read>:<filtered>:<control>:<index>".
var casava = regexp.MustCompile(`^([1-6]):([YN]):(\d+):?(\S*)$`)

var (
	nanoChanRead = regexp.MustCompile(`_ch(\d+)_read(\d+)_`)
	nanoReadKey  = regexp.MustCompile(`\bread=(\d+)`)
	nanoChKey    = regexp.MustCompile(`\bch=(\d+)`)
	nanoBarcode  = regexp.MustCompile(`\bbarcode=(\S+)`)
)

// patterns is the classification order. Platform-specific literal markers
// come first; generic shapes that would shadow them come last.
var patterns = []*pattern{
	{
		kind: NanoporeChannel,
		re:   regexp.MustCompile(`^(\S*?channel_(\d+)_read_(\d+))(?:_(template|complement|twodirections|2[dD]))?(?:\s|$)`),
		extract: func(m []string, d *Defline) bool {
			d.Name = m[1]
			d.Channel = atoi(m[2])
			d.NanoReadNo = atoi(m[3])
			d.PoreRead = parsePoreRead(m[4])
			return true
		},
	},
	{
		kind: NanoporeBasecall,
		re:   regexp.MustCompile(`^(` + uuidRe + `)_Basecall(?:_[12]D)?(?:_\d+)?_(template|complement|2[dD])(?:\s+(\S+))?`),
		extract: func(m []string, d *Defline) bool {
			if _, err := uuid.Parse(m[1]); err != nil {
				return false
			}
			d.Name = m[1]
			d.PoreRead = parsePoreRead(m[2])
			if cr := nanoChanRead.FindStringSubmatch(m[3]); cr != nil {
				d.Channel = atoi(cr[1])
				d.NanoReadNo = atoi(cr[2])
			}
			return true
		},
	},
	{
		kind: NanoporeFast5,
		re:   regexp.MustCompile(`^(\S*?_ch(\d+)_file(\d+)_strand\S*?)(?:\.fast5)?(?:[:_.](template|complement|twodirections|2[dD]))?(?:\s|$)`),
		extract: func(m []string, d *Defline) bool {
			d.Name = m[1]
			d.Channel = atoi(m[2])
			d.NanoReadNo = atoi(m[3])
			d.PoreRead = parsePoreRead(m[4])
			return true
		},
	},
	{
		kind: BGI,
		re:   regexp.MustCompile(`^(([A-Z0-9]{10})L(\d)C(\d{3})R(\d{3})(\d{6,8}))(?:/([1-6]))?(?:\s+(\S+))?(?:\s|$)`),
		extract: func(m []string, d *Defline) bool {
			d.Name = m[1]
			d.Lane = m[3]
			d.X = m[4]
			d.Y = m[5]
			d.ReadNum = atoi(m[7])
			applyCasava(m[8], d)
			return true
		},
	},
	{
		kind: NanoporeUUID,
		re:   regexp.MustCompile(`^(` + uuidRe + `)(?:\s+(.*))?$`),
		extract: func(m []string, d *Defline) bool {
			if _, err := uuid.Parse(m[1]); err != nil {
				return false
			}
			d.Name = m[1]
			if k := nanoReadKey.FindStringSubmatch(m[2]); k != nil {
				d.NanoReadNo = atoi(k[1])
			}
			if k := nanoChKey.FindStringSubmatch(m[2]); k != nil {
				d.Channel = atoi(k[1])
			}
			if k := nanoBarcode.FindStringSubmatch(m[2]); k != nil && k[1] != "unclassified" {
				d.SpotGroup = k[1]
			}
			return true
		},
	},
	{
		kind: PacBio,
		re:   regexp.MustCompile(`^((m\d+[eEuU]?_\d{6}(?:_[^/\s]+)?)/(\d+)(?:/(?:\d+_\d+|ccs(?:/\S+)?))?)(?:\s|$)`),
		extract: func(m []string, d *Defline) bool {
			d.Name = m[1]
			d.Movie = m[2]
			d.ZMW = m[3]
			return true
		},
	},
	{
		kind: SRAPrefixed,
		re:   regexp.MustCompile(`^([SDE]RR\d+\.\d+)(?:\.([1-6]))?(?:\s+(\S+))?(?:\s|$)`),
		extract: func(m []string, d *Defline) bool {
			d.Name = m[1]
			d.ReadNum = atoi(m[2])
			if m[3] != "" && !strings.HasPrefix(m[3], "length=") {
				d.OrigName = m[3]
				if d.ReadNum == 0 {
					if i := strings.LastIndexByte(m[3], '/'); i >= 0 {
						d.ReadNum = readNum(m[3][i+1:])
					}
				}
			}
			return true
		},
	},
	{
		kind: TraceArchive,
		re:   regexp.MustCompile(`^gnl\|ti\|(\d+)(?:\s+name:(\S+))?`),
		extract: func(m []string, d *Defline) bool {
			d.Name = m[1]
			d.OrigName = m[2]
			return true
		},
	},
	{
		kind: QiimeDemux,
		re:   regexp.MustCompile(`^(\S+?)_(\d+)\s+(\S+?)(?:/([1-6]))?(?:\s+(\S+))?\s.*\borig_bc=(\S+)`),
		extract: func(m []string, d *Defline) bool {
			d.Name = m[3]
			d.OrigName = m[1] + "_" + m[2]
			d.ReadNum = atoi(m[4])
			applyCasava(m[5], d)
			// the sample id replaces any index from the comment
			d.SpotGroup = m[1]
			return true
		},
	},
	{
		kind: IlluminaNewUMI,
		re:   regexp.MustCompile(`^(([^:\s]+):(\d+):([^:\s]+):(\d+):(\d+):(-?\d+):(-?\d+)):([ACGTN+]+)\s+([1-6]):([YN]):(\d+):?(\S*)`),
		extract: func(m []string, d *Defline) bool {
			illuminaCoords(m, d)
			d.ReadNum = atoi(m[10])
			d.Filtered = m[11] == "Y"
			d.SpotGroup = m[13]
			return true
		},
	},
	{
		kind: IlluminaNew,
		re:   regexp.MustCompile(`^(([^:\s]+):(\d+):([^:\s]+):(\d+):(\d+):(-?\d+):(-?\d+))(?:/[1-6])?\s+([1-6]):([YN]):(\d+):?(\S*)`),
		extract: func(m []string, d *Defline) bool {
			illuminaCoords(m, d)
			d.ReadNum = atoi(m[9])
			d.Filtered = m[10] == "Y"
			d.SpotGroup = m[12]
			return true
		},
	},
	{
		kind: IlluminaNewBare,
		re:   regexp.MustCompile(`^(([^:\s]+):(\d+):([^:\s]+):(\d+):(\d+):(-?\d+):(-?\d+))(?:#([^/\s]+))?(?:/([1-6]))?(?:\s|$)`),
		extract: func(m []string, d *Defline) bool {
			illuminaCoords(m, d)
			d.SpotGroup = m[9]
			d.ReadNum = atoi(m[10])
			return true
		},
	},
	{
		kind: IlluminaOld,
		re:   regexp.MustCompile(`^(([^:\s]+?)[:_](\d+)[:_](\d+)[:_](-?\d+)[:_](-?\d+))(?:#([^/\s]*))?(?:/([1-6]))?(?:\s|$)`),
		extract: func(m []string, d *Defline) bool {
			d.Name = m[1]
			d.Lane = m[3]
			d.Tile = m[4]
			d.X = m[5]
			d.Y = m[6]
			d.SpotGroup = m[7]
			d.ReadNum = atoi(m[8])
			return true
		},
	},
	{
		kind: IonTorrent,
		re:   regexp.MustCompile(`^(([A-Z0-9]{5}):(\d{1,5}):(\d{1,5}))(?:[/_#]([1-6]))?(?:\s|$)`),
		extract: func(m []string, d *Defline) bool {
			d.Name = m[1]
			d.X = m[3]
			d.Y = m[4]
			d.ReadNum = atoi(m[5])
			return true
		},
	},
	{
		kind: LS454,
		re:   regexp.MustCompile(`^(([A-Z0-9]{7})([0-9]{2})([A-Z0-9]{5}))(?:[_/]([1-6]))?(?:\s|$)`),
		extract: func(m []string, d *Defline) bool {
			d.Name = m[1]
			d.Region = m[3]
			d.ReadNum = atoi(m[5])
			return true
		},
	},
	{
		kind: ABSolid,
		re:   regexp.MustCompile(`^((?:\S+?_)?(\d+)_(-?\d+)_(-?\d+))_(F3|R3|F5-P2|F5-BC|F5-RNA|F5-DNA|BC)(?:\s|$)`),
		extract: func(m []string, d *Defline) bool {
			d.Name = m[1]
			d.Panel = m[2]
			d.X = m[3]
			d.Y = m[4]
			d.TagType = m[5]
			return true
		},
	},
	{
		kind: Helicos,
		re:   regexp.MustCompile(`^(VHE-\d+-\d+-\d+-\d+-\d+)(?:\s|$)`),
		extract: func(m []string, d *Defline) bool {
			d.Name = m[1]
			return true
		},
	},
	{
		kind: CasavaComment,
		re:   regexp.MustCompile(`^(\S+?)(?:/[1-6])?\s+([1-6]):([YN]):(\d+):?(\S*)`),
		extract: func(m []string, d *Defline) bool {
			d.Name = m[1]
			d.ReadNum = atoi(m[2])
			d.Filtered = m[3] == "Y"
			d.SpotGroup = m[5]
			return true
		},
	},
	{
		kind: GenericSpotGroup,
		re:   regexp.MustCompile(`^([^#\s]+)#([^/\s]+)(?:/([1-6]))?(?:\s|$)`),
		extract: func(m []string, d *Defline) bool {
			d.Name = m[1]
			d.SpotGroup = m[2]
			d.ReadNum = atoi(m[3])
			return true
		},
	},
	{
		kind: GenericSlashRead,
		re:   regexp.MustCompile(`^(\S+)/([1-6])(?:\s|$)`),
		extract: func(m []string, d *Defline) bool {
			d.Name = m[1]
			d.ReadNum = atoi(m[2])
			return true
		},
	},
	{
		kind: GenericTrailingDigit,
		re:   regexp.MustCompile(`^(\S+?)[._]([1-6])(?:\s|$)`),
		extract: func(m []string, d *Defline) bool {
			d.Name = m[1]
			d.ReadNum = atoi(m[2])
			return true
		},
	},
	{
		kind: Generic,
		re:   regexp.MustCompile(`^(\S+)`),
		extract: func(m []string, d *Defline) bool {
			d.Name = m[1]
			return true
		},
	},
}

var byKind [numKinds]*pattern

func init() {
	for _, p := range patterns {
		byKind[p.kind] = p
	}
}

func patternFor(k Kind) *pattern {
	if k < numKinds {
		return byKind[k]
	}
	return nil
}

// Order returns the variants in classification order.
func Order() []Kind {
	out := make([]Kind, len(patterns))
	for i, p := range patterns {
		out[i] = p.kind
	}
	return out
}

func illuminaCoords(m []string, d *Defline) {
	d.Name = m[1]
	d.Lane = m[5]
	d.Tile = m[6]
	d.X = m[7]
	d.Y = m[8]
}

func applyCasava(comment string, d *Defline) {
	c := casava.FindStringSubmatch(comment)
	if c == nil {
		return
	}
	if d.ReadNum == 0 {
		d.ReadNum = atoi(c[1])
	}
	d.Filtered = c[2] == "Y"
	if d.SpotGroup == "" {
		d.SpotGroup = c[4]
	}
}

func readNum(s string) int {
	if len(s) == 1 && s[0] >= '1' && s[0] <= '6' {
		return int(s[0] - '0')
	}
	return 0
}

func atoi(s string) int {
	if s == "" {
		return 0
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return v
}
