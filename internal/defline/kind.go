package defline

// Kind identifies the naming convention an identifier line follows.
type Kind uint8

// Defline variants. The trial order used by Classify is held separately in
// order; the numeric values carry no priority.
const (
	Undefined Kind = iota
	NanoporeChannel
	NanoporeBasecall
	NanoporeFast5
	BGI
	NanoporeUUID
	PacBio
	SRAPrefixed
	TraceArchive
	QiimeDemux
	IlluminaNewUMI
	IlluminaNew
	IlluminaNewBare
	IlluminaOld
	IonTorrent
	LS454
	ABSolid
	Helicos
	CasavaComment
	GenericSpotGroup
	GenericSlashRead
	GenericTrailingDigit
	Generic
	numKinds
)

var kindNames = [numKinds]string{
	Undefined:            "undefined",
	NanoporeChannel:      "nanopore-channel",
	NanoporeBasecall:     "nanopore-basecall",
	NanoporeFast5:        "nanopore-fast5",
	BGI:                  "bgi",
	NanoporeUUID:         "nanopore-uuid",
	PacBio:               "pacbio",
	SRAPrefixed:          "sra",
	TraceArchive:         "trace-archive",
	QiimeDemux:           "qiime",
	IlluminaNewUMI:       "illumina-new-umi",
	IlluminaNew:          "illumina-new",
	IlluminaNewBare:      "illumina-new-bare",
	IlluminaOld:          "illumina-old",
	IonTorrent:           "ion-torrent",
	LS454:                "ls454",
	ABSolid:              "ab-solid",
	Helicos:              "helicos",
	CasavaComment:        "casava-comment",
	GenericSpotGroup:     "generic-spot-group",
	GenericSlashRead:     "generic-slash-read",
	GenericTrailingDigit: "generic-trailing-digit",
	Generic:              "generic",
}

func (k Kind) String() string {
	if k < numKinds {
		return kindNames[k]
	}
	return "unknown"
}

// Platform is the sequencing platform implied by a Kind.
type Platform uint8

// Platforms.
const (
	PlatformUndefined Platform = iota
	PlatformIllumina
	PlatformLS454
	PlatformIonTorrent
	PlatformPacBio
	PlatformNanopore
	PlatformABSolid
	PlatformHelicos
	PlatformBGI
	PlatformCapillary
)

var platformNames = [...]string{
	PlatformUndefined:  "undefined",
	PlatformIllumina:   "illumina",
	PlatformLS454:      "ls454",
	PlatformIonTorrent: "ion-torrent",
	PlatformPacBio:     "pacbio",
	PlatformNanopore:   "nanopore",
	PlatformABSolid:    "ab-solid",
	PlatformHelicos:    "helicos",
	PlatformBGI:        "bgi",
	PlatformCapillary:  "capillary",
}

func (p Platform) String() string {
	if int(p) < len(platformNames) {
		return platformNames[p]
	}
	return "unknown"
}

// Platform returns the platform that produces deflines of kind k.
func (k Kind) Platform() Platform {
	switch k {
	case NanoporeChannel, NanoporeBasecall, NanoporeFast5, NanoporeUUID:
		return PlatformNanopore
	case BGI:
		return PlatformBGI
	case PacBio:
		return PlatformPacBio
	case TraceArchive:
		return PlatformCapillary
	case IlluminaNewUMI, IlluminaNew, IlluminaNewBare, IlluminaOld, CasavaComment, QiimeDemux:
		return PlatformIllumina
	case IonTorrent:
		return PlatformIonTorrent
	case LS454:
		return PlatformLS454
	case ABSolid:
		return PlatformABSolid
	case Helicos:
		return PlatformHelicos
	}
	return PlatformUndefined
}

// PoreRead is the nanopore strand designation.
type PoreRead uint8

// Nanopore strands, in mate order.
const (
	PoreNone PoreRead = iota
	PoreTemplate
	PoreComplement
	Pore2D
)

func (p PoreRead) String() string {
	switch p {
	case PoreTemplate:
		return "template"
	case PoreComplement:
		return "complement"
	case Pore2D:
		return "2D"
	}
	return ""
}

func parsePoreRead(s string) PoreRead {
	switch s {
	case "template":
		return PoreTemplate
	case "complement":
		return PoreComplement
	case "2D", "2d", "twodirections":
		return Pore2D
	}
	return PoreNone
}
