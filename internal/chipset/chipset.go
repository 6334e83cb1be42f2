package chipset

import "fmt"

// Chip is the controller model an attached device was identified as.
// SoC models are ordered so newer protocol revisions compare greater.
type Chip int

const (
	Invalid Chip = iota
	ATH3012
	RomeUSB
	WCN6855
	AR3002
	Rome
	WCN3990
	WCN3998
	WCN3991
	QCA6390
)

var chipNames = map[Chip]string{
	Invalid: "invalid",
	ATH3012: "ath3012",
	RomeUSB: "rome-usb",
	WCN6855: "wcn6855",
	AR3002:  "ar3002",
	Rome:    "rome",
	WCN3990: "wcn3990",
	WCN3998: "wcn3998",
	WCN3991: "wcn3991",
	QCA6390: "qca6390",
}

func (c Chip) String() string {
	if name, ok := chipNames[c]; ok {
		return name
	}
	return fmt.Sprintf("chip(%d)", int(c))
}

// ParseChip returns the chip with the given name.
func ParseChip(name string) (Chip, error) {
	for c, n := range chipNames {
		if c != Invalid && n == name {
			return c, nil
		}
	}
	return Invalid, fmt.Errorf("unknown chip %q", name)
}

// Family groups chips that share a provisioning protocol.
type Family int

const (
	FamilyInvalid Family = iota
	FamilyAth3K
	FamilyUSB
	FamilySoC
)

func (f Family) String() string {
	switch f {
	case FamilyAth3K:
		return "ath3k"
	case FamilyUSB:
		return "usb-nvm"
	case FamilySoC:
		return "soc"
	default:
		return "invalid"
	}
}

// Family returns the protocol family of c.
func (c Chip) Family() Family {
	switch c {
	case ATH3012:
		return FamilyAth3K
	case RomeUSB, WCN6855:
		return FamilyUSB
	case AR3002, Rome, WCN3990, WCN3998, WCN3991, QCA6390:
		return FamilySoC
	default:
		return FamilyInvalid
	}
}

// LateSoC reports whether c talks the WCN3991-and-later EDL dialect.
func (c Chip) LateSoC() bool {
	return c.Family() == FamilySoC && c >= WCN3991
}

// ID is a USB vendor/product pair.
type ID struct {
	Vendor  uint16
	Product uint16
}

func (id ID) String() string {
	return fmt.Sprintf("%04x:%04x", id.Vendor, id.Product)
}

// Entry maps a USB id onto a chip model.
type Entry struct {
	ID   ID
	Chip Chip
}

var table = []Entry{
	// Atheros 3012 with sflash firmware
	{ID{0x0489, 0xe04d}, ATH3012},
	{ID{0x0489, 0xe04e}, ATH3012},
	{ID{0x0489, 0xe056}, ATH3012},
	{ID{0x0489, 0xe057}, ATH3012},
	{ID{0x0489, 0xe05f}, ATH3012},
	{ID{0x0489, 0xe076}, ATH3012},
	{ID{0x0489, 0xe078}, ATH3012},
	{ID{0x0489, 0xe095}, ATH3012},
	{ID{0x04c5, 0x1330}, ATH3012},
	{ID{0x04ca, 0x3004}, ATH3012},
	{ID{0x04ca, 0x3005}, ATH3012},
	{ID{0x04ca, 0x3006}, ATH3012},
	{ID{0x04ca, 0x3007}, ATH3012},
	{ID{0x04ca, 0x3008}, ATH3012},
	{ID{0x04ca, 0x300b}, ATH3012},
	{ID{0x04ca, 0x300d}, ATH3012},
	{ID{0x04ca, 0x300f}, ATH3012},
	{ID{0x04ca, 0x3010}, ATH3012},
	{ID{0x04ca, 0x3014}, ATH3012},
	{ID{0x04ca, 0x3018}, ATH3012},
	{ID{0x0930, 0x0219}, ATH3012},
	{ID{0x0930, 0x021c}, ATH3012},
	{ID{0x0930, 0x0220}, ATH3012},
	{ID{0x0930, 0x0227}, ATH3012},
	{ID{0x0b05, 0x17d0}, ATH3012},
	{ID{0x0cf3, 0x0036}, ATH3012},
	{ID{0x0cf3, 0x3004}, ATH3012},
	{ID{0x0cf3, 0x3008}, ATH3012},
	{ID{0x0cf3, 0x311d}, ATH3012},
	{ID{0x0cf3, 0x311e}, ATH3012},
	{ID{0x0cf3, 0x311f}, ATH3012},
	{ID{0x0cf3, 0x3121}, ATH3012},
	{ID{0x0cf3, 0x817a}, ATH3012},
	{ID{0x0cf3, 0x817b}, ATH3012},
	{ID{0x0cf3, 0xe003}, ATH3012},
	{ID{0x0cf3, 0xe004}, ATH3012},
	{ID{0x0cf3, 0xe005}, ATH3012},
	{ID{0x0cf3, 0xe006}, ATH3012},
	{ID{0x13d3, 0x3362}, ATH3012},
	{ID{0x13d3, 0x3375}, ATH3012},
	{ID{0x13d3, 0x3393}, ATH3012},
	{ID{0x13d3, 0x3395}, ATH3012},
	{ID{0x13d3, 0x3402}, ATH3012},
	{ID{0x13d3, 0x3408}, ATH3012},
	{ID{0x13d3, 0x3423}, ATH3012},
	{ID{0x13d3, 0x3432}, ATH3012},
	{ID{0x13d3, 0x3472}, ATH3012},
	{ID{0x13d3, 0x3474}, ATH3012},
	{ID{0x13d3, 0x3487}, ATH3012},
	{ID{0x13d3, 0x3490}, ATH3012},

	// AR5BBU12
	{ID{0x0489, 0xe036}, ATH3012},
	{ID{0x0489, 0xe03c}, ATH3012},

	// Rome USB
	{ID{0x0cf3, 0x535b}, RomeUSB},
	{ID{0x0cf3, 0xe007}, RomeUSB},
	{ID{0x0cf3, 0xe009}, RomeUSB},
	{ID{0x0cf3, 0xe010}, RomeUSB},
	{ID{0x0cf3, 0xe300}, RomeUSB},
	{ID{0x0cf3, 0xe301}, RomeUSB},
	{ID{0x0cf3, 0xe360}, RomeUSB},
	{ID{0x0489, 0xe092}, RomeUSB},
	{ID{0x0489, 0xe09f}, RomeUSB},
	{ID{0x0489, 0xe0a2}, RomeUSB},
	{ID{0x04ca, 0x3011}, RomeUSB},
	{ID{0x04ca, 0x3015}, RomeUSB},
	{ID{0x04ca, 0x3016}, RomeUSB},
	{ID{0x04ca, 0x301a}, RomeUSB},
	{ID{0x04ca, 0x3021}, RomeUSB},
	{ID{0x13d3, 0x3491}, RomeUSB},
	{ID{0x13d3, 0x3496}, RomeUSB},
	{ID{0x13d3, 0x3501}, RomeUSB},

	{ID{0x0cf3, 0xe600}, WCN6855},

	{ID{0x0cf3, 0x6390}, QCA6390},
}

// Identify returns the chip registered for (vendor, product), or Invalid.
func Identify(vendor, product uint16) Chip {
	id := ID{vendor, product}
	for _, e := range table {
		if e.ID == id {
			return e.Chip
		}
	}
	return Invalid
}

// Table returns a copy of the identification table.
func Table() []Entry {
	out := make([]Entry, len(table))
	copy(out, table)
	return out
}
