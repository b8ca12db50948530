package uat

import "fmt"

// AddressQualifier says what kind of address a report carries.
type AddressQualifier uint8

const (
	AddrADSBICAO    AddressQualifier = 0
	AddrNational    AddressQualifier = 1
	AddrTISBICAO    AddressQualifier = 2
	AddrTISBOther   AddressQualifier = 3
	AddrVehicle     AddressQualifier = 4
	AddrFixedBeacon AddressQualifier = 5
	AddrReserved6   AddressQualifier = 6
	AddrReserved7   AddressQualifier = 7
)

// IsICAO reports whether the address is a globally unique ICAO address.
func (q AddressQualifier) IsICAO() bool {
	return q == AddrADSBICAO || q == AddrTISBICAO
}

func (q AddressQualifier) String() string {
	switch q {
	case AddrADSBICAO:
		return "adsb_icao"
	case AddrNational:
		return "national"
	case AddrTISBICAO:
		return "tisb_icao"
	case AddrTISBOther:
		return "tisb_other"
	case AddrVehicle:
		return "vehicle"
	case AddrFixedBeacon:
		return "fixed_beacon"
	}
	return fmt.Sprintf("reserved_%d", uint8(q))
}

// AirGroundState is the air/ground state from the state vector.
type AirGroundState uint8

const (
	AirborneSubsonic   AirGroundState = 0
	AirborneSupersonic AirGroundState = 1
	OnGround           AirGroundState = 2
	AirGroundReserved  AirGroundState = 3 // unknown; never overwrites known state
)

func (s AirGroundState) String() string {
	switch s {
	case AirborneSubsonic:
		return "airborne"
	case AirborneSupersonic:
		return "supersonic"
	case OnGround:
		return "ground"
	}
	return "reserved"
}

// AltitudeType distinguishes barometric from geometric altitude and
// vertical rate sources.
type AltitudeType uint8

const (
	AltitudeBaro AltitudeType = iota
	AltitudeGeo
)

// TrackType says what the track angle measures.
type TrackType uint8

const (
	TrackAngle TrackType = iota + 1
	TrackMagneticHeading
	TrackTrueHeading
)

// CallsignType discriminates the text carried in the mode status element.
type CallsignType uint8

const (
	CallsignNone CallsignType = iota
	CallsignFlight
	CallsignSquawk
)

// Position is a WGS-84 position in degrees.
type Position struct {
	Lat float64
	Lon float64
}

// Altitude in feet.
type Altitude struct {
	Feet int
	Type AltitudeType
}

// Track is a direction in whole degrees.
type Track struct {
	Degrees int
	Type    TrackType
}

// VertRate in feet per minute, positive climbing.
type VertRate struct {
	FPM    int
	Source AltitudeType
}

// Message is a decoded ADS-B payload. Optional fields are nil when the
// frame did not carry them.
type Message struct {
	Type             uint8 // MDB type code
	AddressQualifier AddressQualifier
	Address          uint32 // 24 bits

	// State vector
	NIC               uint8
	Position          *Position
	Altitude          *Altitude
	AirGround         AirGroundState
	Track             *Track
	Speed             *int // knots
	VertRate          *VertRate
	UTCCoupled        bool
	TISBSiteID        uint8
	SecondaryAltitude *Altitude // from AUXSV, opposite type to Altitude

	// Mode status
	HasModeStatus   bool
	EmitterCategory uint8
	CallsignType    CallsignType
	Callsign        string
	Emergency       uint8
	UATVersion      uint8
	SIL             uint8
	TransmitMSO     uint8
	NACp            uint8
	NACv            uint8
	NICBaro         bool
}
