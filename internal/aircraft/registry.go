package aircraft

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"go978/internal/uat"
)

// NonICAOAddress tags addresses that are not globally unique ICAO
// addresses, keeping them apart from an ICAO address with the same bits.
const NonICAOAddress uint32 = 0x1000000

// MaxTextLen bounds callsign and squawk text.
const MaxTextLen = 8

// DefaultExpiry is how long an aircraft is kept without messages.
const DefaultExpiry = 300 * time.Second

// Valid is an optional value. Value is meaningful only when OK is set.
type Valid[T any] struct {
	Value T
	OK    bool
}

// Set stores x and marks it valid.
func (v *Valid[T]) Set(x T) {
	v.Value = x
	v.OK = true
}

// Aircraft is the merged state of one transmitter.
type Aircraft struct {
	Address     uint32 // 24-bit address, NonICAOAddress bit for non-ICAO
	Messages    uint64
	LastSeen    time.Time
	LastSeenPos time.Time
	AirGround   uat.AirGroundState
	Callsign    string
	Squawk      string

	Position Valid[uat.Position]
	Altitude Valid[int] // feet
	Track    Valid[int] // degrees
	Speed    Valid[int] // knots
	VertRate Valid[int] // feet per minute
}

// ICAO reports whether the address is an ICAO address.
func (a *Aircraft) ICAO() bool {
	return a.Address&NonICAOAddress == 0
}

// Hex formats the address as six hex digits, prefixed with '~' for
// non-ICAO addresses.
func (a *Aircraft) Hex() string {
	if a.ICAO() {
		return fmt.Sprintf("%06X", a.Address)
	}
	return fmt.Sprintf("~%06X", a.Address&^NonICAOAddress)
}

// Registry is the table of live aircraft keyed by address. It is not safe
// for concurrent use.
type Registry struct {
	aircraft map[uint32]*Aircraft
	messages uint64
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		aircraft: make(map[uint32]*Aircraft),
	}
}

// Key returns the registry key for a message's address.
func Key(msg *uat.Message) uint32 {
	addr := msg.Address & 0xFFFFFF
	if !msg.AddressQualifier.IsICAO() {
		addr |= NonICAOAddress
	}
	return addr
}

// Get returns the aircraft with the given registry key, or nil.
func (r *Registry) Get(addr uint32) *Aircraft {
	return r.aircraft[addr]
}

// FindOrCreate returns the aircraft for addr, creating it with unknown
// air/ground state and no valid fields if it does not exist yet.
func (r *Registry) FindOrCreate(addr uint32) *Aircraft {
	if a, ok := r.aircraft[addr]; ok {
		return a
	}
	a := &Aircraft{
		Address:   addr,
		AirGround: uat.AirGroundReserved,
	}
	r.aircraft[addr] = a
	return a
}

// Merge folds one decoded message into the table at time now and returns
// the updated aircraft. Only fields present in msg are touched.
func (r *Registry) Merge(msg *uat.Message, now time.Time) *Aircraft {
	r.messages++

	a := r.FindOrCreate(Key(msg))
	a.Messages++
	a.LastSeen = now

	if msg.AirGround != uat.AirGroundReserved {
		a.AirGround = msg.AirGround
	}

	if msg.Position != nil {
		a.Position.Set(*msg.Position)
		a.LastSeenPos = now
	}
	if msg.Altitude != nil {
		a.Altitude.Set(msg.Altitude.Feet)
	}
	if msg.Track != nil {
		a.Track.Set(msg.Track.Degrees)
	}
	if msg.Speed != nil {
		a.Speed.Set(*msg.Speed)
	}
	if msg.VertRate != nil {
		a.VertRate.Set(msg.VertRate.FPM)
	}

	switch msg.CallsignType {
	case uat.CallsignFlight:
		if text := cleanText(msg.Callsign); text != "" {
			a.Callsign = text
		}
	case uat.CallsignSquawk:
		if text := cleanText(msg.Callsign); text != "" {
			a.Squawk = text
		}
	}

	// secondary altitude only fills in when there is no primary
	if msg.SecondaryAltitude != nil && (!a.Altitude.OK || msg.Altitude == nil) {
		a.Altitude.Set(msg.SecondaryAltitude.Feet)
	}

	return a
}

// cleanText trims surrounding spaces and truncates to MaxTextLen
// characters.
func cleanText(s string) string {
	s = strings.TrimSpace(s)
	if r := []rune(s); len(r) > MaxTextLen {
		s = string(r[:MaxTextLen])
	}
	return s
}

// Expire removes every aircraft not seen for more than threshold and
// returns how many were removed. Age is measured in whole seconds, the
// same unit as the published seen value.
func (r *Registry) Expire(now time.Time, threshold time.Duration) int {
	removed := 0
	for addr, a := range r.aircraft {
		age := time.Duration(now.Unix()-a.LastSeen.Unix()) * time.Second
		if age > threshold {
			delete(r.aircraft, addr)
			removed++
		}
	}
	return removed
}

// Len returns the number of aircraft in the table.
func (r *Registry) Len() int { return len(r.aircraft) }

// Messages returns the total number of messages merged.
func (r *Registry) Messages() uint64 { return r.messages }

// Snapshot returns the aircraft sorted by address. The pointers are only
// valid until the next Merge or Expire.
func (r *Registry) Snapshot() []*Aircraft {
	out := make([]*Aircraft, 0, len(r.aircraft))
	for _, a := range r.aircraft {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}
