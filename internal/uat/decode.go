package uat

import (
	"math"
	"strings"
)

// base-40 alphabet of the mode status callsign field
const base40Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ  .."

// DecodeADSB extracts the header and whichever of the SV, MS and AUXSV
// elements the payload type carries. The frame must pass Classify.
func DecodeADSB(frame []byte) (*Message, error) {
	if _, err := Classify(frame); err != nil {
		return nil, err
	}

	msg := &Message{
		Type:             frame[0] >> 3,
		AddressQualifier: AddressQualifier(frame[0] & 0x07),
		Address:          uint32(frame[1])<<16 | uint32(frame[2])<<8 | uint32(frame[3]),
		AirGround:        AirGroundReserved,
	}

	switch msg.Type {
	case 0, 4, 7, 8, 9, 10:
		decodeStateVector(frame, msg)
	case 1:
		decodeStateVector(frame, msg)
		decodeModeStatus(frame, msg)
		decodeAuxStateVector(frame, msg)
	case 2, 5, 6:
		decodeStateVector(frame, msg)
		decodeAuxStateVector(frame, msg)
	case 3:
		decodeStateVector(frame, msg)
		decodeModeStatus(frame, msg)
	}

	return msg, nil
}

func decodeAltitude(raw int) int {
	return (raw-1)*25 - 1000
}

// decodeStateVector decodes payload bytes 4-16.
func decodeStateVector(frame []byte, msg *Message) {
	msg.NIC = frame[11] & 0x0f

	rawLat := uint32(frame[4])<<15 | uint32(frame[5])<<7 | uint32(frame[6])>>1
	rawLon := uint32(frame[6]&0x01)<<23 | uint32(frame[7])<<15 | uint32(frame[8])<<7 | uint32(frame[9])>>1
	if msg.NIC != 0 || rawLat != 0 || rawLon != 0 {
		lat := float64(rawLat) * 360.0 / 16777216.0
		if lat > 90 {
			lat -= 180
		}
		lon := float64(rawLon) * 360.0 / 16777216.0
		if lon > 180 {
			lon -= 360
		}
		msg.Position = &Position{Lat: lat, Lon: lon}
	}

	rawAlt := int(frame[10])<<4 | int(frame[11]&0xf0)>>4
	if rawAlt != 0 {
		altType := AltitudeBaro
		if frame[9]&0x01 != 0 {
			altType = AltitudeGeo
		}
		msg.Altitude = &Altitude{Feet: decodeAltitude(rawAlt), Type: altType}
	}

	msg.AirGround = AirGroundState((frame[12] >> 6) & 0x03)

	switch msg.AirGround {
	case AirborneSubsonic, AirborneSupersonic:
		rawNS := int(frame[12]&0x1f)<<6 | int(frame[13]&0xfc)>>2
		rawEW := int(frame[13]&0x03)<<9 | int(frame[14])<<1 | int(frame[15]&0x80)>>7
		ns, nsValid := decodeVelocity(rawNS, msg.AirGround)
		ew, ewValid := decodeVelocity(rawEW, msg.AirGround)
		if nsValid && ewValid {
			if ns != 0 || ew != 0 {
				track := int(360+90-math.Atan2(float64(ns), float64(ew))*180/math.Pi) % 360
				msg.Track = &Track{Degrees: track, Type: TrackAngle}
			}
			speed := int(math.Sqrt(float64(ns*ns + ew*ew)))
			msg.Speed = &speed
		}

		rawVV := int(frame[15]&0x7f)<<4 | int(frame[16]&0xf0)>>4
		if rawVV&0x1ff != 0 {
			source := AltitudeGeo
			if rawVV&0x400 != 0 {
				source = AltitudeBaro
			}
			rate := ((rawVV & 0x1ff) - 1) * 64
			if rawVV&0x200 != 0 {
				rate = -rate
			}
			msg.VertRate = &VertRate{FPM: rate, Source: source}
		}

	case OnGround:
		rawGS := int(frame[12]&0x1f)<<6 | int(frame[13]&0xfc)>>2
		if rawGS&0x3ff != 0 {
			speed := (rawGS & 0x3ff) - 1
			msg.Speed = &speed
		}

		rawTrack := int(frame[13]&0x03)<<9 | int(frame[14])<<1 | int(frame[15]&0x80)>>7
		var tt TrackType
		switch (rawTrack & 0x600) >> 9 {
		case 1:
			tt = TrackAngle
		case 2:
			tt = TrackMagneticHeading
		case 3:
			tt = TrackTrueHeading
		}
		if tt != 0 {
			msg.Track = &Track{Degrees: (rawTrack & 0x1ff) * 360 / 512, Type: tt}
		}
	}

	if q := msg.AddressQualifier; q == AddrTISBICAO || q == AddrTISBOther {
		msg.TISBSiteID = frame[16] & 0x0f
	} else {
		msg.UTCCoupled = frame[16]&0x08 != 0
	}
}

// decodeVelocity decodes an 11-bit signed-magnitude velocity component.
// Zero magnitude means no data.
func decodeVelocity(raw int, state AirGroundState) (int, bool) {
	if raw&0x3ff == 0 {
		return 0, false
	}
	v := (raw & 0x3ff) - 1
	if raw&0x400 != 0 {
		v = -v
	}
	if state == AirborneSupersonic {
		v *= 4
	}
	return v, true
}

// decodeModeStatus decodes payload bytes 17-28.
func decodeModeStatus(frame []byte, msg *Message) {
	msg.HasModeStatus = true

	var sb strings.Builder
	v := int(frame[17])<<8 | int(frame[18])
	msg.EmitterCategory = uint8((v / 1600) % 40)
	sb.WriteByte(base40Alphabet[(v/40)%40])
	sb.WriteByte(base40Alphabet[v%40])
	for _, i := range []int{19, 21} {
		v = int(frame[i])<<8 | int(frame[i+1])
		sb.WriteByte(base40Alphabet[(v/1600)%40])
		sb.WriteByte(base40Alphabet[(v/40)%40])
		sb.WriteByte(base40Alphabet[v%40])
	}
	callsign := strings.TrimRight(sb.String(), " ")

	msg.Emergency = (frame[23] >> 5) & 0x07
	msg.UATVersion = (frame[23] >> 2) & 0x07
	msg.SIL = frame[23] & 0x03
	msg.TransmitMSO = (frame[24] >> 2) & 0x3f
	msg.NACp = (frame[25] >> 4) & 0x0f
	msg.NACv = (frame[25] >> 1) & 0x07
	msg.NICBaro = frame[25]&0x01 != 0

	if callsign != "" {
		msg.Callsign = callsign
		if frame[26]&0x02 != 0 {
			msg.CallsignType = CallsignFlight
		} else {
			msg.CallsignType = CallsignSquawk
		}
	}
}

// decodeAuxStateVector decodes the secondary altitude in bytes 29-30. It
// is of the opposite type to the primary altitude.
func decodeAuxStateVector(frame []byte, msg *Message) {
	raw := int(frame[29])<<4 | int(frame[30]&0xf0)>>4
	if raw == 0 {
		return
	}
	altType := AltitudeBaro
	if msg.Altitude != nil && msg.Altitude.Type == AltitudeBaro {
		altType = AltitudeGeo
	}
	msg.SecondaryAltitude = &Altitude{Feet: decodeAltitude(raw), Type: altType}
}
