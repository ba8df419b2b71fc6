// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package link carries operator stick frames from the ground station to the
// pilot loop. Frames travel as a proprietary NMEA 0183 sentence:
//
//	$PSTK,<lx>,<ly>,<rx>,<ry>,<keys>*CS
//
// with axes in [-1, 1] and keys the decimal flight.Keys bit set. The same
// text is used on the serial line and as the MQTT payload.
package link

import (
	"fmt"
	"strings"

	nmea "github.com/adrianmo/go-nmea"
	"github.com/go-gl/mathgl/mgl64"

	"github.com/relabs-tech/flight_computer/internal/flight"
)

// TypeSticks is the data type of the stick sentence; the talker is the
// proprietary "P".
const TypeSticks = "STK"

// Sticks is a decoded stick sentence.
type Sticks struct {
	nmea.BaseSentence
	Input flight.RawInput
}

func parseSticks(s nmea.BaseSentence) (nmea.Sentence, error) {
	p := nmea.NewParser(s)
	p.AssertType(TypeSticks)
	lx := p.Float64(0, "left x")
	ly := p.Float64(1, "left y")
	rx := p.Float64(2, "right x")
	ry := p.Float64(3, "right y")
	keys := p.Int64(4, "keys")
	if err := p.Err(); err != nil {
		return nil, err
	}
	if keys < 0 {
		return nil, fmt.Errorf("nmea: %s invalid keys: %d", s.Prefix(), keys)
	}
	return Sticks{
		BaseSentence: s,
		Input: flight.RawInput{
			Left:  mgl64.Vec2{lx, ly},
			Right: mgl64.Vec2{rx, ry},
			Keys:  flight.Keys(keys),
		},
	}, nil
}

var sentenceParser = nmea.SentenceParser{
	CustomParsers: map[string]nmea.ParserFunc{
		TypeSticks: parseSticks,
	},
}

// Decode parses one stick sentence. Checksums are verified.
func Decode(line string) (flight.RawInput, error) {
	s, err := sentenceParser.Parse(strings.TrimSpace(line))
	if err != nil {
		return flight.RawInput{}, fmt.Errorf("decode sticks: %w", err)
	}
	st, ok := s.(Sticks)
	if !ok {
		return flight.RawInput{}, fmt.Errorf("decode sticks: unexpected sentence %s", s.Prefix())
	}
	return st.Input, nil
}

// Encode renders a stick frame as a sentence, without line terminator.
func Encode(in flight.RawInput) string {
	body := fmt.Sprintf("P%s,%.3f,%.3f,%.3f,%.3f,%d",
		TypeSticks, in.Left.X(), in.Left.Y(), in.Right.X(), in.Right.Y(), uint32(in.Keys))
	return "$" + body + "*" + nmea.Checksum(body)
}
