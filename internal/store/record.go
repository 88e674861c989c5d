package store

import (
	"github.com/wildtrack-data/ethogram/internal/behavior"
	"github.com/wildtrack-data/ethogram/internal/quantize"
)

// Boolean flag bits packed into record.flags.
const (
	flagRepeated = 1 << iota
	flagGroup
	flagHumanInteraction
)

// record is the fixed-size compressed encoding of one observation plus its
// environmental context. Only the store touches records; queries hand out
// decompressed copies.
type record struct {
	timestamp   int64
	behavior    uint8
	speciesID   uint8
	confidence  uint8
	durationMin uint8
	activity    uint8
	stress      uint8
	animalCount uint8
	flags       uint8
	tempQ       uint8
	humidityQ   uint8
	lightQ      uint8
}

// recordBytes is the in-memory footprint of one record: 8 bytes of timestamp
// plus 11 payload bytes, padded to the struct's 8-byte alignment.
const recordBytes = 24

// rawRecord keeps the full-precision observation for stores configured with
// compression disabled.
type rawRecord struct {
	obs behavior.Observation
	env behavior.Environment
}

// rawRecordBytes approximates the in-memory footprint of an uncompressed
// record: both structs plus string header and typical species name.
const rawRecordBytes = 144

func compress(obs behavior.Observation, env behavior.Environment, speciesID uint8) record {
	var flags uint8
	if obs.Repeated {
		flags |= flagRepeated
	}
	if obs.Group {
		flags |= flagGroup
	}
	if obs.HumanInteraction {
		flags |= flagHumanInteraction
	}
	return record{
		timestamp:   obs.TimestampUnix,
		behavior:    uint8(obs.Behavior),
		speciesID:   speciesID,
		confidence:  quantize.Unit01(obs.Confidence),
		durationMin: quantize.DurationMinutes(obs.DurationSeconds),
		activity:    quantize.Unit01(obs.ActivityLevel),
		stress:      quantize.Unit01(obs.StressLevel),
		animalCount: quantize.Count(obs.AnimalCount),
		flags:       flags,
		tempQ:       quantize.Temperature(env.TemperatureC),
		humidityQ:   quantize.Humidity(env.HumidityPct),
		lightQ:      quantize.Unit01(env.LightLevel),
	}
}

func (r record) decompress(species string) (behavior.Observation, behavior.Environment) {
	obs := behavior.Observation{
		Species:          species,
		Behavior:         behavior.BehaviorType(r.behavior),
		Confidence:       quantize.Unit01Value(r.confidence),
		DurationSeconds:  quantize.DurationSeconds(r.durationMin),
		ActivityLevel:    quantize.Unit01Value(r.activity),
		StressLevel:      quantize.Unit01Value(r.stress),
		AnimalCount:      int(r.animalCount),
		Repeated:         r.flags&flagRepeated != 0,
		Group:            r.flags&flagGroup != 0,
		HumanInteraction: r.flags&flagHumanInteraction != 0,
		TimestampUnix:    r.timestamp,
	}
	env := behavior.Environment{
		TemperatureC:  quantize.TemperatureValue(r.tempQ),
		HumidityPct:   quantize.HumidityValue(r.humidityQ),
		LightLevel:    quantize.Unit01Value(r.lightQ),
		TimestampUnix: r.timestamp,
	}
	return obs, env
}

// speciesDict interns species names to one-byte IDs. ID 0 is reserved for
// the unknown/wildcard species. The dictionary is append-only and capped at
// 255 named species; later species fold into the unknown bucket.
type speciesDict struct {
	ids   map[string]uint8
	names []string
}

func newSpeciesDict() *speciesDict {
	return &speciesDict{
		ids:   make(map[string]uint8),
		names: []string{""},
	}
}

func (d *speciesDict) intern(name string) uint8 {
	if name == "" {
		return 0
	}
	if id, ok := d.ids[name]; ok {
		return id
	}
	if len(d.names) > 255 {
		return 0
	}
	id := uint8(len(d.names))
	d.ids[name] = id
	d.names = append(d.names, name)
	return id
}

func (d *speciesDict) lookup(name string) (uint8, bool) {
	if name == "" {
		return 0, true
	}
	id, ok := d.ids[name]
	return id, ok
}

func (d *speciesDict) name(id uint8) string {
	if int(id) < len(d.names) {
		return d.names[id]
	}
	return ""
}

func (d *speciesDict) bytes() int {
	n := 0
	for name := range d.ids {
		// map entry overhead plus string payload
		n += 24 + len(name)
	}
	return n
}
