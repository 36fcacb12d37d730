package forestlog

import (
	"fmt"
	"strings"
	"time"
)

// ForestType classifies the forest an observation refers to.
type ForestType string

// Supported forest types.
const (
	Tropical    ForestType = "Tropical"
	Temperate   ForestType = "Temperate"
	Boreal      ForestType = "Boreal"
	Subtropical ForestType = "Subtropical"
)

// ChangeType tells whether forest cover was lost or regained.
type ChangeType string

// Supported change types.
const (
	Deforestation ChangeType = "deforestation"
	Reforestation ChangeType = "reforestation"
)

// ForestTypes lists the accepted forest types in form order.
var ForestTypes = []ForestType{Tropical, Temperate, Boreal, Subtropical}

// ChangeTypes lists the accepted change types in form order.
var ChangeTypes = []ChangeType{Deforestation, Reforestation}

// Valid reports whether t is one of ForestTypes.
func (t ForestType) Valid() bool {
	for _, ft := range ForestTypes {
		if t == ft {
			return true
		}
	}
	return false
}

// Valid reports whether c is one of ChangeTypes.
func (c ChangeType) Valid() bool {
	return c == Deforestation || c == Reforestation
}

// Record is one stored forest-change observation.
// ID is derived from the storage key and is not part of the encoded value.
type Record struct {
	ID               string
	ProtectedPayload string
	CreatedAt        int64 // unix seconds
	Location         string
	Year             int
	ForestType       ForestType
	ChangeType       ChangeType
}

// Created returns CreatedAt as a time.Time.
func (r Record) Created() time.Time {
	return time.Unix(r.CreatedAt, 0)
}

// Draft is the user input a Record is built from.
// SatelliteData is free-form and only travels inside the protected payload.
type Draft struct {
	Location      string     `json:"location"`
	Year          int        `json:"year"`
	ForestType    ForestType `json:"forestType"`
	ChangeType    ChangeType `json:"changeType"`
	SatelliteData string     `json:"satelliteData"`
}

// NewDraft returns an empty form: current year, Tropical, deforestation.
func NewDraft(now time.Time) Draft {
	return Draft{
		Year:       now.Year(),
		ForestType: Tropical,
		ChangeType: Deforestation,
	}
}

// normalize fills empty enum fields with the form defaults and trims the location.
func (d Draft) normalize() Draft {
	d.Location = strings.TrimSpace(d.Location)
	if d.ForestType == "" {
		d.ForestType = Tropical
	}
	if d.ChangeType == "" {
		d.ChangeType = Deforestation
	}
	return d
}

// Validate checks the draft locally. It never touches storage.
func (d Draft) Validate() error {
	d = d.normalize()
	if d.Location == "" {
		return fmt.Errorf("%w: location is required", ErrValidation)
	}
	if d.Year == 0 {
		return fmt.Errorf("%w: year is required", ErrValidation)
	}
	if !d.ForestType.Valid() {
		return fmt.Errorf("%w: unknown forest type %q", ErrValidation, d.ForestType)
	}
	if !d.ChangeType.Valid() {
		return fmt.Errorf("%w: unknown change type %q", ErrValidation, d.ChangeType)
	}
	return nil
}
