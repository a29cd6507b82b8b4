package hl7

import "time"

// MessageType identifies the HL7 message structure being produced.
type MessageType string

const (
	// MessageTypeORU is an unsolicited observation result (ORU^R01).
	MessageTypeORU MessageType = "ORU^R01"
)

// Gender is the administrative sex of a patient.
type Gender int

const (
	GenderUnknown Gender = iota
	GenderMale
	GenderFemale
	GenderOther
)

// ParseGender maps an HL7 sex code to a Gender. Unrecognized codes map to
// GenderUnknown.
func ParseGender(code string) Gender {
	switch code {
	case "M":
		return GenderMale
	case "F":
		return GenderFemale
	case "O":
		return GenderOther
	default:
		return GenderUnknown
	}
}

// Code returns the HL7 sex code for g.
func (g Gender) Code() string {
	switch g {
	case GenderMale:
		return "M"
	case GenderFemale:
		return "F"
	case GenderOther:
		return "O"
	default:
		return "U"
	}
}

// ObservationStatus is the abnormality assessment of a single result.
type ObservationStatus int

const (
	StatusUnknown ObservationStatus = iota
	StatusNormal
	StatusAbnormal
	StatusCritical
	StatusPending
)

// ParseStatus maps an HL7 abnormal-flag code to an ObservationStatus.
// "H" (high) and "L" (low) both normalize to StatusAbnormal; unrecognized
// codes normalize to StatusUnknown.
func ParseStatus(code string) ObservationStatus {
	switch code {
	case "N":
		return StatusNormal
	case "A", "H", "L":
		return StatusAbnormal
	case "C":
		return StatusCritical
	case "P":
		return StatusPending
	default:
		return StatusUnknown
	}
}

// Code returns the HL7 abnormal-flag code for s. Statuses that entered as
// "H" or "L" serialize as "A"; the original flag is kept on the
// Observation for the wire text.
func (s ObservationStatus) Code() string {
	switch s {
	case StatusNormal:
		return "N"
	case StatusAbnormal:
		return "A"
	case StatusCritical:
		return "C"
	case StatusPending:
		return "P"
	default:
		return "U"
	}
}

// Patient is the canonical patient record carried by a ClinicalMessage.
// It is built fresh per conversion and never mutated afterwards.
type Patient struct {
	ID          string
	FirstName   string
	MiddleName  string
	LastName    string
	DateOfBirth time.Time
	Gender      Gender
	Address     string
}

// Observation is one clinical result. SequenceNumber is not stored here;
// it is assigned from list position at serialization time.
type Observation struct {
	ID             string
	Description    string
	Value          string
	Units          string
	ReferenceRange string
	Status         ObservationStatus
	// StatusCode is the original abnormal flag as received (N/A/H/L/C/P),
	// written verbatim into OBX-8.
	StatusCode string
	// ValueType is the OBX-2 code (NM/ST/TX/DT/TM/TS), defaulted to ST.
	ValueType string
}

// ClinicalMessage is the canonical in-memory representation handed to the
// serializer: a typed header plus a patient and an ordered observation
// list.
type ClinicalMessage struct {
	Type         MessageType
	Patient      Patient
	Observations []Observation

	SendingFacility   string
	ReceivingFacility string
	ControlID         string
	Timestamp         time.Time
}

// BuildInput is the JSON-shaped clinical payload accepted from callers.
type BuildInput struct {
	Patient      PatientInput       `json:"patient"`
	Observations []ObservationInput `json:"observations"`
	Metadata     MessageMetadata    `json:"metadata"`
}

// PatientInput carries patient demographics as received over the wire.
type PatientInput struct {
	ID          string `json:"id"`
	FirstName   string `json:"firstName"`
	MiddleName  string `json:"middleName,omitempty"`
	LastName    string `json:"lastName"`
	DateOfBirth string `json:"dateOfBirth"` // yyyy-MM-dd
	Gender      string `json:"gender"`      // M, F, O or U
	Address     string `json:"address,omitempty"`
}

// ObservationInput carries one result as received over the wire.
type ObservationInput struct {
	ID             string `json:"id"`
	Description    string `json:"description"`
	Value          string `json:"value"`
	Units          string `json:"units,omitempty"`
	ReferenceRange string `json:"referenceRange,omitempty"`
	Status         string `json:"status"`              // N, A, H, L, C or P
	ValueType      string `json:"valueType,omitempty"` // NM, ST, TX, DT, TM or TS; defaults to ST
}

// MessageMetadata carries MSH-level fields. All fields are optional;
// missing facilities fall back to gateway defaults, a missing control id
// is generated, a missing timestamp is the current UTC time.
type MessageMetadata struct {
	SendingFacility   string `json:"sendingFacility,omitempty"`
	ReceivingFacility string `json:"receivingFacility,omitempty"`
	ControlID         string `json:"controlId,omitempty"`
	Timestamp         string `json:"timestamp,omitempty"`
}
