package hl7

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	dateOfBirthLayout = "2006-01-02"
	hl7DateLayout     = "20060102"
	hl7TimeLayout     = "20060102150405"

	defaultSendingApp        = "HL7GW"
	defaultSendingFacility   = "LAB"
	defaultReceivingFacility = "HOSPITAL"
)

var validValueTypes = map[string]bool{
	"NM": true, "ST": true, "TX": true, "DT": true, "TM": true, "TS": true,
}

var validStatusCodes = map[string]bool{
	"N": true, "A": true, "H": true, "L": true, "C": true, "P": true,
}

// FieldError is a single validation violation.
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors aggregates every violation found in one Validate call.
type ValidationErrors []FieldError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, fe := range e {
		msgs[i] = fe.Error()
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// Validate checks input against the gateway's business rules and returns
// every violation together. A nil error means the input is buildable.
func Validate(input *BuildInput) error {
	var errs ValidationErrors

	add := func(field, msg string) {
		errs = append(errs, FieldError{Field: field, Message: msg})
	}

	p := input.Patient
	if p.ID == "" {
		add("patient.id", "is required")
	}
	if p.FirstName == "" {
		add("patient.firstName", "is required")
	}
	if p.LastName == "" {
		add("patient.lastName", "is required")
	}
	if _, err := time.Parse(dateOfBirthLayout, p.DateOfBirth); err != nil {
		add("patient.dateOfBirth", fmt.Sprintf("%q is not a valid yyyy-MM-dd date", p.DateOfBirth))
	}
	switch p.Gender {
	case "M", "F", "O", "U":
	default:
		add("patient.gender", fmt.Sprintf("%q is not one of M, F, O, U", p.Gender))
	}

	if len(input.Observations) == 0 {
		add("observations", "at least one observation is required")
	}
	for i, obs := range input.Observations {
		prefix := fmt.Sprintf("observations[%d]", i)
		if obs.ID == "" {
			add(prefix+".id", "is required")
		}
		if obs.Description == "" {
			add(prefix+".description", "is required")
		}
		if obs.Value == "" {
			add(prefix+".value", "is required")
		}
		if !validStatusCodes[obs.Status] {
			add(prefix+".status", fmt.Sprintf("%q is not one of N, A, H, L, C, P", obs.Status))
		}
		if obs.ValueType != "" && !validValueTypes[obs.ValueType] {
			add(prefix+".valueType", fmt.Sprintf("%q is not one of NM, ST, TX, DT, TM, TS", obs.ValueType))
		}
	}

	if ts := input.Metadata.Timestamp; ts != "" {
		if _, err := parseTimestamp(ts); err != nil {
			add("metadata.timestamp", fmt.Sprintf("%q is not a valid timestamp", ts))
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// parseTimestamp accepts either RFC 3339 or the compact HL7 TS format.
func parseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.Parse(hl7TimeLayout, s)
}

// Convert validates input and produces the canonical ClinicalMessage.
// Missing metadata is filled in: facilities fall back to defaults, the
// control id is generated, the timestamp becomes the current UTC time
// truncated to the second.
func Convert(input *BuildInput) (*ClinicalMessage, error) {
	if err := Validate(input); err != nil {
		return nil, err
	}

	dob, _ := time.Parse(dateOfBirthLayout, input.Patient.DateOfBirth)

	msg := &ClinicalMessage{
		Type: MessageTypeORU,
		Patient: Patient{
			ID:          input.Patient.ID,
			FirstName:   input.Patient.FirstName,
			MiddleName:  input.Patient.MiddleName,
			LastName:    input.Patient.LastName,
			DateOfBirth: dob,
			Gender:      ParseGender(input.Patient.Gender),
			Address:     input.Patient.Address,
		},
		SendingFacility:   input.Metadata.SendingFacility,
		ReceivingFacility: input.Metadata.ReceivingFacility,
		ControlID:         input.Metadata.ControlID,
		Timestamp:         time.Now().UTC().Truncate(time.Second),
	}

	if msg.SendingFacility == "" {
		msg.SendingFacility = defaultSendingFacility
	}
	if msg.ReceivingFacility == "" {
		msg.ReceivingFacility = defaultReceivingFacility
	}
	if msg.ControlID == "" {
		msg.ControlID = generateControlID()
	}
	if ts := input.Metadata.Timestamp; ts != "" {
		t, _ := parseTimestamp(ts)
		msg.Timestamp = t.Truncate(time.Second)
	}

	msg.Observations = make([]Observation, 0, len(input.Observations))
	for _, obs := range input.Observations {
		valueType := obs.ValueType
		if valueType == "" {
			valueType = "ST"
		}
		msg.Observations = append(msg.Observations, Observation{
			ID:             obs.ID,
			Description:    obs.Description,
			Value:          obs.Value,
			Units:          obs.Units,
			ReferenceRange: obs.ReferenceRange,
			Status:         ParseStatus(obs.Status),
			StatusCode:     obs.Status,
			ValueType:      valueType,
		})
	}

	return msg, nil
}

// Serialize renders msg as pipe-delimited HL7 v2.5 text: one MSH, one PID,
// one OBR, then one OBX per observation. Segments are newline-joined with
// no trailing newline.
func Serialize(msg *ClinicalMessage) string {
	segments := make([]string, 0, 3+len(msg.Observations))
	segments = append(segments,
		buildMSH(msg),
		buildPID(&msg.Patient),
		buildOBR(msg),
	)
	for i, obs := range msg.Observations {
		segments = append(segments, buildOBX(i+1, &obs))
	}
	return strings.Join(segments, "\n")
}

// Build converts input and returns the wire text in one call.
func Build(input *BuildInput) (string, error) {
	msg, err := Convert(input)
	if err != nil {
		return "", err
	}
	return Serialize(msg), nil
}

func buildMSH(msg *ClinicalMessage) string {
	return strings.Join([]string{
		"MSH",
		`^~\&`,
		defaultSendingApp,
		msg.SendingFacility,
		"",
		msg.ReceivingFacility,
		msg.Timestamp.Format(hl7TimeLayout),
		"",
		string(msg.Type),
		msg.ControlID,
		"P",
		"2.5",
	}, "|")
}

func buildPID(p *Patient) string {
	name := strings.ToUpper(p.LastName) + "^" + strings.ToUpper(p.FirstName)
	if p.MiddleName != "" {
		name += "^" + strings.ToUpper(p.MiddleName)
	}
	return strings.Join([]string{
		"PID",
		"1",
		"",
		p.ID,
		"",
		name,
		"",
		p.DateOfBirth.Format(hl7DateLayout),
		p.Gender.Code(),
		"",
		"",
		flattenAddress(p.Address),
	}, "|")
}

func buildOBR(msg *ClinicalMessage) string {
	return strings.Join([]string{
		"OBR",
		"1",
		"",
		msg.ControlID,
		"RESULTS^Laboratory Results^L",
	}, "|")
}

func buildOBX(seq int, obs *Observation) string {
	return strings.Join([]string{
		"OBX",
		fmt.Sprintf("%d", seq),
		obs.ValueType,
		fmt.Sprintf("%s^%s^L", obs.ID, obs.Description),
		"",
		obs.Value,
		obs.Units,
		obs.ReferenceRange,
		obs.StatusCode,
		"",
		"",
		"F",
	}, "|")
}

// flattenAddress collapses a free-form address onto one line so it cannot
// break segment framing.
func flattenAddress(addr string) string {
	addr = strings.ReplaceAll(addr, "\r", " ")
	addr = strings.ReplaceAll(addr, "\n", " ")
	return strings.TrimSpace(addr)
}

// generateControlID produces a 20-character MSH-10 control id.
func generateControlID() string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))
	return id[:20]
}
