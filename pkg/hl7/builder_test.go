package hl7

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validInput() *BuildInput {
	return &BuildInput{
		Patient: PatientInput{
			ID:          "12345",
			FirstName:   "John",
			LastName:    "Doe",
			DateOfBirth: "1985-06-15",
			Gender:      "M",
			Address:     "123 Main St",
		},
		Observations: []ObservationInput{
			{
				ID:             "OBS001",
				Description:    "Blood Glucose",
				Value:          "95",
				Units:          "mg/dL",
				ReferenceRange: "70-100",
				Status:         "N",
				ValueType:      "NM",
			},
		},
	}
}

func TestValidate_ValidInput(t *testing.T) {
	assert.NoError(t, Validate(validInput()))
}

func TestValidate_CollectsEveryViolation(t *testing.T) {
	input := validInput()
	input.Patient.ID = ""
	input.Patient.LastName = ""

	err := Validate(input)
	require.Error(t, err)

	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)

	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field)
	}
	assert.Contains(t, fields, "patient.id")
	assert.Contains(t, fields, "patient.lastName")
}

func TestValidate_FieldRules(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*BuildInput)
		field  string
	}{
		{"missing first name", func(in *BuildInput) { in.Patient.FirstName = "" }, "patient.firstName"},
		{"bad date of birth", func(in *BuildInput) { in.Patient.DateOfBirth = "15/06/1985" }, "patient.dateOfBirth"},
		{"bad gender", func(in *BuildInput) { in.Patient.Gender = "X" }, "patient.gender"},
		{"no observations", func(in *BuildInput) { in.Observations = nil }, "observations"},
		{"missing observation id", func(in *BuildInput) { in.Observations[0].ID = "" }, "observations[0].id"},
		{"missing description", func(in *BuildInput) { in.Observations[0].Description = "" }, "observations[0].description"},
		{"missing value", func(in *BuildInput) { in.Observations[0].Value = "" }, "observations[0].value"},
		{"bad status", func(in *BuildInput) { in.Observations[0].Status = "Z" }, "observations[0].status"},
		{"bad value type", func(in *BuildInput) { in.Observations[0].ValueType = "XX" }, "observations[0].valueType"},
		{"bad timestamp", func(in *BuildInput) { in.Metadata.Timestamp = "yesterday" }, "metadata.timestamp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := validInput()
			tt.mutate(input)

			err := Validate(input)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestParseStatus_Normalization(t *testing.T) {
	assert.Equal(t, StatusNormal, ParseStatus("N"))
	assert.Equal(t, StatusAbnormal, ParseStatus("A"))
	assert.Equal(t, StatusAbnormal, ParseStatus("H"))
	assert.Equal(t, StatusAbnormal, ParseStatus("L"))
	assert.Equal(t, StatusCritical, ParseStatus("C"))
	assert.Equal(t, StatusPending, ParseStatus("P"))
	assert.Equal(t, StatusUnknown, ParseStatus("Z"))
	assert.Equal(t, StatusUnknown, ParseStatus(""))
}

func TestParseGender(t *testing.T) {
	assert.Equal(t, GenderMale, ParseGender("M"))
	assert.Equal(t, GenderFemale, ParseGender("F"))
	assert.Equal(t, GenderOther, ParseGender("O"))
	assert.Equal(t, GenderUnknown, ParseGender("U"))
	assert.Equal(t, GenderUnknown, ParseGender("?"))
}

func TestConvert_Defaults(t *testing.T) {
	input := validInput()
	input.Observations[0].ValueType = ""

	msg, err := Convert(input)
	require.NoError(t, err)

	assert.Equal(t, "ST", msg.Observations[0].ValueType, "omitted value type defaults to ST")
	assert.Equal(t, defaultSendingFacility, msg.SendingFacility)
	assert.Equal(t, defaultReceivingFacility, msg.ReceivingFacility)
	assert.Len(t, msg.ControlID, 20)
	assert.False(t, msg.Timestamp.IsZero())
}

func TestConvert_SuppliedMetadata(t *testing.T) {
	input := validInput()
	input.Metadata = MessageMetadata{
		SendingFacility:   "WESTLAB",
		ReceivingFacility: "CENTRAL",
		ControlID:         "CTRL0001",
		Timestamp:         "2025-01-15T09:30:00Z",
	}

	msg, err := Convert(input)
	require.NoError(t, err)

	assert.Equal(t, "WESTLAB", msg.SendingFacility)
	assert.Equal(t, "CENTRAL", msg.ReceivingFacility)
	assert.Equal(t, "CTRL0001", msg.ControlID)
	assert.Equal(t, time.Date(2025, 1, 15, 9, 30, 0, 0, time.UTC), msg.Timestamp)
}

func TestBuild_SegmentLayout(t *testing.T) {
	input := validInput()
	input.Metadata.Timestamp = "2025-01-15T09:30:00Z"

	text, err := Build(input)
	require.NoError(t, err)

	lines := strings.Split(text, "\n")
	require.Len(t, lines, 4)

	assert.True(t, strings.HasPrefix(lines[0], `MSH|^~\&|`), "text starts with the MSH segment")
	assert.Contains(t, lines[0], "20250115093000")
	assert.Contains(t, lines[0], "ORU^R01")
	assert.Contains(t, lines[0], "|P|2.5")

	assert.True(t, strings.HasPrefix(lines[1], "PID|1||12345||"), "PID carries the patient id")
	assert.Contains(t, lines[1], "DOE^JOHN")
	assert.Contains(t, lines[1], "19850615")
	assert.Contains(t, lines[1], "|M|")

	assert.True(t, strings.HasPrefix(lines[2], "OBR|1|"))

	assert.True(t, strings.HasPrefix(lines[3], "OBX|1|NM|OBS001^Blood Glucose^L|"))
	assert.Contains(t, lines[3], "95|mg/dL|70-100|N")
	assert.Contains(t, lines[3], "|F")

	assert.False(t, strings.HasSuffix(text, "\n"), "no trailing newline after the final segment")
}

func TestBuild_ObservationSequenceNumbers(t *testing.T) {
	input := validInput()
	input.Observations = append(input.Observations,
		ObservationInput{ID: "OBS002", Description: "Sodium", Value: "140", Units: "mmol/L", ReferenceRange: "135-145", Status: "N"},
		ObservationInput{ID: "OBS003", Description: "Potassium", Value: "6.1", Units: "mmol/L", ReferenceRange: "3.5-5.0", Status: "H"},
	)

	text, err := Build(input)
	require.NoError(t, err)

	lines := strings.Split(text, "\n")
	require.Len(t, lines, 6)
	assert.True(t, strings.HasPrefix(lines[3], "OBX|1|"))
	assert.True(t, strings.HasPrefix(lines[4], "OBX|2|"))
	assert.True(t, strings.HasPrefix(lines[5], "OBX|3|"))
	// The original H flag is preserved on the wire even though it
	// normalizes to Abnormal in the domain model.
	assert.Contains(t, lines[5], "|H|")
}

func TestBuild_MiddleNameAndAddressFormatting(t *testing.T) {
	input := validInput()
	input.Patient.MiddleName = "Quincy"
	input.Patient.Address = "123 Main St\nSpringfield"

	text, err := Build(input)
	require.NoError(t, err)

	assert.Contains(t, text, "DOE^JOHN^QUINCY")
	assert.Contains(t, text, "123 Main St Springfield")
	assert.NotContains(t, strings.Split(text, "\n")[1], "\r")
}

func TestBuild_InvalidInputFails(t *testing.T) {
	input := validInput()
	input.Patient.ID = ""

	_, err := Build(input)
	require.Error(t, err)

	var verrs ValidationErrors
	assert.ErrorAs(t, err, &verrs)
}
