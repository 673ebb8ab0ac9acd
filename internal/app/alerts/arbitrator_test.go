package alerts

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ScribePilot/internal/oracle"
	"ScribePilot/internal/surface"
)

var (
	maleTerms   = []string{"prostate", "testis"}
	femaleTerms = []string{"uterus", "ovary"}
)

func TestArbitratePriority(t *testing.T) {
	tests := []struct {
		name  string
		flags surface.Flags
		want  surface.AlertKind
	}{
		{"nothing", surface.Flags{}, surface.AlertNone},
		{"protocol only", surface.Flags{Protocol: true}, surface.AlertProtocol},
		{"template beats protocol", surface.Flags{TemplateMismatch: true, Protocol: true}, surface.AlertTemplateMismatch},
		{"gender beats template", surface.Flags{GenderMismatch: true, TemplateMismatch: true}, surface.AlertGenderMismatch},
		{"gender beats everything", surface.Flags{GenderMismatch: true, TemplateMismatch: true, Protocol: true}, surface.AlertGenderMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, _ := Arbitrate(tt.flags)
			assert.Equal(t, tt.want, kind)
		})
	}
}

func TestEvaluateGenderMismatch(t *testing.T) {
	snap := oracle.Snapshot{
		PatientGender: "Female",
		ReportText:    "The prostate is unremarkable.",
	}
	f := Evaluate(snap, Params{MaleTerms: maleTerms, FemaleTerms: femaleTerms})
	assert.True(t, f.GenderMismatch)

	// Неизвестный пол — не несоответствие
	snap.PatientGender = ""
	f = Evaluate(snap, Params{MaleTerms: maleTerms, FemaleTerms: femaleTerms})
	assert.False(t, f.GenderMismatch)

	snap.PatientGender = "M"
	snap.ReportText = "The uterus is normal."
	f = Evaluate(snap, Params{MaleTerms: maleTerms, FemaleTerms: femaleTerms})
	assert.True(t, f.GenderMismatch)
}

func TestEvaluateTemplateMismatch(t *testing.T) {
	snap := oracle.Snapshot{
		Description:  "CT Chest with contrast",
		TemplateName: "MR Brain Template",
	}
	f := Evaluate(snap, Params{})
	assert.True(t, f.TemplateMismatch)

	snap.TemplateName = "CT Chest Template"
	f = Evaluate(snap, Params{})
	assert.False(t, f.TemplateMismatch)

	// Без шаблона или описания сравнивать нечего
	snap.TemplateName = ""
	f = Evaluate(snap, Params{})
	assert.False(t, f.TemplateMismatch)
}

func TestKeywordClassifier(t *testing.T) {
	c := NewKeywordClassifier([]string{"stroke protocol", "critical"})
	assert.True(t, c.Classify(oracle.Snapshot{Description: "CT Head Stroke Protocol"}))
	assert.True(t, c.Classify(oracle.Snapshot{ReportText: "CRITICAL finding communicated"}))
	assert.False(t, c.Classify(oracle.Snapshot{Description: "XR Chest routine"}))
}
