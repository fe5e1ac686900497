package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderEmailTemplate(t *testing.T) {
	data := map[string]interface{}{
		"Name":        "Arun Kumar",
		"ComplaintID": "ECE-COMP-2026-AAAA1111",
		"Title":       "Broken oscilloscope",
		"Category":    "Lab Equipment",
		"Status":      "Resolved",
		"Level":       "mentor",
		"Reason":      "needs mentor attention",
		"Note":        "replaced the probe",
		"AppURL":      "https://complaints.example.edu",
	}

	for _, name := range []string{
		"complaint_confirmation",
		"complaint_assigned",
		"status_update",
		"complaint_escalated",
		"complaint_reopened",
		"registration_decision",
	} {
		t.Run(name, func(t *testing.T) {
			content, err := renderEmailTemplate(name, data)
			require.NoError(t, err)
			assert.Contains(t, content, "Arun Kumar")
			assert.Contains(t, content, "<html>")
		})
	}
}

func TestRenderEmailTemplateContent(t *testing.T) {
	data := map[string]interface{}{
		"Name":        "Priya",
		"ComplaintID": "ECE-COMP-2026-BBBB2222",
		"Status":      "In Review",
		"Note":        "looking into it",
		"AppURL":      "https://complaints.example.edu",
	}

	content, err := renderEmailTemplate("status_update", data)
	require.NoError(t, err)
	assert.Contains(t, content, "ECE-COMP-2026-BBBB2222")
	assert.Contains(t, content, "In Review")
	assert.Contains(t, content, "looking into it")
}

func TestRenderEmailTemplateUnknown(t *testing.T) {
	_, err := renderEmailTemplate("weekly_digest", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown template")
}

func TestRenderEmailTemplateEscapesHTML(t *testing.T) {
	data := map[string]interface{}{
		"Name":        "<script>alert(1)</script>",
		"ComplaintID": "ECE-COMP-2026-CCCC3333",
		"AppURL":      "https://complaints.example.edu",
	}

	content, err := renderEmailTemplate("complaint_confirmation", data)
	require.NoError(t, err)
	assert.NotContains(t, content, "<script>")
}
