package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dhcgn/application-tracker/model"
)

func TestStatus_SingleCategory(t *testing.T) {
	tests := []struct {
		name string
		text string
		want model.Status
	}{
		{name: "offer", text: "We are pleased to extend an Offer", want: model.StatusOffer},
		{name: "offer letter", text: "Your offer letter is attached", want: model.StatusOffer},
		{name: "interview", text: "Can we schedule an interview next week?", want: model.StatusInterview},
		{name: "phone screen", text: "Invitation: Phone Screen with the team", want: model.StatusInterview},
		{name: "rejected", text: "Unfortunately we will not move forward", want: model.StatusRejected},
		{name: "not selected", text: "You were not selected for this role", want: model.StatusRejected},
		{name: "we regret", text: "We regret to inform you", want: model.StatusRejected},
		{name: "submitted", text: "Application received - Backend Engineer", want: model.StatusSubmitted},
		{name: "thank you for applying", text: "Thank you for applying to Acme", want: model.StatusSubmitted},
		{name: "assessment", text: "Please complete the assessment by Friday", want: model.StatusAssessment},
		{name: "code challenge", text: "Your Code Challenge is ready", want: model.StatusAssessment},
		{name: "online test", text: "Link to your online test", want: model.StatusAssessment},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Status(tt.text))
		})
	}
}

func TestStatus_PriorityOrder(t *testing.T) {
	tests := []struct {
		name string
		text string
		want model.Status
	}{
		{name: "offer beats interview", text: "After your interview we have an offer for you", want: model.StatusOffer},
		{name: "interview beats rejected", text: "Unfortunately the interview must move", want: model.StatusInterview},
		{name: "rejected beats submitted", text: "Application received.\nUnfortunately we decided otherwise", want: model.StatusRejected},
		{name: "submitted beats assessment", text: "Thank you for applying, an assessment follows", want: model.StatusSubmitted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Status(tt.text))
		})
	}
}

func TestStatus_Unknown(t *testing.T) {
	for _, text := range []string{"", "Weekly newsletter", "Offering discounts on shoes", "interviewer notes"} {
		assert.Equal(t, model.StatusUnknown, Status(text), text)
	}
}

func TestMatch_ReportsPattern(t *testing.T) {
	status, pattern := Match("Subject\nwe regret to say")

	assert.Equal(t, model.StatusRejected, status)
	assert.Equal(t, `\bwe regret\b`, pattern)
}

func TestCategories_AlwaysValidStatus(t *testing.T) {
	for _, c := range Categories {
		assert.True(t, c.Status.Valid())
		assert.NotEmpty(t, c.Patterns)
	}
}
