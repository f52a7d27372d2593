package extractor

import "context"

// DefaultMockResponse is a canned answer in the shape a model would return.
const DefaultMockResponse = "```json\n" + `{
  "call_summary": {
    "summary": "Customer reported a duplicate charge. Agent verified the account and issued a refund.",
    "key_points": ["Duplicate charge on last statement", "Identity verified", "Refund issued"],
    "outcome": "Refund issued for the duplicate charge",
    "follow_up_recommendations": ["Confirm refund posted within five business days"]
  },
  "call_topic": {
    "primary_topic": "Billing dispute",
    "category": "Billing",
    "sub_category": "Duplicate charge",
    "confidence_score": 0.9
  },
  "resolution_status": "resolved",
  "follow_up_required": false,
  "escalation_requested": false,
  "customer_satisfaction_score": 4,
  "agent_empathy_score": 0.8,
  "strengths": ["Clear explanation", "Quick verification"],
  "improvement_areas": ["Offer proactive alerts"],
  "agent_coaching": {
    "specific_recommendations": ["Mention the refund timeline up front", "Offer statement alerts"],
    "skill_development_focus": ["Proactive communication"]
  }
}` + "\n```"

// MockGenerator returns a fixed response. Used offline and in tests.
type MockGenerator struct {
	Response string
}

// NewMockGenerator returns a generator answering DefaultMockResponse.
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{Response: DefaultMockResponse}
}

func (m *MockGenerator) Generate(ctx context.Context, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return m.Response, nil
}
