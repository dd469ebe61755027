package models

// All returns every persisted model in migration order.
func All() []interface{} {
	return []interface{}{
		&Profile{},
		&Category{},
		&Test{},
		&AssessmentScale{},
		&Question{},
		&AnswerOption{},
		&TestResult{},
		&UserAnswer{},
		&Group{},
		&GroupMember{},
		&AIRecommendation{},
	}
}
