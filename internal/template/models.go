package template

import "auditflow/pkg/domain"

// ProcessTemplate is a reusable audit form for one product/grade/period and
// event-type combination. Template definitions are owned by a separate CRUD
// module; this engine only reads published rows.
type ProcessTemplate struct {
	Code          string `json:"code"`
	ProductKey    string `json:"product_key"`
	GradeKey      string `json:"grade_key"`
	PeriodKey     string `json:"period_key"`
	EventTypeCode string `json:"event_type_code"`
	Published     bool   `json:"published"`
}

// StepTemplate is a page/section within a process template. The numeric
// suffix of DisplayName drives instance ordering.
type StepTemplate struct {
	Code                string `json:"code"`
	ProcessTemplateCode string `json:"process_template_code"`
	DisplayName         string `json:"display_name"`
	SampleSize          int    `json:"sample_size"`
	Published           bool   `json:"published"`
}

// ChecklistTemplate is a scorable criterion within a step template.
type ChecklistTemplate struct {
	Code             string  `json:"code"`
	StepTemplateCode string  `json:"step_template_code"`
	ParentCode       string  `json:"parent_code,omitempty"`
	MaxScore         float64 `json:"max_score"`
	Guidance         string  `json:"guidance,omitempty"`
	Published        bool    `json:"published"`
}

// Classification is the key set resolved from a triggering event, used to
// select the applicable process template.
type Classification struct {
	ProductKey   string           `json:"product_key"`
	GradeKey     string           `json:"grade_key"`
	PeriodKey    string           `json:"period_key"`
	TeacherID    domain.TeacherID `json:"teacher_id"`
	ClassGroupID string           `json:"class_group_id,omitempty"`
}
