package dto

// SurveySearchRequest filters the answer-status grid.
type SurveySearchRequest struct {
	SurveyName  string `json:"survey_name"`
	Answered    bool   `json:"answered"`
	NotAnswered bool   `json:"not_answered"`
	Page        int    `json:"page" validate:"omitempty,min=1"`
	PageSize    int    `json:"page_size" validate:"omitempty,min=1,max=100"`
}

// SurveyGrid is one page of the merged answer-status view: a fixed member
// prefix plus one answered-timestamp column per survey unit.
type SurveyGrid struct {
	Columns []string                 `json:"columns"`
	Records []map[string]interface{} `json:"records"`
	Total   int                      `json:"total"`
}
