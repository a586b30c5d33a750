package dto

import (
	"github.com/gakuen-dev/biz-ops-api/internal/models"
)

// AchievementSearchRequest narrows the grid to records matching the
// caller's conditions. Conditions over member attributes are evaluated
// after the roster merge; the rest are pushed down to the record store.
type AchievementSearchRequest struct {
	Conditions        []models.FilterCondition `json:"conditions" validate:"dive"`
	CertificateStatus string                   `json:"certificate_status" validate:"omitempty,oneof=Downloadable Unpublished"`
	StudentStatus     string                   `json:"student_status"`
	Page              int                      `json:"page" validate:"omitempty,min=1"`
	PageSize          int                      `json:"page_size" validate:"omitempty,min=1,max=100"`
}

// AchievementDownloadRequest is a search plus the export format.
type AchievementDownloadRequest struct {
	AchievementSearchRequest
	Format string `json:"format" validate:"omitempty,oneof=csv tsv"`
}

// ColumnDef is one grid column with its coercion type.
type ColumnDef struct {
	Field string `json:"field"`
	Type  string `json:"type"`
}

// AchievementGrid is the merged, filtered result for one grid page.
type AchievementGrid struct {
	Columns []ColumnDef              `json:"columns"`
	Records []map[string]interface{} `json:"records"`
	// Total counts surviving records before pagination; StoredRecords
	// counts raw store documents matching the pushdown filter, before the
	// roster merge drops anything.
	Total         int   `json:"total"`
	StoredRecords int64 `json:"stored_records"`
	// BatchStatus and BatchTimestamp describe the last recompute run.
	// BatchTimestamp is "" when no batch has ever run.
	BatchStatus    string `json:"batch_status"`
	BatchTimestamp string `json:"batch_timestamp"`
}

// AchievementReportRequest selects one student for the PDF report.
type AchievementReportRequest struct {
	Username string `json:"username" validate:"required"`
}
