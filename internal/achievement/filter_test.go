package achievement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/gakuen-dev/biz-ops-api/internal/models"
)

func floatPtr(v float64) *float64 { return &v }

func findKey(t *testing.T, filter bson.D, key string) interface{} {
	t.Helper()
	for _, elem := range filter {
		if elem.Key == key {
			return elem.Value
		}
	}
	t.Fatalf("key %q not present in filter %v", key, filter)
	return nil
}

func TestRecordFilterBaseKeys(t *testing.T) {
	q := models.AchievementQuery{
		ContractID: 42,
		CourseID:   "course-v1:Org+C1+2024",
		Target:     models.TargetScore,
	}
	filter := recordFilter(q, nil)

	assert.Equal(t, docTypeRecord, findKey(t, filter, fieldDocType))
	assert.Equal(t, int64(42), findKey(t, filter, fieldContractID))
	assert.Equal(t, "course-v1:Org+C1+2024", findKey(t, filter, fieldCourseID))
	// No username restriction when nil.
	for _, elem := range filter {
		assert.NotEqual(t, models.FieldUsername, elem.Key)
	}
}

func TestRecordFilterInclusiveRange(t *testing.T) {
	q := models.AchievementQuery{
		ContractID: 1,
		CourseID:   "c",
		Conditions: []models.FilterCondition{
			{Field: models.FieldTotalScore, From: floatPtr(0.5), To: floatPtr(0.9)},
		},
	}
	filter := recordFilter(q, nil)

	pred, ok := findKey(t, filter, models.FieldTotalScore).(bson.D)
	require.True(t, ok)
	assert.Equal(t, bson.D{
		{Key: "$gte", Value: 0.5},
		{Key: "$lte", Value: 0.9},
	}, pred)
}

func TestRecordFilterOpenEndedRange(t *testing.T) {
	q := models.AchievementQuery{
		ContractID: 1,
		CourseID:   "c",
		Conditions: []models.FilterCondition{
			{Field: "Section 1", From: floatPtr(0.3)},
		},
	}
	filter := recordFilter(q, nil)

	pred := findKey(t, filter, "Section 1").(bson.D)
	assert.Equal(t, bson.D{{Key: "$gte", Value: 0.3}}, pred)
}

func TestRecordFilterInvertedRange(t *testing.T) {
	q := models.AchievementQuery{
		ContractID: 1,
		CourseID:   "c",
		Conditions: []models.FilterCondition{
			{Field: models.FieldTotalScore, From: floatPtr(0.5), To: floatPtr(0.9), Invert: true},
		},
	}
	filter := recordFilter(q, nil)

	pred := findKey(t, filter, models.FieldTotalScore).(bson.D)
	require.Len(t, pred, 1)
	assert.Equal(t, "$not", pred[0].Key)
	assert.Equal(t, bson.D{
		{Key: "$gte", Value: 0.5},
		{Key: "$lte", Value: 0.9},
	}, pred[0].Value)
}

func TestRecordFilterTextConditions(t *testing.T) {
	q := models.AchievementQuery{
		ContractID: 1,
		CourseID:   "c",
		Conditions: []models.FilterCondition{
			{Field: models.FieldStudentStatus, Text: models.StudentStatusEnrolled},
			{Field: models.FieldEmail, Text: "x@example.com", Invert: true},
		},
	}
	filter := recordFilter(q, nil)

	assert.Equal(t, models.StudentStatusEnrolled, findKey(t, filter, models.FieldStudentStatus))
	assert.Equal(t, bson.D{{Key: "$ne", Value: "x@example.com"}},
		findKey(t, filter, models.FieldEmail))
}

func TestRecordFilterEmptyConditionSkipped(t *testing.T) {
	q := models.AchievementQuery{
		ContractID: 1,
		CourseID:   "c",
		Conditions: []models.FilterCondition{{Field: "Whatever"}},
	}
	filter := recordFilter(q, nil)
	// Base keys only.
	assert.Len(t, filter, 3)
}

func TestRecordFilterCertificateAndUsernames(t *testing.T) {
	q := models.AchievementQuery{
		ContractID:        1,
		CourseID:          "c",
		CertificateStatus: models.CertStatusDownloadable,
	}
	filter := recordFilter(q, []string{"alice", "bob"})

	assert.Equal(t, models.CertStatusDownloadable, findKey(t, filter, models.FieldCertificateStatus))
	assert.Equal(t, bson.D{{Key: "$in", Value: []string{"alice", "bob"}}},
		findKey(t, filter, models.FieldUsername))
}

func TestRecordFilterEmptyUsernamesMatchesNothing(t *testing.T) {
	q := models.AchievementQuery{ContractID: 1, CourseID: "c"}
	filter := recordFilter(q, []string{})

	pred := findKey(t, filter, models.FieldUsername).(bson.D)
	assert.Equal(t, "$in", pred[0].Key)
	assert.Empty(t, pred[0].Value)
}
