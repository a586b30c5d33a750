package achievement

import (
	"go.mongodb.org/mongo-driver/bson"

	"github.com/gakuen-dev/biz-ops-api/internal/models"
)

// recordFilter builds the parameterized predicate document for a record
// query. Conditions combine with AND; each condition's Invert flag negates
// that single predicate before conjunction. Numeric bounds are inclusive
// and a nil bound leaves that side unbounded.
func recordFilter(q models.AchievementQuery, usernames []string) bson.D {
	filter := bson.D{
		{Key: fieldDocType, Value: docTypeRecord},
		{Key: fieldContractID, Value: q.ContractID},
		{Key: fieldCourseID, Value: q.CourseID},
	}

	for _, cond := range q.Conditions {
		if pred, ok := conditionPredicate(cond); ok {
			filter = append(filter, bson.E{Key: cond.Field, Value: pred})
		}
	}

	if q.CertificateStatus != "" {
		filter = append(filter, bson.E{Key: models.FieldCertificateStatus, Value: q.CertificateStatus})
	}
	if usernames != nil {
		filter = append(filter, bson.E{Key: models.FieldUsername, Value: bson.D{{Key: "$in", Value: usernames}}})
	}
	return filter
}

func conditionPredicate(cond models.FilterCondition) (interface{}, bool) {
	if cond.From != nil || cond.To != nil {
		rng := bson.D{}
		if cond.From != nil {
			rng = append(rng, bson.E{Key: "$gte", Value: *cond.From})
		}
		if cond.To != nil {
			rng = append(rng, bson.E{Key: "$lte", Value: *cond.To})
		}
		if cond.Invert {
			return bson.D{{Key: "$not", Value: rng}}, true
		}
		return rng, true
	}

	if cond.Text != "" {
		if cond.Invert {
			return bson.D{{Key: "$ne", Value: cond.Text}}, true
		}
		return cond.Text, true
	}
	return nil, false
}
