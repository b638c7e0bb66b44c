package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studynet-go/internal/model"
)

// courseFixture 是一行展开后的课程数据，用于在内存中验证条件语义。
type courseFixture struct {
	fee    float64
	city   string
	state  string
	active bool
}

// fixtureMatches 按 SQL 语义在内存里评估一组条件片段。
// 条件之间逻辑与组合：任何一条不满足即整行落选。
func fixtureMatches(t *testing.T, clauses []filterClause, row courseFixture) bool {
	t.Helper()
	for _, c := range clauses {
		switch c.expr {
		case "c.is_active = ?":
			if row.active != c.args[0].(bool) {
				return false
			}
		case "f.total_annual_fee >= ?":
			if row.fee < c.args[0].(float64) {
				return false
			}
		case "f.total_annual_fee <= ?":
			if row.fee > c.args[0].(float64) {
				return false
			}
		case "l.address_city = ?":
			if row.city != c.args[0].(string) {
				return false
			}
		case "l.address_state = ?":
			if row.state != c.args[0].(string) {
				return false
			}
		default:
			t.Fatalf("未预期的条件片段: %s", c.expr)
		}
	}
	return true
}

func TestCourseFilterClausesFeeAndCityCombined(t *testing.T) {
	filters := model.Filters{
		Price:    &model.PriceRange{Max: 20000},
		Location: &model.Location{City: "Sydney", State: "NSW"},
	}

	clauses := courseFilterClauses(filters)

	exprs := make([]string, 0, len(clauses))
	for _, c := range clauses {
		exprs = append(exprs, c.expr)
	}
	assert.Equal(t, []string{
		"c.is_active = ?",
		"f.total_annual_fee <= ?",
		"l.address_city = ?",
		"l.address_state = ?",
	}, exprs)

	sydneyCheap := courseFixture{fee: 18000, city: "Sydney", state: "NSW", active: true}
	melbourneDear := courseFixture{fee: 25000, city: "Melbourne", state: "VIC", active: true}
	assert.True(t, fixtureMatches(t, clauses, sydneyCheap))
	assert.False(t, fixtureMatches(t, clauses, melbourneDear))
}

func TestCourseFilterClausesFeeBoundsInclusive(t *testing.T) {
	clauses := courseFilterClauses(model.Filters{
		Price: &model.PriceRange{Min: 10000, Max: 20000},
	})

	exactMin := courseFixture{fee: 10000, city: "Sydney", state: "NSW", active: true}
	exactMax := courseFixture{fee: 20000, city: "Sydney", state: "NSW", active: true}
	justOver := courseFixture{fee: 20000.01, city: "Sydney", state: "NSW", active: true}
	assert.True(t, fixtureMatches(t, clauses, exactMin))
	assert.True(t, fixtureMatches(t, clauses, exactMax))
	assert.False(t, fixtureMatches(t, clauses, justOver))
}

func TestCourseFilterClausesExcludeInactive(t *testing.T) {
	clauses := courseFilterClauses(model.Filters{})

	require.Len(t, clauses, 1)
	assert.False(t, fixtureMatches(t, clauses, courseFixture{fee: 18000, city: "Sydney", state: "NSW", active: false}))
	assert.True(t, fixtureMatches(t, clauses, courseFixture{fee: 18000, city: "Sydney", state: "NSW", active: true}))
}

func TestCourseFilterClausesFullSet(t *testing.T) {
	filters := model.Filters{
		FieldsOfStudy:  []string{"Information Technology"},
		Price:          &model.PriceRange{Min: 5000, Max: 40000},
		Location:       &model.Location{City: "Melbourne", State: "VIC"},
		ProviderName:   "Monash",
		StudyLevel:     "Master",
		HasScholarship: true,
		HasInternship:  true,
		MaxRanking:     10,
	}

	clauses := courseFilterClauses(filters)
	require.Len(t, clauses, 10)

	byExpr := make(map[string][]interface{}, len(clauses))
	for _, c := range clauses {
		byExpr[c.expr] = c.args
	}
	assert.Equal(t, []interface{}{"%Monash%"}, byExpr["c.provider_name LIKE ?"])
	assert.Equal(t, []interface{}{"Master"}, byExpr["c.study_level = ?"])
	assert.Equal(t, []interface{}{true}, byExpr["c.has_scholarship = ?"])
	assert.Equal(t, []interface{}{true}, byExpr["c.has_internship = ?"])
	assert.Equal(t, []interface{}{10}, byExpr["p.australian_ranking > 0 AND p.australian_ranking <= ?"])
	assert.Equal(t, []interface{}{[]string{"Information Technology"}, []string{"Information Technology"}},
		byExpr["c.area_of_study_broad IN ? OR c.area_of_study_narrow IN ?"])
}
