package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studynet-go/internal/config"
	"studynet-go/internal/errs"
	"studynet-go/internal/model"
)

func newTestQueryService(llm *stubLLM) QueryService {
	return NewQueryService(llm, config.RetrievalConfig{MaxQueryVariants: 3})
}

func TestClassifyEmptyQuery(t *testing.T) {
	llmStub := &stubLLM{}
	svc := newTestQueryService(llmStub)

	for _, q := range []string{"", "   ", "\n\t"} {
		_, err := svc.Classify(context.Background(), q)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errs.ErrInvalidQuery))
	}
	// 空查询不应触发任何 LLM 调用
	assert.Equal(t, 0, llmStub.calls)
}

func TestClassifyStructuredByRules(t *testing.T) {
	llmStub := &stubLLM{chatErr: errors.New("llm should not be needed")}
	svc := newTestQueryService(llmStub)

	parsed, err := svc.Classify(context.Background(), "IT courses under $20,000 in Sydney")
	require.NoError(t, err)

	assert.Equal(t, model.QueryStructured, parsed.Kind)
	assert.Equal(t, model.IntentFilterByCriteria, parsed.Intent)
	require.NotNil(t, parsed.Filters.Price)
	assert.Equal(t, float64(20000), parsed.Filters.Price.Max)
	require.NotNil(t, parsed.Filters.Location)
	assert.Equal(t, "Sydney", parsed.Filters.Location.City)
	assert.Equal(t, "NSW", parsed.Filters.Location.State)
	assert.Contains(t, parsed.Filters.FieldsOfStudy, "Information Technology")
	// 规则路径是确定性的, 不应触发 LLM
	assert.Equal(t, 0, llmStub.calls)
}

func TestClassifyComparison(t *testing.T) {
	svc := newTestQueryService(&stubLLM{chatErr: errors.New("down")})

	parsed, err := svc.Classify(context.Background(), "Compare UNSW vs Monash for engineering")
	require.NoError(t, err)

	assert.Equal(t, model.QueryComparison, parsed.Kind)
	assert.Equal(t, model.IntentCompareProviders, parsed.Intent)
	assert.ElementsMatch(t, []string{"University of New South Wales", "Monash University"}, parsed.Filters.ProviderNames)
}

func TestClassifyGuidance(t *testing.T) {
	svc := newTestQueryService(&stubLLM{chatErr: errors.New("down")})

	parsed, err := svc.Classify(context.Background(), "How do I apply for a student visa?")
	require.NoError(t, err)

	assert.Equal(t, model.QuerySemantic, parsed.Kind)
	assert.Equal(t, model.IntentGetGuidance, parsed.Intent)
}

func TestClassifyLLMFallbackDefault(t *testing.T) {
	// 无规则命中且 LLM 失败时落到确定性默认值
	svc := newTestQueryService(&stubLLM{chatErr: errors.New("llm unavailable")})

	parsed, err := svc.Classify(context.Background(), "Something entirely ambiguous")
	require.NoError(t, err)

	assert.Equal(t, model.QuerySemantic, parsed.Kind)
	assert.Equal(t, model.IntentSearchCourses, parsed.Intent)
}

func TestClassifyLLMFallbackParsesResponse(t *testing.T) {
	llmStub := &stubLLM{response: `{"type": "hybrid", "intent": "get_provider_info"}`}
	svc := newTestQueryService(llmStub)

	parsed, err := svc.Classify(context.Background(), "Something entirely ambiguous")
	require.NoError(t, err)

	assert.Equal(t, model.QueryHybrid, parsed.Kind)
	assert.Equal(t, model.IntentGetProviderInfo, parsed.Intent)
}

func TestExtractFiltersPriceShorthand(t *testing.T) {
	filters := ExtractFilters("masters courses under 20k")

	require.NotNil(t, filters.Price)
	assert.Equal(t, float64(20000), filters.Price.Max)
	assert.Equal(t, "Master", filters.StudyLevel)
}

func TestExtractFiltersPriceRange(t *testing.T) {
	filters := ExtractFilters("courses between $15,000 and $30,000")

	require.NotNil(t, filters.Price)
	assert.Equal(t, float64(15000), filters.Price.Min)
	assert.Equal(t, float64(30000), filters.Price.Max)
}

func TestExtractFiltersProviderAndFlags(t *testing.T) {
	filters := ExtractFilters("nursing at UNSW with scholarship and internship")

	assert.Equal(t, "University of New South Wales", filters.ProviderName)
	assert.Contains(t, filters.FieldsOfStudy, "Health")
	assert.True(t, filters.HasScholarship)
	assert.True(t, filters.HasInternship)
}

func TestExtractFiltersTopRanking(t *testing.T) {
	filters := ExtractFilters("business courses at top 5 universities")

	assert.Equal(t, 5, filters.MaxRanking)
	assert.Contains(t, filters.FieldsOfStudy, "Business")
}

func TestExtractFiltersStateOnly(t *testing.T) {
	filters := ExtractFilters("study in Queensland")

	require.NotNil(t, filters.Location)
	assert.Equal(t, "", filters.Location.City)
	assert.Equal(t, "QLD", filters.Location.State)
}

func TestExtractFiltersNoWordBoundaryFalsePositive(t *testing.T) {
	// "unique" 不应命中 "uq" 别名
	filters := ExtractFilters("a unique opportunity")
	assert.Empty(t, filters.ProviderName)
	assert.Empty(t, filters.ProviderNames)
}

func TestReformulateOriginalFirst(t *testing.T) {
	llmStub := &stubLLM{response: "What IT degrees are offered in Sydney\nSydney technology course options"}
	svc := newTestQueryService(llmStub)

	variants := svc.Reformulate(context.Background(), "IT courses in Sydney")

	require.Len(t, variants, 3)
	assert.Equal(t, "IT courses in Sydney", variants[0])
}

func TestReformulateLLMFailure(t *testing.T) {
	svc := newTestQueryService(&stubLLM{chatErr: errors.New("llm down")})

	variants := svc.Reformulate(context.Background(), "IT courses in Sydney")

	require.Len(t, variants, 1)
	assert.Equal(t, "IT courses in Sydney", variants[0])
}
