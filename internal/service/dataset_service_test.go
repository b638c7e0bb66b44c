package service

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studynet-go/internal/model"
)

// fakeCourseRepo 捕获 ReplaceDataset 收到的行。
type fakeCourseRepo struct {
	providers []model.Provider
	courses   []model.Course
	fees      []model.Fee
	locations []model.CampusLocation
	intakes   []model.Intake
}

func (f *fakeCourseRepo) SearchCourses(filters model.Filters, limit int) ([]model.CourseRow, error) {
	return nil, nil
}

func (f *fakeCourseRepo) CompareProviders(providerNames []string) ([]model.ProviderComparisonRow, error) {
	return nil, nil
}

func (f *fakeCourseRepo) UpcomingIntakes(providerName string, limit int) ([]model.Intake, error) {
	return nil, nil
}

func (f *fakeCourseRepo) ReplaceDataset(providers []model.Provider, courses []model.Course, fees []model.Fee, locations []model.CampusLocation, intakes []model.Intake) error {
	f.providers = providers
	f.courses = courses
	f.fees = fees
	f.locations = locations
	f.intakes = intakes
	return nil
}

func (f *fakeCourseRepo) CountCourses() (int64, error) {
	return int64(len(f.courses)), nil
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoadFromDirParsesDataset(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "providers.csv",
		"id,provider_name,australian_ranking,global_ranking\n"+
			"1,University of Sydney,2,19\n"+
			"2,Monash University,6,42\n")
	writeFile(t, dir, "courses.csv",
		"id,provider_id,course_name,provider_name,study_level,area_of_study_broad,has_scholarship,has_internship\n"+
			"10,1,Master of IT,University of Sydney,Master,Information Technology,true,false\n")
	writeFile(t, dir, "fees.csv",
		"id,course_id,year,total_annual_fee\n"+
			"100,10,2026,48000.50\n")
	writeFile(t, dir, "campus_locations.csv",
		"id,provider_id,campus_name,address_city,address_state\n"+
			"200,1,Camperdown,Sydney,NSW\n")
	writeFile(t, dir, "intakes.csv",
		"id,provider_id,provider_name,year,commencement_date,application_deadline,is_open\n"+
			"300,1,University of Sydney,2026,2026-02-23,2025-12-01,true\n")

	repo := &fakeCourseRepo{}
	svc := NewDatasetService(repo)

	require.NoError(t, svc.LoadFromDir(dir))

	require.Len(t, repo.providers, 2)
	assert.Equal(t, "University of Sydney", repo.providers[0].ProviderName)
	assert.Equal(t, 2, repo.providers[0].AustralianRanking)

	require.Len(t, repo.courses, 1)
	assert.True(t, repo.courses[0].HasScholarship)
	assert.False(t, repo.courses[0].HasInternship)
	// is_active 缺省为 true
	assert.True(t, repo.courses[0].IsActive)

	require.Len(t, repo.fees, 1)
	assert.Equal(t, 48000.50, repo.fees[0].TotalAnnualFee)

	require.Len(t, repo.intakes, 1)
	assert.Equal(t, 2026, repo.intakes[0].Year)
	assert.Equal(t, 2026, repo.intakes[0].CommencementDate.Year())
}

func TestLoadFromDirMissingFilesTreatedAsEmpty(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "providers.csv", "id,provider_name\n1,Deakin University\n")

	repo := &fakeCourseRepo{}
	svc := NewDatasetService(repo)

	require.NoError(t, svc.LoadFromDir(dir))
	assert.Len(t, repo.providers, 1)
	assert.Empty(t, repo.courses)
	assert.Empty(t, repo.intakes)
}
